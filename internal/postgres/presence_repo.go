package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PresenceRepository struct {
	db *pgxpool.Pool
}

func NewPresenceRepository(db *pgxpool.Pool) *PresenceRepository {
	return &PresenceRepository{db: db}
}

// Upsert writes the user's current status and refreshes last_seen.
// One row per user; presence is never per channel.
func (r *PresenceRepository) Upsert(ctx context.Context, userID int64, status domain.PresenceStatus) (*domain.Presence, error) {
	var p domain.Presence
	err := r.db.QueryRow(ctx, `
		INSERT INTO user_presence (user_id, status, last_seen)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET status=$2, last_seen=now()
		RETURNING user_id, status, last_seen
	`, userID, status).Scan(&p.UserID, &p.Status, &p.LastSeen)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TouchLastSeen refreshes last_seen without changing the status. No-op
// for users with no presence row yet.
func (r *PresenceRepository) TouchLastSeen(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE user_presence SET last_seen=now() WHERE user_id=$1`, userID)
	return err
}

// Get returns the stored presence. Users never seen before read as
// offline with a zero last_seen.
func (r *PresenceRepository) Get(ctx context.Context, userID int64) (*domain.Presence, error) {
	var p domain.Presence
	err := r.db.QueryRow(ctx,
		`SELECT user_id, status, last_seen FROM user_presence WHERE user_id=$1`,
		userID).Scan(&p.UserID, &p.Status, &p.LastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.Presence{UserID: userID, Status: domain.StatusOffline}, nil
		}
		return nil, err
	}
	return &p, nil
}
