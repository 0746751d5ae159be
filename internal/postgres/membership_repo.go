package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MembershipRepository struct {
	db *pgxpool.Pool
}

func NewMembershipRepository(db *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) Add(ctx context.Context, m *domain.Membership) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO channel_members (channel_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id, user_id) DO NOTHING
		RETURNING joined_at, last_read_at
	`, m.ChannelID, m.UserID, m.Role).Scan(&m.JoinedAt, &m.LastReadAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrAlreadyMember
	}
	return err
}

func (r *MembershipRepository) Remove(ctx context.Context, channelID string, userID int64) error {
	cmd, err := r.db.Exec(ctx,
		`DELETE FROM channel_members WHERE channel_id=$1 AND user_id=$2`,
		channelID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}

func (r *MembershipRepository) Get(ctx context.Context, channelID string, userID int64) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.QueryRow(ctx, `
		SELECT channel_id, user_id, role, muted, last_read_at, joined_at
		FROM channel_members WHERE channel_id=$1 AND user_id=$2
	`, channelID, userID).
		Scan(&m.ChannelID, &m.UserID, &m.Role, &m.Muted, &m.LastReadAt, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotMember
		}
		return nil, err
	}
	return &m, nil
}

func (r *MembershipRepository) ListMembers(ctx context.Context, channelID string) ([]domain.Membership, error) {
	rows, err := r.db.Query(ctx, `
		SELECT channel_id, user_id, role, muted, last_read_at, joined_at
		FROM channel_members WHERE channel_id=$1 ORDER BY joined_at ASC
	`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.ChannelID, &m.UserID, &m.Role, &m.Muted, &m.LastReadAt, &m.JoinedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// TouchLastRead advances the read watermark. Never moves it backwards.
func (r *MembershipRepository) TouchLastRead(ctx context.Context, channelID string, userID int64) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE channel_members SET last_read_at = GREATEST(last_read_at, now())
		WHERE channel_id=$1 AND user_id=$2
	`, channelID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}

func (r *MembershipRepository) SetMuted(ctx context.Context, channelID string, userID int64, muted bool) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE channel_members SET muted=$3 WHERE channel_id=$1 AND user_id=$2`,
		channelID, userID, muted)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}
