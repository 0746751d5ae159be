package postgres

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO notifications (user_id, channel_id, message_id, kind, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, n.UserID, n.ChannelID, n.MessageID, n.Kind, n.Body).Scan(&n.ID, &n.CreatedAt)
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID int64, unreadOnly bool, after string, limit int) ([]domain.Notification, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	const q = `
		SELECT id, user_id, channel_id, message_id, kind, body, read, created_at
		FROM notifications
		WHERE user_id = $1
		  AND (NOT $2 OR read = false)
		  AND (
		    $3::timestamptz IS NULL
		    OR created_at < $3
		    OR (created_at = $3 AND id < $4)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $5
	`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, q, userID, unreadOnly, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ChannelID, &n.MessageID, &n.Kind, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}

// MarkRead flips the read flag for the recipient's own notification.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, userID int64) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE notifications SET read=true WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id string, userID int64) error {
	cmd, err := r.db.Exec(ctx,
		`DELETE FROM notifications WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}
