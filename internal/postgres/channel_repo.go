package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChannelRepository struct {
	db *pgxpool.Pool
}

func NewChannelRepository(db *pgxpool.Pool) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Create inserts the channel and its initial memberships in one
// transaction. A direct channel gets exactly its two participants; any
// other type gets the creator as owner.
func (r *ChannelRepository) Create(ctx context.Context, ch *domain.Channel, members []domain.Membership) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ch.ID = uuid.NewString()
	err = tx.QueryRow(ctx, `
		INSERT INTO channels (id, tenant_id, name, description, icon, type, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, ch.ID, ch.TenantID, ch.Name, ch.Description, ch.Icon, ch.Type, ch.CreatedBy).
		Scan(&ch.CreatedAt)
	if err != nil {
		return err
	}

	for _, m := range members {
		if _, err := tx.Exec(ctx, `
			INSERT INTO channel_members (channel_id, user_id, role)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, ch.ID, m.UserID, m.Role); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ChannelRepository) Get(ctx context.Context, id string) (*domain.Channel, error) {
	var ch domain.Channel
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, description, icon, type, created_by, created_at
		FROM channels WHERE id=$1
	`, id).Scan(&ch.ID, &ch.TenantID, &ch.Name, &ch.Description, &ch.Icon, &ch.Type, &ch.CreatedBy, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChannelNotFound
		}
		return nil, err
	}
	return &ch, nil
}

// ListForUser returns the channels a user belongs to, newest first, with
// the unread count derived from the membership's last_read_at watermark.
// Tombstoned messages and the user's own messages do not count as unread.
func (r *ChannelRepository) ListForUser(ctx context.Context, tenantID, userID int64) ([]domain.ChannelListItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.tenant_id, c.name, c.description, c.icon, c.type, c.created_by, c.created_at,
		       m.role, m.muted,
		       (SELECT COUNT(*) FROM messages msg
		        WHERE msg.channel_id = c.id
		          AND msg.created_at > m.last_read_at
		          AND msg.deleted_at IS NULL
		          AND msg.user_id <> m.user_id) AS unread
		FROM channels c
		JOIN channel_members m ON m.channel_id = c.id
		WHERE c.tenant_id = $1 AND m.user_id = $2
		ORDER BY c.created_at DESC, c.id DESC
	`, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChannelListItem
	for rows.Next() {
		var it domain.ChannelListItem
		if err := rows.Scan(
			&it.ID, &it.TenantID, &it.Name, &it.Description, &it.Icon, &it.Type, &it.CreatedBy, &it.CreatedAt,
			&it.Role, &it.Muted, &it.UnreadCount,
		); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Delete removes a channel. Removal is an explicit administrative action;
// memberships and messages go with it via FK cascade.
func (r *ChannelRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM channels WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrChannelNotFound
	}
	return nil
}

// FindDirect looks up an existing direct channel between two users, so
// repeated direct-channel creation converges on one row.
func (r *ChannelRepository) FindDirect(ctx context.Context, tenantID, userA, userB int64) (*domain.Channel, error) {
	var ch domain.Channel
	err := r.db.QueryRow(ctx, `
		SELECT c.id, c.tenant_id, c.name, c.description, c.icon, c.type, c.created_by, c.created_at
		FROM channels c
		WHERE c.tenant_id = $1 AND c.type = 'direct'
		  AND EXISTS (SELECT 1 FROM channel_members WHERE channel_id=c.id AND user_id=$2)
		  AND EXISTS (SELECT 1 FROM channel_members WHERE channel_id=c.id AND user_id=$3)
		LIMIT 1
	`, tenantID, userA, userB).
		Scan(&ch.ID, &ch.TenantID, &ch.Name, &ch.Description, &ch.Icon, &ch.Type, &ch.CreatedBy, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChannelNotFound
		}
		return nil, fmt.Errorf("find direct: %w", err)
	}
	return &ch, nil
}
