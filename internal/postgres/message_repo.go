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

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert persists the message together with its attachments and mention
// references in one transaction. The server assigns id and created_at.
func (r *MessageRepository) Insert(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	m.ID = uuid.NewString()
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, channel_id, user_id, content, parent_id, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, m.ID, m.ChannelID, m.UserID, m.Content, m.ParentID, m.Type).Scan(&m.CreatedAt)
	if err != nil {
		return err
	}

	for i := range m.Attachments {
		a := &m.Attachments[i]
		a.MessageID = m.ID
		a.Position = i
		if err := tx.QueryRow(ctx, `
			INSERT INTO message_attachments (message_id, name, url, content_type, position)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, a.MessageID, a.Name, a.URL, a.ContentType, a.Position).Scan(&a.ID); err != nil {
			return err
		}
	}

	for _, uid := range m.Mentions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO message_mentions (message_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, m.ID, uid); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *MessageRepository) Get(ctx context.Context, id string) (*domain.Message, error) {
	var m domain.Message
	err := r.db.QueryRow(ctx, `
		SELECT id, channel_id, user_id, content, parent_id, type, created_at, edited_at, deleted_at
		FROM messages WHERE id=$1
	`, id).Scan(&m.ID, &m.ChannelID, &m.UserID, &m.Content, &m.ParentID, &m.Type,
		&m.CreatedAt, &m.EditedAt, &m.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	if m.Deleted() {
		m.Content = ""
		return &m, nil
	}
	if err := r.loadRelated(ctx, []*domain.Message{&m}); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateContent sets a new body and the edited timestamp. Tombstoned
// messages cannot be edited.
func (r *MessageRepository) UpdateContent(ctx context.Context, id, content string) (*domain.Message, error) {
	var m domain.Message
	err := r.db.QueryRow(ctx, `
		UPDATE messages SET content=$2, edited_at=now()
		WHERE id=$1 AND deleted_at IS NULL
		RETURNING id, channel_id, user_id, content, parent_id, type, created_at, edited_at, deleted_at
	`, id, content).Scan(&m.ID, &m.ChannelID, &m.UserID, &m.Content, &m.ParentID, &m.Type,
		&m.CreatedAt, &m.EditedAt, &m.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	if err := r.loadRelated(ctx, []*domain.Message{&m}); err != nil {
		return nil, err
	}
	return &m, nil
}

// SoftDelete sets the tombstone. The row and its sub-records stay in
// place; reads hide the content from then on.
func (r *MessageRepository) SoftDelete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE messages SET deleted_at=now() WHERE id=$1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// History returns channel messages with cursor pagination
// (created_at,id DESC). Tombstoned rows are returned as placeholders:
// id and deletion timestamp only, empty content, no sub-records.
func (r *MessageRepository) History(ctx context.Context, channelID, after string, limit int) ([]domain.Message, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	const q = `
		SELECT id, channel_id, user_id,
		       CASE WHEN deleted_at IS NULL THEN content ELSE '' END,
		       parent_id, type, created_at, edited_at, deleted_at
		FROM messages
		WHERE channel_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at < $2
		    OR (created_at = $2 AND id < $3)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, q, channelID, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.UserID, &m.Content, &m.ParentID, &m.Type,
			&m.CreatedAt, &m.EditedAt, &m.DeletedAt); err != nil {
			return nil, "", err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	live := make([]*domain.Message, 0, len(out))
	for i := range out {
		if !out[i].Deleted() {
			live = append(live, &out[i])
		}
	}
	if err := r.loadRelated(ctx, live); err != nil {
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

// AddReaction upserts the (message, user, emoji) triple. The returned
// bool reports whether the triple was newly created.
func (r *MessageRepository) AddReaction(ctx context.Context, rc *domain.Reaction) (bool, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO message_reactions (message_id, user_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING
		RETURNING created_at
	`, rc.MessageID, rc.UserID, rc.Emoji).Scan(&rc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveReaction deletes the triple; removing a missing triple is a
// no-op, reported through the bool.
func (r *MessageRepository) RemoveReaction(ctx context.Context, messageID string, userID int64, emoji string) (bool, error) {
	cmd, err := r.db.Exec(ctx,
		`DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`,
		messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *MessageRepository) ListReactions(ctx context.Context, messageID string) ([]domain.Reaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions WHERE message_id=$1 ORDER BY created_at ASC
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reaction
	for rows.Next() {
		var rc domain.Reaction
		if err := rows.Scan(&rc.MessageID, &rc.UserID, &rc.Emoji, &rc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// loadRelated fills attachments, mentions and reactions for the given
// messages with one query per sub-record kind.
func (r *MessageRepository) loadRelated(ctx context.Context, msgs []*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))
	byID := make(map[string]*domain.Message, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
		byID[m.ID] = m
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, message_id, name, url, content_type, position
		FROM message_attachments WHERE message_id = ANY($1) ORDER BY position ASC
	`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.Name, &a.URL, &a.ContentType, &a.Position); err != nil {
			rows.Close()
			return err
		}
		byID[a.MessageID].Attachments = append(byID[a.MessageID].Attachments, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.Query(ctx,
		`SELECT message_id, user_id FROM message_mentions WHERE message_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var mid string
		var uid int64
		if err := rows.Scan(&mid, &uid); err != nil {
			rows.Close()
			return err
		}
		byID[mid].Mentions = append(byID[mid].Mentions, uid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.Query(ctx, `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions WHERE message_id = ANY($1) ORDER BY created_at ASC
	`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var rc domain.Reaction
		if err := rows.Scan(&rc.MessageID, &rc.UserID, &rc.Emoji, &rc.CreatedAt); err != nil {
			rows.Close()
			return err
		}
		byID[rc.MessageID].Reactions = append(byID[rc.MessageID].Reactions, rc)
	}
	rows.Close()
	return rows.Err()
}
