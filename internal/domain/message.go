package domain

import "time"

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageSystem MessageType = "system"
)

type Message struct {
	ID          string      `db:"id"`
	ChannelID   string      `db:"channel_id"`
	UserID      int64       `db:"user_id"`
	Content     string      `db:"content"`
	ParentID    *string     `db:"parent_id"`
	Type        MessageType `db:"type"`
	CreatedAt   time.Time   `db:"created_at"`
	EditedAt    *time.Time  `db:"edited_at"`
	DeletedAt   *time.Time  `db:"deleted_at"`
	Attachments []Attachment
	Mentions    []int64
	Reactions   []Reaction
}

// Deleted reports whether the message carries a tombstone. The row stays
// in place; reads must hide the content.
func (m *Message) Deleted() bool { return m.DeletedAt != nil }

type Attachment struct {
	ID          string `db:"id"`
	MessageID   string `db:"message_id"`
	Name        string `db:"name"`
	URL         string `db:"url"`
	ContentType string `db:"content_type"`
	Position    int    `db:"position"`
}

// Reaction is unique per (message, user, emoji); presence of the triple
// is the whole state, so adds are idempotent and removes of a missing
// triple are no-ops.
type Reaction struct {
	MessageID string    `db:"message_id"`
	UserID    int64     `db:"user_id"`
	Emoji     string    `db:"emoji"`
	CreatedAt time.Time `db:"created_at"`
}
