package domain

import "time"

type NotificationKind string

const (
	NotificationMessage NotificationKind = "message"
	NotificationMention NotificationKind = "mention"
)

type Notification struct {
	ID        string           `db:"id"`
	UserID    int64            `db:"user_id"`
	ChannelID string           `db:"channel_id"`
	MessageID *string          `db:"message_id"`
	Kind      NotificationKind `db:"kind"`
	Body      string           `db:"body"`
	Read      bool             `db:"read"`
	CreatedAt time.Time        `db:"created_at"`
}
