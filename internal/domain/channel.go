package domain

import "time"

type ChannelType string

const (
	ChannelPublic  ChannelType = "public"
	ChannelPrivate ChannelType = "private"
	ChannelDirect  ChannelType = "direct"
)

type Channel struct {
	ID          string      `db:"id"`
	TenantID    int64       `db:"tenant_id"`
	Name        string      `db:"name"`
	Description *string     `db:"description"`
	Icon        *string     `db:"icon"`
	Type        ChannelType `db:"type"`
	CreatedBy   int64       `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
}

// ChannelListItem is a channel together with membership-derived counters,
// as shown in a user's channel list.
type ChannelListItem struct {
	Channel
	Role        Role
	Muted       bool
	UnreadCount int64
}
