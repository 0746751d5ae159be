package domain

import "time"

type Role string

const (
	RoleOwner     Role = "owner"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// Membership is the durable record that a user belongs to a channel.
// Unique per (channel, user). LastReadAt is the read watermark used to
// compute unread counts.
type Membership struct {
	ChannelID  string    `db:"channel_id"`
	UserID     int64     `db:"user_id"`
	Role       Role      `db:"role"`
	Muted      bool      `db:"muted"`
	LastReadAt time.Time `db:"last_read_at"`
	JoinedAt   time.Time `db:"joined_at"`
}

func (r Role) CanInvite() bool {
	return r == RoleOwner || r == RoleModerator
}
