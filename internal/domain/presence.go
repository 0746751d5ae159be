package domain

import "time"

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusOffline PresenceStatus = "offline"
)

func (s PresenceStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusOffline:
		return true
	}
	return false
}

// Presence is global per user, never per channel or per connection.
type Presence struct {
	UserID   int64          `db:"user_id"`
	Status   PresenceStatus `db:"status"`
	LastSeen time.Time      `db:"last_seen"`
}
