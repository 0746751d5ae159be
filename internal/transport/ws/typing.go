package ws

import (
	"context"
	"sync"
	"time"
)

// TypingTracker holds the ephemeral (channel, user) typing assertions.
// Nothing here is persisted; entries expire after the inactivity window
// even when no explicit stop arrives, swept by Run.
type TypingTracker struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]map[int64]time.Time // channelID -> userID -> deadline
}

func NewTypingTracker(ttl time.Duration) *TypingTracker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &TypingTracker{
		ttl:     ttl,
		entries: make(map[string]map[int64]time.Time),
	}
}

// Start asserts that the user is typing in the channel and renews the
// deadline. Returns true when the assertion is new.
func (t *TypingTracker) Start(channelID string, userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.entries[channelID]
	if !ok {
		users = make(map[int64]time.Time)
		t.entries[channelID] = users
	}
	_, existed := users[userID]
	users[userID] = time.Now().Add(t.ttl)
	return !existed
}

// Stop clears the assertion. Returns true when one was present.
func (t *TypingTracker) Stop(channelID string, userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.entries[channelID]
	if !ok {
		return false
	}
	_, existed := users[userID]
	delete(users, userID)
	if len(users) == 0 {
		delete(t.entries, channelID)
	}
	return existed
}

// StopAll clears every assertion the user holds, returning the affected
// channel ids. Used on disconnect.
func (t *TypingTracker) StopAll(userID int64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var channels []string
	for id, users := range t.entries {
		if _, ok := users[userID]; ok {
			delete(users, userID)
			channels = append(channels, id)
			if len(users) == 0 {
				delete(t.entries, id)
			}
		}
	}
	return channels
}

// Active returns the users currently typing in a channel, pruning
// anything already past its deadline.
func (t *TypingTracker) Active(channelID string) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	var out []int64
	for uid, deadline := range t.entries[channelID] {
		if deadline.Before(now) {
			delete(t.entries[channelID], uid)
			continue
		}
		out = append(out, uid)
	}
	if len(t.entries[channelID]) == 0 {
		delete(t.entries, channelID)
	}
	return out
}

// sweep removes expired assertions and reports them.
func (t *TypingTracker) sweep(now time.Time) []TypingPayload {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []TypingPayload
	for id, users := range t.entries {
		for uid, deadline := range users {
			if deadline.Before(now) {
				delete(users, uid)
				expired = append(expired, TypingPayload{ChannelID: id, UserID: uid})
			}
		}
		if len(users) == 0 {
			delete(t.entries, id)
		}
	}
	return expired
}

// Run sweeps expired typing state proactively, invoking onExpire for
// each expiry so the gateway can broadcast the implicit stop. Clients
// that never send typing.stop still go quiet after the window.
func (t *TypingTracker) Run(ctx context.Context, onExpire func(TypingPayload)) {
	ticker := time.NewTicker(t.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, p := range t.sweep(now) {
				onExpire(p)
			}
		}
	}
}
