package ws

import (
	"log/slog"
	"sync"

	"github.com/cwrk-planet/messaging-service/internal/domain"
)

// Hub is the shared subscriber registry: which connections are live,
// which channels each is subscribed to, and the per-user and per-tenant
// indexes used for notification push and presence broadcast. All access
// goes through the lock; per-connection delivery never blocks here
// because enqueue is non-blocking.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Conn]struct{}
	users    map[int64]map[*Conn]struct{}
	tenants  map[int64]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*Conn]struct{}),
		users:    make(map[int64]map[*Conn]struct{}),
		tenants:  make(map[int64]map[*Conn]struct{}),
	}
}

// Register indexes an authenticated connection by user and tenant.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*Conn]struct{})
	}
	h.users[c.userID][c] = struct{}{}

	if h.tenants[c.tenantID] == nil {
		h.tenants[c.tenantID] = make(map[*Conn]struct{})
	}
	h.tenants[c.tenantID][c] = struct{}{}
}

// Unregister drops the connection from every index, including all of
// its channel subscriptions.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, set := range h.channels {
		delete(set, c)
		if len(set) == 0 {
			delete(h.channels, id)
		}
	}
	if set, ok := h.users[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.userID)
		}
	}
	if set, ok := h.tenants[c.tenantID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.tenants, c.tenantID)
		}
	}
}

func (h *Hub) Subscribe(c *Conn, channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.channels[channelID]
	if !ok {
		set = make(map[*Conn]struct{})
		h.channels[channelID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Conn, channelID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.channels[channelID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.channels, channelID)
		}
	}
}

func (h *Hub) Subscribed(c *Conn, channelID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.channels[channelID][c]
	return ok
}

// SubscribedChannels returns the ids of channels this connection is
// subscribed to, used for typing cleanup on disconnect.
func (h *Hub) SubscribedChannels(c *Conn) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var ids []string
	for id, set := range h.channels {
		if _, ok := set[c]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Broadcast delivers the event to every subscriber of the channel.
// Delivery is per-connection best-effort: a slow consumer is dropped,
// never waited on.
func (h *Hub) Broadcast(channelID string, ev Event) {
	h.broadcast(channelID, nil, ev)
}

// BroadcastExcept is Broadcast minus one connection, used for typing
// signals which go only to the other subscribers.
func (h *Hub) BroadcastExcept(channelID string, except *Conn, ev Event) {
	h.broadcast(channelID, except, ev)
}

func (h *Hub) broadcast(channelID string, except *Conn, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.channels[channelID] {
		if c == except {
			continue
		}
		if err := c.enqueue(ev); err != nil {
			slog.Warn("dropping slow consumer", "user", c.userID, "channel", channelID)
		}
	}
}

// BroadcastTenant delivers to every connection of the tenant, used for
// presence updates.
func (h *Hub) BroadcastTenant(tenantID int64, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.tenants[tenantID] {
		if err := c.enqueue(ev); err != nil {
			slog.Warn("dropping slow consumer", "user", c.userID, "tenant", tenantID)
		}
	}
}

// PushNotification delivers a notification to every live connection of
// the recipient and reports how many received it. Implements the
// notification service's Pusher.
func (h *Hub) PushNotification(userID int64, n *domain.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.users[userID] {
		if err := c.enqueue(Event{Type: EventNotification, Payload: notificationPayload(n)}); err == nil {
			delivered++
		}
	}
	return delivered
}

// Subscribers reports the live subscriber count for a channel.
func (h *Hub) Subscribers(channelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channelID])
}
