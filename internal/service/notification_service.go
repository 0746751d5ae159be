package service

import (
	"context"
	"log/slog"

	"github.com/cwrk-planet/messaging-service/internal/cache"
	"github.com/cwrk-planet/messaging-service/internal/domain"
)

const cacheKindNotifications = "notifications"

// NotificationStore persists notification records.
type NotificationStore interface {
	Insert(ctx context.Context, n *domain.Notification) error
	ListForUser(ctx context.Context, userID int64, unreadOnly bool, after string, limit int) ([]domain.Notification, string, error)
	MarkRead(ctx context.Context, id string, userID int64) error
	Delete(ctx context.Context, id string, userID int64) error
}

// Pusher delivers a notification to a recipient's live connections, if
// any. Implemented by the websocket hub.
type Pusher interface {
	PushNotification(userID int64, n *domain.Notification) int
}

// ListCache is the slice of the cache layer this service uses.
type ListCache interface {
	GetOrCompute(ctx context.Context, key string, dst any, compute func(context.Context) (any, error)) error
	Invalidate(ctx context.Context, prefix string) error
}

type NotificationService struct {
	store  NotificationStore
	pusher Pusher
	cache  ListCache
}

func NewNotificationService(store NotificationStore, pusher Pusher, c ListCache) *NotificationService {
	return &NotificationService{store: store, pusher: pusher, cache: c}
}

// NotifyEvent describes one triggering message event.
type NotifyEvent struct {
	TenantID  int64
	ChannelID string
	MessageID string
	ActorID   int64
	Body      string
	// Mentions are user ids called out in the message body. Mentioned
	// users are always notified, muted membership or not.
	Mentions []int64
}

// Notify creates one notification record per recipient and pushes it to
// any live connection. Recipients are the channel members handed in by
// the gateway; the actor and muted members (unless mentioned) are
// skipped. One recipient's failure never blocks the rest: fan-out is
// per-recipient isolated and the failure count is returned.
func (s *NotificationService) Notify(ctx context.Context, ev NotifyEvent, recipients []domain.Membership) (delivered, failed int) {
	mentioned := make(map[int64]bool, len(ev.Mentions))
	for _, uid := range ev.Mentions {
		mentioned[uid] = true
	}

	for _, m := range recipients {
		if m.UserID == ev.ActorID {
			continue
		}
		kind := domain.NotificationMessage
		if mentioned[m.UserID] {
			kind = domain.NotificationMention
		} else if m.Muted {
			// Muting suppresses creation of plain message
			// notifications; mentions always go through.
			continue
		}

		msgID := ev.MessageID
		n := &domain.Notification{
			UserID:    m.UserID,
			ChannelID: ev.ChannelID,
			MessageID: &msgID,
			Kind:      kind,
			Body:      ev.Body,
		}
		if err := s.store.Insert(ctx, n); err != nil {
			slog.Error("notification insert failed", "user", m.UserID, "channel", ev.ChannelID, "err", err)
			failed++
			continue
		}
		// Invalidation is part of the write: a recipient whose cached
		// list could not be cleared counts as failed.
		if err := s.cache.Invalidate(ctx, cache.KindPrefix(ev.TenantID, m.UserID, cacheKindNotifications)); err != nil {
			slog.Error("notification cache invalidate failed", "user", m.UserID, "err", err)
			failed++
			continue
		}
		if s.pusher != nil {
			delivered += s.pusher.PushNotification(m.UserID, n)
		}
	}
	return delivered, failed
}

type notificationPage struct {
	Items []domain.Notification `json:"items"`
	Next  string                `json:"next"`
}

// List returns the user's notifications, newest first. The first page
// goes through the read-through cache; cursor pages hit the store.
func (s *NotificationService) List(ctx context.Context, tenantID, userID int64, unreadOnly bool, after string, limit int) ([]domain.Notification, string, error) {
	if after != "" {
		return s.store.ListForUser(ctx, userID, unreadOnly, after, limit)
	}

	filter := "all"
	if unreadOnly {
		filter = "unread"
	}
	var p notificationPage
	key := cache.Key(tenantID, userID, cacheKindNotifications, filter)
	err := s.cache.GetOrCompute(ctx, key, &p, func(ctx context.Context) (any, error) {
		items, next, err := s.store.ListForUser(ctx, userID, unreadOnly, "", limit)
		if err != nil {
			return nil, err
		}
		return notificationPage{Items: items, Next: next}, nil
	})
	if err != nil {
		return nil, "", err
	}
	return p.Items, p.Next, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, tenantID int64, id string, userID int64) error {
	if err := s.store.MarkRead(ctx, id, userID); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, cache.KindPrefix(tenantID, userID, cacheKindNotifications))
}

func (s *NotificationService) Delete(ctx context.Context, tenantID int64, id string, userID int64) error {
	if err := s.store.Delete(ctx, id, userID); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, cache.KindPrefix(tenantID, userID, cacheKindNotifications))
}
