package ws

import (
	"testing"

	"github.com/cwrk-planet/messaging-service/internal/domain"
)

func hubConn(t *testing.T, userID, tenantID int64) *Conn {
	t.Helper()
	_, serverWS := socketPair(t)
	c := newConn(serverWS, userID, tenantID, 8)
	t.Cleanup(c.Close)
	return c
}

func TestHub_BroadcastReachesEverySubscriber(t *testing.T) {
	h := NewHub()
	a := hubConn(t, 1, 1)
	b := hubConn(t, 2, 1)
	h.Register(a)
	h.Register(b)
	h.Subscribe(a, testChannelID)
	h.Subscribe(b, testChannelID)

	h.Broadcast(testChannelID, Event{Type: EventMessageNew})

	if len(a.send) != 1 || len(b.send) != 1 {
		t.Errorf("Got queue lengths %d and %d, want 1 and 1", len(a.send), len(b.send))
	}
}

func TestHub_BroadcastExceptSkipsOrigin(t *testing.T) {
	h := NewHub()
	a := hubConn(t, 1, 1)
	b := hubConn(t, 2, 1)
	h.Register(a)
	h.Register(b)
	h.Subscribe(a, testChannelID)
	h.Subscribe(b, testChannelID)

	h.BroadcastExcept(testChannelID, a, Event{Type: EventTypingStart})

	if len(a.send) != 0 {
		t.Errorf("Origin connection received %d events, want 0", len(a.send))
	}
	if len(b.send) != 1 {
		t.Errorf("Other subscriber received %d events, want 1", len(b.send))
	}
}

func TestHub_UnregisterDropsAllSubscriptions(t *testing.T) {
	h := NewHub()
	a := hubConn(t, 1, 1)
	h.Register(a)
	h.Subscribe(a, testChannelID)

	h.Unregister(a)

	if n := h.Subscribers(testChannelID); n != 0 {
		t.Errorf("Got %d subscribers after unregister, want 0", n)
	}
	if got := h.SubscribedChannels(a); len(got) != 0 {
		t.Errorf("Got channels %v after unregister, want none", got)
	}
}

func TestHub_PushNotificationCountsLiveConnections(t *testing.T) {
	h := NewHub()
	// Same user on two devices, a third connection belongs to someone else.
	a1 := hubConn(t, 1, 1)
	a2 := hubConn(t, 1, 1)
	b := hubConn(t, 2, 1)
	h.Register(a1)
	h.Register(a2)
	h.Register(b)

	n := &domain.Notification{ID: "n1", ChannelID: testChannelID, Kind: domain.NotificationMessage, Body: "hi"}
	if got := h.PushNotification(1, n); got != 2 {
		t.Errorf("Got %d deliveries, want 2", got)
	}
	if len(b.send) != 0 {
		t.Errorf("Unrelated user received %d events, want 0", len(b.send))
	}

	if got := h.PushNotification(42, n); got != 0 {
		t.Errorf("Got %d deliveries for an offline user, want 0", got)
	}
}

func TestHub_BroadcastTenantScopes(t *testing.T) {
	h := NewHub()
	a := hubConn(t, 1, 1)
	b := hubConn(t, 2, 2)
	h.Register(a)
	h.Register(b)

	h.BroadcastTenant(1, Event{Type: EventPresenceUpdated})

	if len(a.send) != 1 {
		t.Errorf("Tenant member received %d events, want 1", len(a.send))
	}
	if len(b.send) != 0 {
		t.Errorf("Foreign tenant received %d events, want 0", len(b.send))
	}
}

func TestHub_SlowSubscriberDoesNotBlockBroadcast(t *testing.T) {
	h := NewHub()
	_, slowWS := socketPair(t)
	slow := newConn(slowWS, 1, 1, 1)
	fast := hubConn(t, 2, 1)
	h.Register(slow)
	h.Register(fast)
	h.Subscribe(slow, testChannelID)
	h.Subscribe(fast, testChannelID)

	// Two broadcasts overflow the slow consumer's single-slot buffer;
	// the fast one still gets both.
	h.Broadcast(testChannelID, Event{Type: EventMessageNew})
	h.Broadcast(testChannelID, Event{Type: EventMessageNew})

	if !slow.SlowConsumer() {
		t.Error("Overflowing subscriber not marked slow")
	}
	if len(fast.send) != 2 {
		t.Errorf("Fast subscriber received %d events, want 2", len(fast.send))
	}
}
