package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/service"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/neilotoole/slogt"
)

const (
	testChannelID = "7f9c24e5-0ca7-4bd2-9bc7-91d2a4f52a01"
	testMessageID = "b31d0fbe-8a4e-4f6f-9f0a-6f0d2c3e4a55"
)

type gateway struct {
	server *Server
	hub    *Hub
	typing *TypingTracker
	srv    *httptest.Server
}

func newGateway(t *testing.T, channels ChannelSvc, messages MessageSvc, notifications NotificationSvc, presence PresenceSvc) *gateway {
	t.Helper()
	prev := slog.Default()
	slog.SetDefault(slogt.New(t))
	t.Cleanup(func() { slog.SetDefault(prev) })

	hub := NewHub()
	typing := NewTypingTracker(50 * time.Millisecond)
	s := NewServer(hub, typing, channels, messages, notifications, presence)
	srv := httptest.NewServer(http.HandlerFunc(s.HandleWS))
	t.Cleanup(srv.Close)
	return &gateway{server: s, hub: hub, typing: typing, srv: srv}
}

func (g *gateway) dial(t *testing.T, userID, tenantID int64) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(g.srv.URL, "http") +
		fmt.Sprintf("/?access_token=test&user_id=%d&tenant_id=%d", userID, tenantID)
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// waitSubscribers blocks until the channel has n live subscribers, so a
// test never broadcasts before the server goroutines finish setup.
func (g *gateway) waitSubscribers(t *testing.T, channelID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for g.hub.Subscribers(channelID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d subscribers, have %d", n, g.hub.Subscribers(channelID))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type wireEvent struct {
	Type    EventType       `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func writeOp(t *testing.T, c *websocket.Conn, in Inbound) {
	t.Helper()
	if err := c.WriteJSON(in); err != nil {
		t.Fatalf("write op %s: %v", in.Op, err)
	}
}

func readEvent(t *testing.T, c *websocket.Conn) wireEvent {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev wireEvent
	if err := c.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func decodePayload(t *testing.T, ev wireEvent, dst any) {
	t.Helper()
	if err := json.Unmarshal(ev.Payload, dst); err != nil {
		t.Fatalf("decode %s payload: %v", ev.Type, err)
	}
}

// --- fakes ---

type fakeChannels struct {
	T          *testing.T
	channel    func(t *testing.T, id string) (*domain.Channel, error)
	membership func(t *testing.T, channelID string, userID int64) (*domain.Membership, error)
	join       func(t *testing.T, channelID string, userID int64) (*domain.Membership, error)
	memberIDs  func(t *testing.T, tenantID, userID int64) ([]string, error)
}

func (f *fakeChannels) Channel(_ context.Context, id string) (*domain.Channel, error) {
	if f.channel == nil {
		return &domain.Channel{ID: id, TenantID: 1, Type: domain.ChannelPublic}, nil
	}
	return f.channel(f.T, id)
}

func (f *fakeChannels) Membership(_ context.Context, channelID string, userID int64) (*domain.Membership, error) {
	if f.membership == nil {
		return &domain.Membership{ChannelID: channelID, UserID: userID, Role: domain.RoleMember}, nil
	}
	return f.membership(f.T, channelID, userID)
}

func (f *fakeChannels) Join(_ context.Context, channelID string, userID int64) (*domain.Membership, error) {
	if f.join == nil {
		return &domain.Membership{ChannelID: channelID, UserID: userID, Role: domain.RoleMember}, nil
	}
	return f.join(f.T, channelID, userID)
}

func (f *fakeChannels) MemberChannelIDs(_ context.Context, tenantID, userID int64) ([]string, error) {
	if f.memberIDs == nil {
		return []string{testChannelID}, nil
	}
	return f.memberIDs(f.T, tenantID, userID)
}

type fakeMessages struct {
	T              *testing.T
	send           func(t *testing.T, in service.SendInput) (*domain.Message, []domain.Membership, error)
	edit           func(t *testing.T, messageID string, editorID int64, content string) (*domain.Message, error)
	del            func(t *testing.T, messageID string, requesterID int64) (*domain.Message, error)
	addReaction    func(t *testing.T, messageID string, userID int64, emoji string) (*domain.Message, *domain.Reaction, bool, error)
	removeReaction func(t *testing.T, messageID string, userID int64, emoji string) (*domain.Message, bool, error)
}

func (f *fakeMessages) Send(_ context.Context, in service.SendInput) (*domain.Message, []domain.Membership, error) {
	return f.send(f.T, in)
}

func (f *fakeMessages) Edit(_ context.Context, messageID string, editorID int64, content string) (*domain.Message, error) {
	return f.edit(f.T, messageID, editorID, content)
}

func (f *fakeMessages) Delete(_ context.Context, messageID string, requesterID int64) (*domain.Message, error) {
	return f.del(f.T, messageID, requesterID)
}

func (f *fakeMessages) AddReaction(_ context.Context, messageID string, userID int64, emoji string) (*domain.Message, *domain.Reaction, bool, error) {
	return f.addReaction(f.T, messageID, userID, emoji)
}

func (f *fakeMessages) RemoveReaction(_ context.Context, messageID string, userID int64, emoji string) (*domain.Message, bool, error) {
	return f.removeReaction(f.T, messageID, userID, emoji)
}

type fakeNotifications struct {
	mu     sync.Mutex
	events []service.NotifyEvent
}

func (f *fakeNotifications) Notify(_ context.Context, ev service.NotifyEvent, recipients []domain.Membership) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return len(recipients), 0
}

func (f *fakeNotifications) calls() []service.NotifyEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.NotifyEvent(nil), f.events...)
}

type fakePresence struct {
	setStatus func(userID int64, status domain.PresenceStatus) (*domain.Presence, error)
}

func (f *fakePresence) Connect(_ context.Context, userID int64) (*domain.Presence, bool, error) {
	return &domain.Presence{UserID: userID, Status: domain.StatusOnline}, false, nil
}

func (f *fakePresence) Disconnect(_ context.Context, userID int64) (*domain.Presence, bool, error) {
	return &domain.Presence{UserID: userID, Status: domain.StatusOffline}, false, nil
}

func (f *fakePresence) SetStatus(_ context.Context, userID int64, status domain.PresenceStatus) (*domain.Presence, error) {
	if f.setStatus == nil {
		return &domain.Presence{UserID: userID, Status: status}, nil
	}
	return f.setStatus(userID, status)
}

// --- tests ---

func TestGateway_RejectsMissingCredentials(t *testing.T) {
	g := newGateway(t, &fakeChannels{T: t}, &fakeMessages{T: t}, &fakeNotifications{}, &fakePresence{})

	tests := []struct {
		name  string
		query string
	}{
		{"NoToken", "user_id=1&tenant_id=1"},
		{"NoUser", "access_token=test&tenant_id=1"},
		{"BadUser", "access_token=test&user_id=zero&tenant_id=1"},
		{"NoTenant", "access_token=test&user_id=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(g.srv.URL + "/?" + tt.query)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("Got HTTP status %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestGateway_SendBroadcastsToAllSubscribers(t *testing.T) {
	notifs := &fakeNotifications{}
	messages := &fakeMessages{
		T: t,
		send: func(t *testing.T, in service.SendInput) (*domain.Message, []domain.Membership, error) {
			if in.UserID != 1 {
				t.Errorf("Got sender %d, want 1", in.UserID)
			}
			msg := &domain.Message{
				ID:        testMessageID,
				ChannelID: in.ChannelID,
				UserID:    in.UserID,
				Content:   in.Content,
				Type:      domain.MessageText,
				CreatedAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			}
			members := []domain.Membership{
				{ChannelID: in.ChannelID, UserID: 1},
				{ChannelID: in.ChannelID, UserID: 2},
			}
			return msg, members, nil
		},
	}
	g := newGateway(t, &fakeChannels{T: t}, messages, notifs, &fakePresence{})

	alice := g.dial(t, 1, 1)
	bob := g.dial(t, 2, 1)
	g.waitSubscribers(t, testChannelID, 2)

	writeOp(t, alice, Inbound{Op: OpSend, ChannelID: testChannelID, Content: "hello"})

	evA := readEvent(t, alice)
	evB := readEvent(t, bob)
	if evA.Type != EventMessageNew || evB.Type != EventMessageNew {
		t.Fatalf("Got events %s and %s, want %s for both", evA.Type, evB.Type, EventMessageNew)
	}

	var gotA, gotB MessagePayload
	decodePayload(t, evA, &gotA)
	decodePayload(t, evB, &gotB)
	// Sender echo and the other subscribers see the same payload.
	if diff := cmp.Diff(gotA, gotB); diff != "" {
		t.Errorf("Payloads differ between subscribers (-sender +other):\n%s", diff)
	}
	if gotA.ID != testMessageID || gotA.Content != "hello" || gotA.UserID != 1 {
		t.Errorf("Unexpected payload: %+v", gotA)
	}

	calls := notifs.calls()
	if len(calls) != 1 {
		t.Fatalf("Got %d notify calls, want 1", len(calls))
	}
	if calls[0].MessageID != testMessageID || calls[0].ActorID != 1 {
		t.Errorf("Unexpected notify event: %+v", calls[0])
	}
}

func TestGateway_SystemMessagesSkipNotifications(t *testing.T) {
	notifs := &fakeNotifications{}
	messages := &fakeMessages{
		T: t,
		send: func(t *testing.T, in service.SendInput) (*domain.Message, []domain.Membership, error) {
			return &domain.Message{
				ID:        testMessageID,
				ChannelID: in.ChannelID,
				UserID:    in.UserID,
				Content:   in.Content,
				Type:      domain.MessageSystem,
			}, nil, nil
		},
	}
	g := newGateway(t, &fakeChannels{T: t}, messages, notifs, &fakePresence{})

	alice := g.dial(t, 1, 1)
	g.waitSubscribers(t, testChannelID, 1)

	writeOp(t, alice, Inbound{Op: OpSend, ChannelID: testChannelID, Content: "joined"})
	if ev := readEvent(t, alice); ev.Type != EventMessageNew {
		t.Fatalf("Got event %s, want %s", ev.Type, EventMessageNew)
	}
	if got := notifs.calls(); len(got) != 0 {
		t.Errorf("Got %d notify calls for a system message, want 0", len(got))
	}
}

func TestGateway_EditByNonAuthorForbidden(t *testing.T) {
	messages := &fakeMessages{
		T: t,
		edit: func(t *testing.T, messageID string, editorID int64, content string) (*domain.Message, error) {
			return nil, domain.ErrForbidden
		},
	}
	g := newGateway(t, &fakeChannels{T: t}, messages, &fakeNotifications{}, &fakePresence{})

	alice := g.dial(t, 1, 1)
	g.waitSubscribers(t, testChannelID, 1)

	writeOp(t, alice, Inbound{Op: OpEdit, MessageID: testMessageID, Content: "rewritten"})

	ev := readEvent(t, alice)
	if ev.Type != EventError {
		t.Fatalf("Got event %s, want %s", ev.Type, EventError)
	}
	var p ErrorPayload
	decodePayload(t, ev, &p)
	if p.Code != CodeForbidden || p.Op != OpEdit {
		t.Errorf("Got error %+v, want code %s on op %s", p, CodeForbidden, OpEdit)
	}
}

func TestGateway_DeleteBroadcastsIDsOnly(t *testing.T) {
	messages := &fakeMessages{
		T: t,
		del: func(t *testing.T, messageID string, requesterID int64) (*domain.Message, error) {
			return &domain.Message{ID: messageID, ChannelID: testChannelID, UserID: requesterID, Content: "secret"}, nil
		},
	}
	g := newGateway(t, &fakeChannels{T: t}, messages, &fakeNotifications{}, &fakePresence{})

	alice := g.dial(t, 1, 1)
	bob := g.dial(t, 2, 1)
	g.waitSubscribers(t, testChannelID, 2)

	writeOp(t, alice, Inbound{Op: OpDelete, MessageID: testMessageID})

	for _, c := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, c)
		if ev.Type != EventMessageDeleted {
			t.Fatalf("Got event %s, want %s", ev.Type, EventMessageDeleted)
		}
		if strings.Contains(string(ev.Payload), "secret") {
			t.Errorf("Tombstone broadcast leaked the message body: %s", ev.Payload)
		}
		var p MessageDeletedPayload
		decodePayload(t, ev, &p)
		if p.MessageID != testMessageID || p.ChannelID != testChannelID {
			t.Errorf("Unexpected tombstone payload: %+v", p)
		}
	}
}

func TestGateway_DuplicateReactionNotRebroadcast(t *testing.T) {
	messages := &fakeMessages{
		T: t,
		addReaction: func(t *testing.T, messageID string, userID int64, emoji string) (*domain.Message, *domain.Reaction, bool, error) {
			msg := &domain.Message{ID: messageID, ChannelID: testChannelID}
			rc := &domain.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}
			// Only the first thumbsup creates state.
			return msg, rc, emoji != "thumbsup_again", nil
		},
	}
	g := newGateway(t, &fakeChannels{T: t}, messages, &fakeNotifications{}, &fakePresence{})

	alice := g.dial(t, 1, 1)
	bob := g.dial(t, 2, 1)
	g.waitSubscribers(t, testChannelID, 2)

	// The duplicate must produce no event; the marker reaction sent
	// afterwards must be the next thing bob sees.
	writeOp(t, alice, Inbound{Op: OpReactionAdd, MessageID: testMessageID, Emoji: "thumbsup_again"})
	writeOp(t, alice, Inbound{Op: OpReactionAdd, MessageID: testMessageID, Emoji: "heart"})

	ev := readEvent(t, bob)
	if ev.Type != EventReactionAdded {
		t.Fatalf("Got event %s, want %s", ev.Type, EventReactionAdded)
	}
	var p ReactionPayload
	decodePayload(t, ev, &p)
	if p.Emoji != "heart" {
		t.Errorf("Got emoji %q, want heart (the duplicate must not broadcast)", p.Emoji)
	}
}

func TestGateway_TypingExcludesSender(t *testing.T) {
	messages := &fakeMessages{
		T: t,
		send: func(t *testing.T, in service.SendInput) (*domain.Message, []domain.Membership, error) {
			return &domain.Message{ID: testMessageID, ChannelID: in.ChannelID, UserID: in.UserID, Content: in.Content, Type: domain.MessageText}, nil, nil
		},
	}
	g := newGateway(t, &fakeChannels{T: t}, messages, &fakeNotifications{}, &fakePresence{})

	alice := g.dial(t, 1, 1)
	bob := g.dial(t, 2, 1)
	g.waitSubscribers(t, testChannelID, 2)

	writeOp(t, alice, Inbound{Op: OpTypingStart, ChannelID: testChannelID})

	ev := readEvent(t, bob)
	if ev.Type != EventTypingStart {
		t.Fatalf("Got event %s, want %s", ev.Type, EventTypingStart)
	}
	var p TypingPayload
	decodePayload(t, ev, &p)
	if p.UserID != 1 || p.ChannelID != testChannelID {
		t.Errorf("Unexpected typing payload: %+v", p)
	}

	// Alice must not see her own typing event: the next event she
	// receives is the message broadcast, not typing.start.
	writeOp(t, alice, Inbound{Op: OpSend, ChannelID: testChannelID, Content: "done typing"})
	if ev := readEvent(t, alice); ev.Type != EventMessageNew {
		t.Errorf("Got event %s, want %s (sender must not receive own typing)", ev.Type, EventMessageNew)
	}
}

func TestGateway_TypingExpiresWithoutStop(t *testing.T) {
	g := newGateway(t, &fakeChannels{T: t}, &fakeMessages{T: t}, &fakeNotifications{}, &fakePresence{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.server.RunTypingSweeper(ctx)

	alice := g.dial(t, 1, 1)
	bob := g.dial(t, 2, 1)
	g.waitSubscribers(t, testChannelID, 2)

	writeOp(t, alice, Inbound{Op: OpTypingStart, ChannelID: testChannelID})

	if ev := readEvent(t, bob); ev.Type != EventTypingStart {
		t.Fatalf("Got event %s, want %s", ev.Type, EventTypingStart)
	}
	// No explicit stop: the sweeper must broadcast one within the TTL.
	ev := readEvent(t, bob)
	if ev.Type != EventTypingStop {
		t.Fatalf("Got event %s, want %s after expiry", ev.Type, EventTypingStop)
	}
	var p TypingPayload
	decodePayload(t, ev, &p)
	if p.UserID != 1 {
		t.Errorf("Got user %d in expiry stop, want 1", p.UserID)
	}
}

func TestGateway_JoinForeignTenantChannelNotFound(t *testing.T) {
	otherChannel := "0a64d6b1-5a6e-4c58-8f2d-7f3b1a9c2d44"
	channels := &fakeChannels{
		T: t,
		channel: func(t *testing.T, id string) (*domain.Channel, error) {
			return &domain.Channel{ID: id, TenantID: 99, Type: domain.ChannelPublic}, nil
		},
		memberIDs: func(t *testing.T, tenantID, userID int64) ([]string, error) {
			return nil, nil
		},
	}
	g := newGateway(t, channels, &fakeMessages{T: t}, &fakeNotifications{}, &fakePresence{})

	alice := g.dial(t, 1, 1)
	writeOp(t, alice, Inbound{Op: OpJoin, ChannelID: otherChannel})

	ev := readEvent(t, alice)
	if ev.Type != EventError {
		t.Fatalf("Got event %s, want %s", ev.Type, EventError)
	}
	var p ErrorPayload
	decodePayload(t, ev, &p)
	// Cross-tenant channels look nonexistent, never forbidden.
	if p.Code != CodeNotFound {
		t.Errorf("Got code %s, want %s", p.Code, CodeNotFound)
	}
}

func TestGateway_LeaveRequiresSubscription(t *testing.T) {
	g := newGateway(t, &fakeChannels{T: t}, &fakeMessages{T: t}, &fakeNotifications{}, &fakePresence{})
	alice := g.dial(t, 1, 1)

	// Never subscribed to this channel.
	writeOp(t, alice, Inbound{Op: OpLeave, ChannelID: "3c1f7d2a-88b4-4b9e-9a31-0d2e4f6a8c10"})
	ev := readEvent(t, alice)
	if ev.Type != EventError {
		t.Fatalf("Got event %s, want %s", ev.Type, EventError)
	}
	var p ErrorPayload
	decodePayload(t, ev, &p)
	if p.Code != CodeValidationFailed {
		t.Errorf("Got code %q, want %q", p.Code, CodeValidationFailed)
	}

	// The auto-subscribed channel leaves silently; a second leave of
	// the same channel fails, proving the first one unsubscribed.
	writeOp(t, alice, Inbound{Op: OpLeave, ChannelID: testChannelID})
	writeOp(t, alice, Inbound{Op: OpLeave, ChannelID: testChannelID})
	ev = readEvent(t, alice)
	if ev.Type != EventError {
		t.Fatalf("Got event %s after a repeated leave, want %s", ev.Type, EventError)
	}
}

func TestGateway_PublicJoinAnnouncesSystemMessage(t *testing.T) {
	fresh := "0a64d6b1-5a6e-4c58-8f2d-7f3b1a9c2d44"
	channels := &fakeChannels{
		T: t,
		membership: func(t *testing.T, channelID string, userID int64) (*domain.Membership, error) {
			if channelID == fresh {
				return nil, domain.ErrNotMember
			}
			return &domain.Membership{ChannelID: channelID, UserID: userID}, nil
		},
	}
	notifs := &fakeNotifications{}
	messages := &fakeMessages{
		T: t,
		send: func(t *testing.T, in service.SendInput) (*domain.Message, []domain.Membership, error) {
			if in.Type != domain.MessageSystem {
				t.Errorf("Got message type %q, want system", in.Type)
			}
			return &domain.Message{
				ID:        testMessageID,
				ChannelID: in.ChannelID,
				UserID:    in.UserID,
				Content:   in.Content,
				Type:      in.Type,
			}, nil, nil
		},
	}
	g := newGateway(t, channels, messages, notifs, &fakePresence{})

	alice := g.dial(t, 1, 1)
	writeOp(t, alice, Inbound{Op: OpJoin, ChannelID: fresh})

	ev := readEvent(t, alice)
	if ev.Type != EventMessageNew {
		t.Fatalf("Got event %s, want %s", ev.Type, EventMessageNew)
	}
	var p MessagePayload
	decodePayload(t, ev, &p)
	if p.Type != string(domain.MessageSystem) || p.ChannelID != fresh {
		t.Errorf("Unexpected announcement payload: %+v", p)
	}
	if got := notifs.calls(); len(got) != 0 {
		t.Errorf("Got %d notify calls for a join announcement, want 0", len(got))
	}
}

func TestGateway_UnknownOpRejected(t *testing.T) {
	g := newGateway(t, &fakeChannels{T: t}, &fakeMessages{T: t}, &fakeNotifications{}, &fakePresence{})

	alice := g.dial(t, 1, 1)
	writeOp(t, alice, Inbound{Op: "selfdestruct"})

	ev := readEvent(t, alice)
	if ev.Type != EventError {
		t.Fatalf("Got event %s, want %s", ev.Type, EventError)
	}
	var p ErrorPayload
	decodePayload(t, ev, &p)
	if p.Code != CodeValidationFailed {
		t.Errorf("Got code %s, want %s", p.Code, CodeValidationFailed)
	}
}

func TestGateway_PresenceUpdateBroadcastsToTenant(t *testing.T) {
	g := newGateway(t, &fakeChannels{T: t}, &fakeMessages{T: t}, &fakeNotifications{}, &fakePresence{})

	alice := g.dial(t, 1, 1)
	bob := g.dial(t, 2, 1)
	g.waitSubscribers(t, testChannelID, 2)

	writeOp(t, alice, Inbound{Op: OpPresenceUpdate, Status: "away"})

	for _, c := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, c)
		if ev.Type != EventPresenceUpdated {
			t.Fatalf("Got event %s, want %s", ev.Type, EventPresenceUpdated)
		}
		var p PresencePayload
		decodePayload(t, ev, &p)
		if p.UserID != 1 || p.Status != "away" {
			t.Errorf("Unexpected presence payload: %+v", p)
		}
	}
}

func TestGateway_InvalidChannelIDRejected(t *testing.T) {
	g := newGateway(t, &fakeChannels{T: t}, &fakeMessages{T: t}, &fakeNotifications{}, &fakePresence{})

	alice := g.dial(t, 1, 1)
	writeOp(t, alice, Inbound{Op: OpSend, ChannelID: "not-a-uuid", Content: "hi"})

	ev := readEvent(t, alice)
	if ev.Type != EventError {
		t.Fatalf("Got event %s, want %s", ev.Type, EventError)
	}
	var p ErrorPayload
	decodePayload(t, ev, &p)
	if p.Code != CodeValidationFailed || p.Op != OpSend {
		t.Errorf("Got error %+v, want %s on op %s", p, CodeValidationFailed, OpSend)
	}
}
