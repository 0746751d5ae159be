package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/service"
	"github.com/cwrk-planet/messaging-service/internal/validate"

	"github.com/gorilla/websocket"
)

type ChannelSvc interface {
	Channel(ctx context.Context, id string) (*domain.Channel, error)
	Membership(ctx context.Context, channelID string, userID int64) (*domain.Membership, error)
	Join(ctx context.Context, channelID string, userID int64) (*domain.Membership, error)
	MemberChannelIDs(ctx context.Context, tenantID, userID int64) ([]string, error)
}

type MessageSvc interface {
	Send(ctx context.Context, in service.SendInput) (*domain.Message, []domain.Membership, error)
	Edit(ctx context.Context, messageID string, editorID int64, content string) (*domain.Message, error)
	Delete(ctx context.Context, messageID string, requesterID int64) (*domain.Message, error)
	AddReaction(ctx context.Context, messageID string, userID int64, emoji string) (*domain.Message, *domain.Reaction, bool, error)
	RemoveReaction(ctx context.Context, messageID string, userID int64, emoji string) (*domain.Message, bool, error)
}

type NotificationSvc interface {
	Notify(ctx context.Context, ev service.NotifyEvent, recipients []domain.Membership) (delivered, failed int)
}

type PresenceSvc interface {
	Connect(ctx context.Context, userID int64) (*domain.Presence, bool, error)
	Disconnect(ctx context.Context, userID int64) (*domain.Presence, bool, error)
	SetStatus(ctx context.Context, userID int64, status domain.PresenceStatus) (*domain.Presence, error)
}

// Server is the realtime gateway. It owns the connection lifecycle and
// the event protocol; persistence and fan-out happen through the
// service interfaces, strictly before any broadcast.
type Server struct {
	upgrader      websocket.Upgrader
	hub           *Hub
	typing        *TypingTracker
	channels      ChannelSvc
	messages      MessageSvc
	notifications NotificationSvc
	presence      PresenceSvc
	val           *validate.Validator

	pingEvery  time.Duration
	sendBuffer int
}

func NewServer(hub *Hub, typing *TypingTracker, channels ChannelSvc, messages MessageSvc, notifications NotificationSvc, presence PresenceSvc) *Server {
	return &Server{
		hub:           hub,
		typing:        typing,
		channels:      channels,
		messages:      messages,
		notifications: notifications,
		presence:      presence,
		val:           validate.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery:  15 * time.Second,
		sendBuffer: 64,
	}
}

func (s *Server) SetPingInterval(d time.Duration) {
	if d > 0 {
		s.pingEvery = d
	}
}

func (s *Server) SetSendBuffer(n int) {
	if n > 0 {
		s.sendBuffer = n
	}
}

// RunTypingSweeper drives the typing expiry loop until ctx is done.
// Expired assertions broadcast an implicit typing.stop.
func (s *Server) RunTypingSweeper(ctx context.Context) {
	s.typing.Run(ctx, func(p TypingPayload) {
		s.hub.Broadcast(p.ChannelID, Event{Type: EventTypingStop, Payload: p})
	})
}

// WS endpoint: GET /ws?access_token=...&user_id=...&tenant_id=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("access_token")) == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}
	uid, err := strconv.ParseInt(strings.TrimSpace(q.Get("user_id")), 10, 64)
	if err != nil || uid <= 0 {
		http.Error(w, "invalid user_id", http.StatusUnauthorized)
		return
	}
	tid, err := strconv.ParseInt(strings.TrimSpace(q.Get("tenant_id")), 10, 64)
	if err != nil || tid <= 0 {
		http.Error(w, "invalid tenant_id", http.StatusUnauthorized)
		return
	}

	wsc, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	ctx := r.Context()
	c := newConn(wsc, uid, tid, s.sendBuffer)

	if p, first, err := s.presence.Connect(ctx, uid); err != nil {
		slog.Warn("presence connect failed", "user", uid, "err", err)
	} else if first {
		s.hub.BroadcastTenant(tid, presenceEvent(p))
	}

	s.hub.Register(c)
	s.subscribeMemberChannels(ctx, c)

	go c.writeLoop(s.pingEvery)
	s.readLoop(ctx, c)

	// Disconnect cleanup mirrors an explicit leave: typing state,
	// subscriptions, then presence.
	for _, channelID := range s.typing.StopAll(uid) {
		s.hub.BroadcastExcept(channelID, c, Event{
			Type:    EventTypingStop,
			Payload: TypingPayload{ChannelID: channelID, UserID: uid},
		})
	}
	s.hub.Unregister(c)
	c.Close()

	if p, last, err := s.presence.Disconnect(ctx, uid); err != nil {
		slog.Warn("presence disconnect failed", "user", uid, "err", err)
	} else if last {
		s.hub.BroadcastTenant(tid, presenceEvent(p))
	}
}

// subscribeMemberChannels multiplexes every channel the user belongs to
// onto the fresh connection.
func (s *Server) subscribeMemberChannels(ctx context.Context, c *Conn) {
	ids, err := s.channels.MemberChannelIDs(ctx, c.tenantID, c.userID)
	if err != nil {
		slog.Warn("ws subscribe member channels failed", "user", c.userID, "err", err)
		return
	}
	for _, id := range ids {
		s.hub.Subscribe(c, id)
	}
	c.setState(stateSubscribed)
}

func (s *Server) readLoop(ctx context.Context, c *Conn) {
	defer c.Close()

	c.ws.SetReadLimit(1 << 20)
	c.ws.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.sendError(c, "", CodeValidationFailed, "malformed event")
			continue
		}
		// Events from one connection apply in arrival order; no
		// concurrent dispatch per connection.
		s.dispatch(ctx, c, in)
	}
}

func (s *Server) dispatch(ctx context.Context, c *Conn, in Inbound) {
	var err error
	switch in.Op {
	case OpJoin:
		err = s.handleJoin(ctx, c, in)
	case OpLeave:
		err = s.handleLeave(c, in)
	case OpSend:
		err = s.handleSend(ctx, c, in)
	case OpEdit:
		err = s.handleEdit(ctx, c, in)
	case OpDelete:
		err = s.handleDelete(ctx, c, in)
	case OpReactionAdd:
		err = s.handleReactionAdd(ctx, c, in)
	case OpReactionRemove:
		err = s.handleReactionRemove(ctx, c, in)
	case OpTypingStart:
		err = s.handleTyping(ctx, c, in, true)
	case OpTypingStop:
		err = s.handleTyping(ctx, c, in, false)
	case OpPresenceUpdate:
		err = s.handlePresenceUpdate(ctx, c, in)
	default:
		s.sendError(c, in.Op, CodeValidationFailed, "unknown op")
		return
	}
	if err != nil {
		s.sendError(c, in.Op, errorCode(err), err.Error())
	}
}

func (s *Server) handleJoin(ctx context.Context, c *Conn, in Inbound) error {
	if err := s.validateAs(channelOp{ChannelID: in.ChannelID}); err != nil {
		return err
	}
	ch, err := s.channels.Channel(ctx, in.ChannelID)
	if err != nil {
		return err
	}
	if ch.TenantID != c.tenantID {
		return domain.ErrChannelNotFound
	}

	joined := false
	if _, err := s.channels.Membership(ctx, in.ChannelID, c.userID); err != nil {
		if !errors.Is(err, domain.ErrNotMember) {
			return err
		}
		// Public channels are joinable by any tenant member, which
		// creates the membership on the spot.
		if _, err := s.channels.Join(ctx, in.ChannelID, c.userID); err != nil {
			if !errors.Is(err, domain.ErrAlreadyMember) {
				return err
			}
		} else {
			joined = true
		}
	}
	s.hub.Subscribe(c, in.ChannelID)
	if joined {
		s.Announce(ctx, in.ChannelID, c.userID, "joined the channel")
	}
	return nil
}

// Announce persists a system message in the channel and broadcasts it.
// System messages never generate notifications.
func (s *Server) Announce(ctx context.Context, channelID string, userID int64, text string) {
	msg, _, err := s.messages.Send(ctx, service.SendInput{
		ChannelID: channelID,
		UserID:    userID,
		Content:   text,
		Type:      domain.MessageSystem,
	})
	if err != nil {
		slog.Warn("system message failed", "channel", channelID, "err", err)
		return
	}
	s.hub.Broadcast(msg.ChannelID, Event{Type: EventMessageNew, Payload: messagePayload(msg)})
}

func (s *Server) handleLeave(c *Conn, in Inbound) error {
	if err := s.validateAs(channelOp{ChannelID: in.ChannelID}); err != nil {
		return err
	}
	if !s.hub.Subscribed(c, in.ChannelID) {
		return fmt.Errorf("%w: not subscribed to channel", domain.ErrValidation)
	}
	if s.typing.Stop(in.ChannelID, c.userID) {
		s.hub.BroadcastExcept(in.ChannelID, c, Event{
			Type:    EventTypingStop,
			Payload: TypingPayload{ChannelID: in.ChannelID, UserID: c.userID},
		})
	}
	s.hub.Unsubscribe(c, in.ChannelID)
	return nil
}

func (s *Server) handleSend(ctx context.Context, c *Conn, in Inbound) error {
	if err := s.validateAs(sendOp{ChannelID: in.ChannelID, Content: in.Content}); err != nil {
		return err
	}
	attachments := make([]domain.Attachment, 0, len(in.Attachments))
	for _, a := range in.Attachments {
		if err := s.validateAs(a); err != nil {
			return err
		}
		attachments = append(attachments, domain.Attachment{
			Name:        a.Name,
			URL:         a.URL,
			ContentType: a.ContentType,
		})
	}

	msg, members, err := s.messages.Send(ctx, service.SendInput{
		ChannelID:   in.ChannelID,
		UserID:      c.userID,
		Content:     in.Content,
		ParentID:    in.ParentID,
		Attachments: attachments,
		Mentions:    in.Mentions,
	})
	if err != nil {
		return err
	}

	// Persisted; now broadcast, sender echo included.
	s.hub.Broadcast(msg.ChannelID, Event{Type: EventMessageNew, Payload: messagePayload(msg)})

	if msg.Type != domain.MessageSystem {
		delivered, failed := s.notifications.Notify(ctx, service.NotifyEvent{
			TenantID:  c.tenantID,
			ChannelID: msg.ChannelID,
			MessageID: msg.ID,
			ActorID:   c.userID,
			Body:      summarize(msg.Content),
			Mentions:  msg.Mentions,
		}, members)
		slog.Debug("message fan-out", "message", msg.ID, "delivered", delivered, "failed", failed)
	}
	return nil
}

func (s *Server) handleEdit(ctx context.Context, c *Conn, in Inbound) error {
	if err := s.validateAs(editOp{MessageID: in.MessageID, Content: in.Content}); err != nil {
		return err
	}
	msg, err := s.messages.Edit(ctx, in.MessageID, c.userID, in.Content)
	if err != nil {
		return err
	}
	s.hub.Broadcast(msg.ChannelID, Event{Type: EventMessageEdited, Payload: messagePayload(msg)})
	return nil
}

func (s *Server) handleDelete(ctx context.Context, c *Conn, in Inbound) error {
	if err := s.validateAs(messageOp{MessageID: in.MessageID}); err != nil {
		return err
	}
	msg, err := s.messages.Delete(ctx, in.MessageID, c.userID)
	if err != nil {
		return err
	}
	// Tombstone broadcast carries ids only, never the body.
	s.hub.Broadcast(msg.ChannelID, Event{
		Type:    EventMessageDeleted,
		Payload: MessageDeletedPayload{MessageID: msg.ID, ChannelID: msg.ChannelID},
	})
	return nil
}

func (s *Server) handleReactionAdd(ctx context.Context, c *Conn, in Inbound) error {
	if err := s.validateAs(reactionOp{MessageID: in.MessageID, Emoji: in.Emoji}); err != nil {
		return err
	}
	msg, rc, created, err := s.messages.AddReaction(ctx, in.MessageID, c.userID, in.Emoji)
	if err != nil {
		return err
	}
	if !created {
		// Repeated add of the same triple changes nothing.
		return nil
	}
	s.hub.Broadcast(msg.ChannelID, Event{
		Type: EventReactionAdded,
		Payload: ReactionPayload{
			MessageID: rc.MessageID,
			ChannelID: msg.ChannelID,
			UserID:    rc.UserID,
			Emoji:     rc.Emoji,
		},
	})
	return nil
}

func (s *Server) handleReactionRemove(ctx context.Context, c *Conn, in Inbound) error {
	if err := s.validateAs(reactionOp{MessageID: in.MessageID, Emoji: in.Emoji}); err != nil {
		return err
	}
	msg, removed, err := s.messages.RemoveReaction(ctx, in.MessageID, c.userID, in.Emoji)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	s.hub.Broadcast(msg.ChannelID, Event{
		Type: EventReactionRemoved,
		Payload: ReactionPayload{
			MessageID: in.MessageID,
			ChannelID: msg.ChannelID,
			UserID:    c.userID,
			Emoji:     in.Emoji,
		},
	})
	return nil
}

func (s *Server) handleTyping(ctx context.Context, c *Conn, in Inbound, start bool) error {
	if err := s.validateAs(channelOp{ChannelID: in.ChannelID}); err != nil {
		return err
	}
	if _, err := s.channels.Membership(ctx, in.ChannelID, c.userID); err != nil {
		return err
	}

	payload := TypingPayload{ChannelID: in.ChannelID, UserID: c.userID}
	if start {
		s.typing.Start(in.ChannelID, c.userID)
		s.hub.BroadcastExcept(in.ChannelID, c, Event{Type: EventTypingStart, Payload: payload})
		return nil
	}
	if s.typing.Stop(in.ChannelID, c.userID) {
		s.hub.BroadcastExcept(in.ChannelID, c, Event{Type: EventTypingStop, Payload: payload})
	}
	return nil
}

func (s *Server) handlePresenceUpdate(ctx context.Context, c *Conn, in Inbound) error {
	if err := s.validateAs(presenceOp{Status: in.Status}); err != nil {
		return err
	}
	p, err := s.presence.SetStatus(ctx, c.userID, domain.PresenceStatus(in.Status))
	if err != nil {
		return err
	}
	s.hub.BroadcastTenant(c.tenantID, presenceEvent(p))
	return nil
}

// --- helpers ---

func (s *Server) validateAs(payload any) error {
	if errs := s.val.Struct(payload); len(errs) > 0 {
		return errors.Join(domain.ErrValidation, errs[0])
	}
	return nil
}

func (s *Server) sendError(c *Conn, op Op, code, msg string) {
	_ = c.enqueue(Event{
		Type:    EventError,
		Payload: ErrorPayload{Op: op, Code: code, Message: msg},
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotMember):
		return CodeForbidden
	case errors.Is(err, domain.ErrChannelNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrValidation):
		return CodeValidationFailed
	case errors.Is(err, domain.ErrSlowConsumer):
		return CodeSlowConsumer
	default:
		return CodePersistenceFailure
	}
}

func presenceEvent(p *domain.Presence) Event {
	return Event{
		Type: EventPresenceUpdated,
		Payload: PresencePayload{
			UserID:   p.UserID,
			Status:   string(p.Status),
			LastSeen: p.LastSeen,
		},
	}
}

func summarize(content string) string {
	const max = 120
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	runes := []rune(content)
	return string(runes[:max]) + "…"
}
