package ws

import (
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
)

// Inbound operations. One typed envelope, one dispatch switch; no
// string-keyed callback registration.
type Op string

const (
	OpJoin           Op = "join"
	OpLeave          Op = "leave"
	OpSend           Op = "send"
	OpEdit           Op = "edit"
	OpDelete         Op = "delete"
	OpReactionAdd    Op = "reaction.add"
	OpReactionRemove Op = "reaction.remove"
	OpTypingStart    Op = "typing.start"
	OpTypingStop     Op = "typing.stop"
	OpPresenceUpdate Op = "presence.update"
)

type Inbound struct {
	Op          Op              `json:"op"`
	ChannelID   string          `json:"channel_id,omitempty"`
	MessageID   string          `json:"message_id,omitempty"`
	Content     string          `json:"content,omitempty"`
	ParentID    *string         `json:"parent_id,omitempty"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
	Mentions    []int64         `json:"mentions,omitempty"`
	Emoji       string          `json:"emoji,omitempty"`
	Status      string          `json:"status,omitempty"`
}

type AttachmentRef struct {
	Name        string `json:"name" validate:"required"`
	URL         string `json:"url" validate:"required,uri"`
	ContentType string `json:"content_type"`
}

// Per-op payloads carrying the validation tags.
type channelOp struct {
	ChannelID string `validate:"required,uuid"`
}

type sendOp struct {
	ChannelID string `validate:"required,uuid"`
	Content   string `validate:"required,max=4000"`
}

type editOp struct {
	MessageID string `validate:"required,uuid"`
	Content   string `validate:"required,max=4000"`
}

type messageOp struct {
	MessageID string `validate:"required,uuid"`
}

type reactionOp struct {
	MessageID string `validate:"required,uuid"`
	Emoji     string `validate:"required,max=64"`
}

type presenceOp struct {
	Status string `validate:"required,oneof=online away offline"`
}

// Outbound events.
type EventType string

const (
	EventMessageNew      EventType = "message.new"
	EventMessageEdited   EventType = "message.edited"
	EventMessageDeleted  EventType = "message.deleted"
	EventReactionAdded   EventType = "reaction.added"
	EventReactionRemoved EventType = "reaction.removed"
	EventTypingStart     EventType = "typing.start"
	EventTypingStop      EventType = "typing.stop"
	EventPresenceUpdated EventType = "presence.updated"
	EventNotification    EventType = "notification"
	EventError           EventType = "error"
)

type Event struct {
	Type    EventType `json:"event"`
	Payload any       `json:"payload"`
}

type MessagePayload struct {
	ID          string          `json:"id"`
	ChannelID   string          `json:"channel_id"`
	UserID      int64           `json:"user_id"`
	Content     string          `json:"content"`
	ParentID    *string         `json:"parent_id,omitempty"`
	Type        string          `json:"type"`
	CreatedAt   time.Time       `json:"created_at"`
	EditedAt    *time.Time      `json:"edited_at,omitempty"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
	Mentions    []int64         `json:"mentions,omitempty"`
}

type MessageDeletedPayload struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
}

type ReactionPayload struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	UserID    int64  `json:"user_id"`
	Emoji     string `json:"emoji"`
}

type TypingPayload struct {
	ChannelID string `json:"channel_id"`
	UserID    int64  `json:"user_id"`
}

type PresencePayload struct {
	UserID   int64     `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

type NotificationPayload struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	MessageID *string   `json:"message_id,omitempty"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type ErrorPayload struct {
	Op      Op     `json:"op"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes reported back to the originating connection.
const (
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeValidationFailed   = "validation_failed"
	CodePersistenceFailure = "persistence_failure"
	CodeSlowConsumer       = "slow_consumer"
)

func messagePayload(m *domain.Message) MessagePayload {
	p := MessagePayload{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		UserID:    m.UserID,
		Content:   m.Content,
		ParentID:  m.ParentID,
		Type:      string(m.Type),
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
		Mentions:  m.Mentions,
	}
	for _, a := range m.Attachments {
		p.Attachments = append(p.Attachments, AttachmentRef{
			Name:        a.Name,
			URL:         a.URL,
			ContentType: a.ContentType,
		})
	}
	return p
}

func notificationPayload(n *domain.Notification) NotificationPayload {
	return NotificationPayload{
		ID:        n.ID,
		ChannelID: n.ChannelID,
		MessageID: n.MessageID,
		Kind:      string(n.Kind),
		Body:      n.Body,
		CreatedAt: n.CreatedAt,
	}
}
