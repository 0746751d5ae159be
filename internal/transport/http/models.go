package http

import (
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateChannelRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Type        string  `json:"type" validate:"required,oneof=public private direct"`
	DirectPeer  int64   `json:"direct_peer,omitempty"`
}

type ChannelItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Icon        *string   `json:"icon,omitempty"`
	Type        string    `json:"type"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`

	Role        string `json:"role,omitempty"`
	Muted       bool   `json:"muted,omitempty"`
	UnreadCount int64  `json:"unread_count"`
}

type ChannelsListResponse struct {
	Items []ChannelItem `json:"items"`
}

type InviteRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

type MuteRequest struct {
	Muted bool `json:"muted"`
}

type MemberItem struct {
	UserID   int64     `json:"user_id"`
	Role     string    `json:"role"`
	Muted    bool      `json:"muted"`
	JoinedAt time.Time `json:"joined_at"`
}

type MembersResponse struct {
	Items []MemberItem `json:"items"`
}

type AttachmentItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Position    int    `json:"position"`
}

type ReactionItem struct {
	UserID    int64     `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageItem struct {
	ID          string           `json:"id"`
	ChannelID   string           `json:"channel_id"`
	UserID      int64            `json:"user_id"`
	Content     string           `json:"content"`
	ParentID    *string          `json:"parent_id,omitempty"`
	Type        string           `json:"type"`
	CreatedAt   time.Time        `json:"created_at"`
	EditedAt    *time.Time       `json:"edited_at,omitempty"`
	DeletedAt   *time.Time       `json:"deleted_at,omitempty"`
	Attachments []AttachmentItem `json:"attachments,omitempty"`
	Mentions    []int64          `json:"mentions,omitempty"`
	Reactions   []ReactionItem   `json:"reactions,omitempty"`
}

type HistoryResponse struct {
	Items      []MessageItem `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type ReactionsResponse struct {
	Items []ReactionItem `json:"items"`
}

type NotificationItem struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	MessageID *string   `json:"message_id,omitempty"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationsResponse struct {
	Items      []NotificationItem `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type PresenceItem struct {
	UserID   int64     `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

func channelItem(it domain.ChannelListItem) ChannelItem {
	return ChannelItem{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		Icon:        it.Icon,
		Type:        string(it.Type),
		CreatedBy:   it.CreatedBy,
		CreatedAt:   it.CreatedAt,
		Role:        string(it.Role),
		Muted:       it.Muted,
		UnreadCount: it.UnreadCount,
	}
}

func messageItem(m domain.Message) MessageItem {
	out := MessageItem{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		UserID:    m.UserID,
		Content:   m.Content,
		ParentID:  m.ParentID,
		Type:      string(m.Type),
		CreatedAt: m.CreatedAt,
		EditedAt:  m.EditedAt,
		DeletedAt: m.DeletedAt,
		Mentions:  m.Mentions,
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, AttachmentItem{
			ID:          a.ID,
			Name:        a.Name,
			URL:         a.URL,
			ContentType: a.ContentType,
			Position:    a.Position,
		})
	}
	for _, r := range m.Reactions {
		out.Reactions = append(out.Reactions, ReactionItem{
			UserID:    r.UserID,
			Emoji:     r.Emoji,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

func notificationItem(n domain.Notification) NotificationItem {
	return NotificationItem{
		ID:        n.ID,
		ChannelID: n.ChannelID,
		MessageID: n.MessageID,
		Kind:      string(n.Kind),
		Body:      n.Body,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}
