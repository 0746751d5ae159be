package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cwrk-planet/messaging-service/internal/cache"
	"github.com/cwrk-planet/messaging-service/internal/domain"
)

const maxContentLen = 4000

// MessageStore persists messages together with their attachments,
// mentions and reactions.
type MessageStore interface {
	Insert(ctx context.Context, m *domain.Message) error
	Get(ctx context.Context, id string) (*domain.Message, error)
	UpdateContent(ctx context.Context, id, content string) (*domain.Message, error)
	SoftDelete(ctx context.Context, id string) error
	History(ctx context.Context, channelID, after string, limit int) ([]domain.Message, string, error)
	AddReaction(ctx context.Context, rc *domain.Reaction) (bool, error)
	RemoveReaction(ctx context.Context, messageID string, userID int64, emoji string) (bool, error)
	ListReactions(ctx context.Context, messageID string) ([]domain.Reaction, error)
}

// MembershipStore is the slice of membership persistence the message
// path needs.
type MembershipStore interface {
	Get(ctx context.Context, channelID string, userID int64) (*domain.Membership, error)
	ListMembers(ctx context.Context, channelID string) ([]domain.Membership, error)
}

// ChannelGetter resolves a channel id to its row.
type ChannelGetter interface {
	Get(ctx context.Context, id string) (*domain.Channel, error)
}

type MessageService struct {
	msgRepo     MessageStore
	memberRepo  MembershipStore
	channelRepo ChannelGetter
	cache       ListCache
}

func NewMessageService(msgRepo MessageStore, memberRepo MembershipStore, channelRepo ChannelGetter, c ListCache) *MessageService {
	return &MessageService{
		msgRepo:     msgRepo,
		memberRepo:  memberRepo,
		channelRepo: channelRepo,
		cache:       c,
	}
}

type SendInput struct {
	ChannelID   string
	UserID      int64
	Content     string
	ParentID    *string
	Type        domain.MessageType
	Attachments []domain.Attachment
	Mentions    []int64
}

// Send validates and persists a message, then synchronously invalidates
// every member's cached channel list (their unread count changed).
// The channel member set is returned so the caller can fan out
// notifications without a second lookup.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*domain.Message, []domain.Membership, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, nil, fmt.Errorf("%w: empty content", domain.ErrValidation)
	}
	if len(content) > maxContentLen {
		return nil, nil, fmt.Errorf("%w: content exceeds %d bytes", domain.ErrValidation, maxContentLen)
	}
	for _, a := range in.Attachments {
		if strings.TrimSpace(a.URL) == "" || strings.TrimSpace(a.Name) == "" {
			return nil, nil, fmt.Errorf("%w: malformed attachment reference", domain.ErrValidation)
		}
	}

	ch, err := s.channelRepo.Get(ctx, in.ChannelID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.memberRepo.Get(ctx, in.ChannelID, in.UserID); err != nil {
		return nil, nil, err
	}
	if in.ParentID != nil {
		parent, err := s.msgRepo.Get(ctx, *in.ParentID)
		if err != nil {
			return nil, nil, fmt.Errorf("parent: %w", err)
		}
		if parent.ChannelID != in.ChannelID {
			return nil, nil, fmt.Errorf("%w: parent belongs to another channel", domain.ErrValidation)
		}
	}

	msgType := in.Type
	if msgType == "" {
		msgType = domain.MessageText
	}
	m := &domain.Message{
		ChannelID:   in.ChannelID,
		UserID:      in.UserID,
		Content:     content,
		ParentID:    in.ParentID,
		Type:        msgType,
		Attachments: in.Attachments,
		Mentions:    in.Mentions,
	}
	if err := s.msgRepo.Insert(ctx, m); err != nil {
		return nil, nil, fmt.Errorf("msgRepo.Insert: %w", err)
	}

	members, err := s.memberRepo.ListMembers(ctx, in.ChannelID)
	if err != nil {
		return nil, nil, fmt.Errorf("list members: %w", err)
	}
	for _, mm := range members {
		if err := s.cache.Invalidate(ctx, cache.KindPrefix(ch.TenantID, mm.UserID, cacheKindChannels)); err != nil {
			return nil, nil, fmt.Errorf("invalidate channel list: %w", err)
		}
	}
	return m, members, nil
}

// Edit updates the body. Author only; tombstoned messages reject edits.
func (s *MessageService) Edit(ctx context.Context, messageID string, editorID int64, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", domain.ErrValidation)
	}
	if len(content) > maxContentLen {
		return nil, fmt.Errorf("%w: content exceeds %d bytes", domain.ErrValidation, maxContentLen)
	}

	m, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.UserID != editorID {
		return nil, fmt.Errorf("%w: not the message author", domain.ErrForbidden)
	}
	return s.msgRepo.UpdateContent(ctx, messageID, content)
}

// Delete sets the tombstone, then synchronously invalidates every
// member's cached channel list: the tombstoned row leaves their unread
// counts. Author only. The message is returned so the caller knows the
// affected channel.
func (s *MessageService) Delete(ctx context.Context, messageID string, requesterID int64) (*domain.Message, error) {
	m, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.UserID != requesterID {
		return nil, fmt.Errorf("%w: not the message author", domain.ErrForbidden)
	}
	ch, err := s.channelRepo.Get(ctx, m.ChannelID)
	if err != nil {
		return nil, err
	}
	if err := s.msgRepo.SoftDelete(ctx, messageID); err != nil {
		return nil, err
	}

	members, err := s.memberRepo.ListMembers(ctx, m.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	for _, mm := range members {
		if err := s.cache.Invalidate(ctx, cache.KindPrefix(ch.TenantID, mm.UserID, cacheKindChannels)); err != nil {
			return nil, fmt.Errorf("invalidate channel list: %w", err)
		}
	}
	return m, nil
}

// AddReaction upserts the (message, user, emoji) triple. The bool
// reports whether it was new; repeating the call is a no-op.
func (s *MessageService) AddReaction(ctx context.Context, messageID string, userID int64, emoji string) (*domain.Message, *domain.Reaction, bool, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, nil, false, fmt.Errorf("%w: empty emoji", domain.ErrValidation)
	}
	m, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		return nil, nil, false, err
	}
	if _, err := s.memberRepo.Get(ctx, m.ChannelID, userID); err != nil {
		return nil, nil, false, err
	}

	rc := &domain.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}
	created, err := s.msgRepo.AddReaction(ctx, rc)
	if err != nil {
		return nil, nil, false, fmt.Errorf("add reaction: %w", err)
	}
	return m, rc, created, nil
}

// RemoveReaction deletes the triple; a missing triple is a no-op.
func (s *MessageService) RemoveReaction(ctx context.Context, messageID string, userID int64, emoji string) (*domain.Message, bool, error) {
	m, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.memberRepo.Get(ctx, m.ChannelID, userID); err != nil {
		return nil, false, err
	}
	removed, err := s.msgRepo.RemoveReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return nil, false, fmt.Errorf("remove reaction: %w", err)
	}
	return m, removed, nil
}

// Reactions lists a message's reactions, oldest first. The requester
// must be a member of the channel.
func (s *MessageService) Reactions(ctx context.Context, messageID string, userID int64) ([]domain.Reaction, error) {
	m, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.memberRepo.Get(ctx, m.ChannelID, userID); err != nil {
		return nil, err
	}
	return s.msgRepo.ListReactions(ctx, messageID)
}

// History pages backwards through channel messages. The requester must
// be a member; tombstones come back as placeholders.
func (s *MessageService) History(ctx context.Context, channelID string, userID int64, after string, limit int) ([]domain.Message, string, error) {
	if _, err := s.memberRepo.Get(ctx, channelID, userID); err != nil {
		return nil, "", err
	}
	return s.msgRepo.History(ctx, channelID, after, limit)
}
