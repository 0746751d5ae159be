package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cwrk-planet/messaging-service/internal/cache"
	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/postgres"
)

const cacheKindChannels = "channels"

type ChannelService struct {
	channelRepo *postgres.ChannelRepository
	memberRepo  *postgres.MembershipRepository
	cache       *cache.Cache
}

func NewChannelService(channelRepo *postgres.ChannelRepository, memberRepo *postgres.MembershipRepository, c *cache.Cache) *ChannelService {
	return &ChannelService{
		channelRepo: channelRepo,
		memberRepo:  memberRepo,
		cache:       c,
	}
}

type CreateChannelInput struct {
	TenantID    int64
	CreatorID   int64
	Name        string
	Description *string
	Icon        *string
	Type        domain.ChannelType
	// DirectPeer is the second participant of a direct channel.
	DirectPeer int64
}

// Create makes a channel and its initial memberships. A direct channel
// holds exactly the two participants and converges on an existing row
// when the pair already has one.
func (s *ChannelService) Create(ctx context.Context, in CreateChannelInput) (*domain.Channel, error) {
	name := strings.TrimSpace(in.Name)

	var members []domain.Membership
	switch in.Type {
	case domain.ChannelDirect:
		if in.DirectPeer == 0 || in.DirectPeer == in.CreatorID {
			return nil, fmt.Errorf("%w: direct channel needs a distinct peer", domain.ErrValidation)
		}
		if existing, err := s.channelRepo.FindDirect(ctx, in.TenantID, in.CreatorID, in.DirectPeer); err == nil {
			return existing, nil
		}
		members = []domain.Membership{
			{UserID: in.CreatorID, Role: domain.RoleMember},
			{UserID: in.DirectPeer, Role: domain.RoleMember},
		}
	case domain.ChannelPublic, domain.ChannelPrivate:
		if name == "" {
			return nil, fmt.Errorf("%w: channel name is required", domain.ErrValidation)
		}
		members = []domain.Membership{{UserID: in.CreatorID, Role: domain.RoleOwner}}
	default:
		return nil, fmt.Errorf("%w: unknown channel type %q", domain.ErrValidation, in.Type)
	}

	ch := &domain.Channel{
		TenantID:    in.TenantID,
		Name:        name,
		Description: in.Description,
		Icon:        in.Icon,
		Type:        in.Type,
		CreatedBy:   in.CreatorID,
	}
	if err := s.channelRepo.Create(ctx, ch, members); err != nil {
		return nil, fmt.Errorf("channelRepo.Create: %w", err)
	}

	for _, m := range members {
		if err := s.cache.Invalidate(ctx, cache.KindPrefix(in.TenantID, m.UserID, cacheKindChannels)); err != nil {
			return nil, fmt.Errorf("invalidate channel list: %w", err)
		}
	}
	return ch, nil
}

func (s *ChannelService) Channel(ctx context.Context, id string) (*domain.Channel, error) {
	return s.channelRepo.Get(ctx, id)
}

// List returns the user's channels with unread counts, through the
// read-through cache.
func (s *ChannelService) List(ctx context.Context, tenantID, userID int64) ([]domain.ChannelListItem, error) {
	var items []domain.ChannelListItem
	key := cache.Key(tenantID, userID, cacheKindChannels)
	err := s.cache.GetOrCompute(ctx, key, &items, func(ctx context.Context) (any, error) {
		return s.channelRepo.ListForUser(ctx, tenantID, userID)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Join adds the user to a public channel. Private and direct channels
// reject self-joins; membership there comes from an invite.
func (s *ChannelService) Join(ctx context.Context, channelID string, userID int64) (*domain.Membership, error) {
	ch, err := s.channelRepo.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch.Type != domain.ChannelPublic {
		return nil, fmt.Errorf("%w: channel is not public", domain.ErrForbidden)
	}

	m := &domain.Membership{ChannelID: channelID, UserID: userID, Role: domain.RoleMember}
	if err := s.memberRepo.Add(ctx, m); err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, cache.KindPrefix(ch.TenantID, userID, cacheKindChannels)); err != nil {
		return nil, fmt.Errorf("invalidate channel list: %w", err)
	}
	return m, nil
}

// Invite adds another user to a channel. The inviter must be an owner
// or moderator of the channel.
func (s *ChannelService) Invite(ctx context.Context, channelID string, inviterID, inviteeID int64) (*domain.Membership, error) {
	ch, err := s.channelRepo.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch.Type == domain.ChannelDirect {
		return nil, fmt.Errorf("%w: direct channels hold exactly two members", domain.ErrForbidden)
	}
	inviter, err := s.memberRepo.Get(ctx, channelID, inviterID)
	if err != nil {
		return nil, err
	}
	if !inviter.Role.CanInvite() {
		return nil, fmt.Errorf("%w: only owners and moderators invite", domain.ErrForbidden)
	}

	m := &domain.Membership{ChannelID: channelID, UserID: inviteeID, Role: domain.RoleMember}
	if err := s.memberRepo.Add(ctx, m); err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, cache.KindPrefix(ch.TenantID, inviteeID, cacheKindChannels)); err != nil {
		return nil, fmt.Errorf("invalidate channel list: %w", err)
	}
	return m, nil
}

func (s *ChannelService) Leave(ctx context.Context, channelID string, userID int64) error {
	ch, err := s.channelRepo.Get(ctx, channelID)
	if err != nil {
		return err
	}
	if err := s.memberRepo.Remove(ctx, channelID, userID); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, cache.KindPrefix(ch.TenantID, userID, cacheKindChannels)); err != nil {
		return fmt.Errorf("invalidate channel list: %w", err)
	}
	return nil
}

func (s *ChannelService) Membership(ctx context.Context, channelID string, userID int64) (*domain.Membership, error) {
	return s.memberRepo.Get(ctx, channelID, userID)
}

func (s *ChannelService) Members(ctx context.Context, channelID string) ([]domain.Membership, error) {
	return s.memberRepo.ListMembers(ctx, channelID)
}

// MemberChannelIDs lists the ids of the channels the user belongs to,
// used by the gateway to subscribe a fresh connection.
func (s *ChannelService) MemberChannelIDs(ctx context.Context, tenantID, userID int64) ([]string, error) {
	items, err := s.channelRepo.ListForUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids, nil
}

// MarkRead advances the member's read watermark and invalidates the
// cached channel list so unread counts refresh.
func (s *ChannelService) MarkRead(ctx context.Context, channelID string, userID int64) error {
	ch, err := s.channelRepo.Get(ctx, channelID)
	if err != nil {
		return err
	}
	if err := s.memberRepo.TouchLastRead(ctx, channelID, userID); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, cache.KindPrefix(ch.TenantID, userID, cacheKindChannels)); err != nil {
		return fmt.Errorf("invalidate channel list: %w", err)
	}
	return nil
}

// SetMuted flips notification muting on the user's own membership.
func (s *ChannelService) SetMuted(ctx context.Context, channelID string, userID int64, muted bool) error {
	return s.memberRepo.SetMuted(ctx, channelID, userID, muted)
}

// DeleteChannel removes a channel entirely. Owner only; never implicit.
func (s *ChannelService) DeleteChannel(ctx context.Context, channelID string, requesterID int64) error {
	ch, err := s.channelRepo.Get(ctx, channelID)
	if err != nil {
		return err
	}
	m, err := s.memberRepo.Get(ctx, channelID, requesterID)
	if err != nil {
		return err
	}
	if m.Role != domain.RoleOwner {
		return fmt.Errorf("%w: only the owner deletes a channel", domain.ErrForbidden)
	}
	members, err := s.memberRepo.ListMembers(ctx, channelID)
	if err != nil {
		return err
	}
	if err := s.channelRepo.Delete(ctx, channelID); err != nil {
		return err
	}
	for _, mm := range members {
		if err := s.cache.Invalidate(ctx, cache.KindPrefix(ch.TenantID, mm.UserID, cacheKindChannels)); err != nil {
			return fmt.Errorf("invalidate channel list: %w", err)
		}
	}
	return nil
}
