package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/google/go-cmp/cmp"
)

type fakeMessageStore struct {
	T           *testing.T
	get         func(t *testing.T, id string) (*domain.Message, error)
	reactions   func(t *testing.T, messageID string) ([]domain.Reaction, error)
	softDeleted []string
}

func (f *fakeMessageStore) Insert(_ context.Context, m *domain.Message) error { return nil }

func (f *fakeMessageStore) Get(_ context.Context, id string) (*domain.Message, error) {
	if f.get == nil {
		return &domain.Message{ID: id, ChannelID: testChannelID, UserID: 1, Content: "hi"}, nil
	}
	return f.get(f.T, id)
}

func (f *fakeMessageStore) UpdateContent(_ context.Context, id, content string) (*domain.Message, error) {
	return &domain.Message{ID: id, ChannelID: testChannelID, UserID: 1, Content: content}, nil
}

func (f *fakeMessageStore) SoftDelete(_ context.Context, id string) error {
	f.softDeleted = append(f.softDeleted, id)
	return nil
}

func (f *fakeMessageStore) History(_ context.Context, channelID, after string, limit int) ([]domain.Message, string, error) {
	return nil, "", nil
}

func (f *fakeMessageStore) AddReaction(_ context.Context, rc *domain.Reaction) (bool, error) {
	return true, nil
}

func (f *fakeMessageStore) RemoveReaction(_ context.Context, messageID string, userID int64, emoji string) (bool, error) {
	return true, nil
}

func (f *fakeMessageStore) ListReactions(_ context.Context, messageID string) ([]domain.Reaction, error) {
	if f.reactions == nil {
		return nil, nil
	}
	return f.reactions(f.T, messageID)
}

type fakeMemberStore struct {
	T       *testing.T
	get     func(t *testing.T, channelID string, userID int64) (*domain.Membership, error)
	members []domain.Membership
}

func (f *fakeMemberStore) Get(_ context.Context, channelID string, userID int64) (*domain.Membership, error) {
	if f.get == nil {
		return &domain.Membership{ChannelID: channelID, UserID: userID, Role: domain.RoleMember}, nil
	}
	return f.get(f.T, channelID, userID)
}

func (f *fakeMemberStore) ListMembers(_ context.Context, channelID string) ([]domain.Membership, error) {
	return f.members, nil
}

type fakeChannelGetter struct {
	tenantID int64
}

func (f *fakeChannelGetter) Get(_ context.Context, id string) (*domain.Channel, error) {
	return &domain.Channel{ID: id, TenantID: f.tenantID, Type: domain.ChannelPublic}, nil
}

func TestMessageService_DeleteInvalidatesChannelLists(t *testing.T) {
	store := &fakeMessageStore{T: t}
	members := &fakeMemberStore{T: t, members: []domain.Membership{
		{ChannelID: testChannelID, UserID: 1},
		{ChannelID: testChannelID, UserID: 2},
		{ChannelID: testChannelID, UserID: 3},
	}}
	cache := &nopCache{}
	svc := NewMessageService(store, members, &fakeChannelGetter{tenantID: 9}, cache)

	if _, err := svc.Delete(context.Background(), testMessageID, 1); err != nil {
		t.Fatal(err)
	}
	if len(store.softDeleted) != 1 || store.softDeleted[0] != testMessageID {
		t.Fatalf("Tombstoned %v, want exactly %s", store.softDeleted, testMessageID)
	}
	// The tombstone changes every member's unread count, so every
	// member's cached channel list must be cleared before Delete
	// returns.
	want := []string{"msg:9:1:channels", "msg:9:2:channels", "msg:9:3:channels"}
	if diff := cmp.Diff(want, cache.invalidated); diff != "" {
		t.Errorf("Invalidated prefixes mismatch (-want +got):\n%s", diff)
	}
}

func TestMessageService_DeleteByNonAuthorLeavesCache(t *testing.T) {
	store := &fakeMessageStore{T: t}
	cache := &nopCache{}
	svc := NewMessageService(store, &fakeMemberStore{T: t}, &fakeChannelGetter{tenantID: 9}, cache)

	_, err := svc.Delete(context.Background(), testMessageID, 2)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("Got %v, want ErrForbidden", err)
	}
	if len(store.softDeleted) != 0 {
		t.Error("A non-author tombstoned the message")
	}
	if len(cache.invalidated) != 0 {
		t.Error("A rejected delete invalidated the cache")
	}
}

func TestMessageService_ReactionsRequireMembership(t *testing.T) {
	store := &fakeMessageStore{
		T: t,
		reactions: func(t *testing.T, messageID string) ([]domain.Reaction, error) {
			return []domain.Reaction{{MessageID: messageID, UserID: 1, Emoji: "thumbsup"}}, nil
		},
	}
	members := &fakeMemberStore{
		T: t,
		get: func(t *testing.T, channelID string, userID int64) (*domain.Membership, error) {
			if userID != 1 {
				return nil, domain.ErrNotMember
			}
			return &domain.Membership{ChannelID: channelID, UserID: userID}, nil
		},
	}
	svc := NewMessageService(store, members, &fakeChannelGetter{tenantID: 9}, &nopCache{})

	got, err := svc.Reactions(context.Background(), testMessageID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Emoji != "thumbsup" {
		t.Errorf("Got reactions %+v, want the single thumbsup", got)
	}

	if _, err := svc.Reactions(context.Background(), testMessageID, 5); !errors.Is(err, domain.ErrNotMember) {
		t.Errorf("Got %v for a non-member, want ErrNotMember", err)
	}
}
