package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/cwrk-planet/messaging-service/internal/domain"
)

// PresenceStore persists the per-user status record.
type PresenceStore interface {
	Upsert(ctx context.Context, userID int64, status domain.PresenceStatus) (*domain.Presence, error)
	Get(ctx context.Context, userID int64) (*domain.Presence, error)
	TouchLastSeen(ctx context.Context, userID int64) error
}

// PresenceService is the single source of truth for "is this user
// online". It keeps a live-connection count per user so that closing
// one of several connections never produces a spurious OFFLINE.
type PresenceService struct {
	store PresenceStore

	mu    sync.Mutex
	conns map[int64]int
}

func NewPresenceService(store PresenceStore) *PresenceService {
	return &PresenceService{
		store: store,
		conns: make(map[int64]int),
	}
}

// Connect registers one live connection. The first connection moves the
// user ONLINE; further connections only bump the counter.
func (s *PresenceService) Connect(ctx context.Context, userID int64) (*domain.Presence, bool, error) {
	s.mu.Lock()
	s.conns[userID]++
	first := s.conns[userID] == 1
	s.mu.Unlock()

	if !first {
		p, err := s.store.Get(ctx, userID)
		return p, false, err
	}
	p, err := s.store.Upsert(ctx, userID, domain.StatusOnline)
	if err != nil {
		return nil, false, fmt.Errorf("presence upsert: %w", err)
	}
	return p, true, nil
}

// Disconnect drops one live connection. Only the last close transitions
// the user OFFLINE; the bool reports whether that happened.
func (s *PresenceService) Disconnect(ctx context.Context, userID int64) (*domain.Presence, bool, error) {
	s.mu.Lock()
	if s.conns[userID] > 0 {
		s.conns[userID]--
	}
	last := s.conns[userID] == 0
	if last {
		delete(s.conns, userID)
	}
	s.mu.Unlock()

	if !last {
		p, err := s.store.Get(ctx, userID)
		return p, false, err
	}
	p, err := s.store.Upsert(ctx, userID, domain.StatusOffline)
	if err != nil {
		return nil, false, fmt.Errorf("presence upsert: %w", err)
	}
	return p, true, nil
}

// SetStatus applies an explicit status change. OFFLINE while connections
// remain open is rejected; it would contradict the connection count.
func (s *PresenceService) SetStatus(ctx context.Context, userID int64, status domain.PresenceStatus) (*domain.Presence, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	if status == domain.StatusOffline {
		s.mu.Lock()
		open := s.conns[userID] > 0
		s.mu.Unlock()
		if open {
			return nil, fmt.Errorf("%w: connections still open", domain.ErrValidation)
		}
	}
	return s.store.Upsert(ctx, userID, status)
}

func (s *PresenceService) Get(ctx context.Context, userID int64) (*domain.Presence, error) {
	return s.store.Get(ctx, userID)
}

// TouchLastSeen refreshes activity without a status change.
func (s *PresenceService) TouchLastSeen(ctx context.Context, userID int64) error {
	return s.store.TouchLastSeen(ctx, userID)
}

// LiveConnections reports the current counter, for introspection.
func (s *PresenceService) LiveConnections(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[userID]
}
