package auth

import (
	"context"
	"sync"
	"time"
)

var _ RevocationStore = (*MemoryRevocationStore)(nil)

// MemoryRevocationStore keeps revoked token ids in process memory.
// Only suitable for a single instance; Redis backs multi-instance deployments.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, id)
		}
	}
	s.entries[tokenID] = until
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.entries[tokenID]
	if !ok {
		return false, nil
	}
	return !s.now().After(until), nil
}
