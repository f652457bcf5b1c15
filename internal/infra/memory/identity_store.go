package memory

import (
	"context"
	"sync"

	"trivia-client/internal/domain"
)

// IdentityStore is an in-process implementation of app.IdentityStore, used
// in tests and single-player development runs.
type IdentityStore struct {
	mu       sync.RWMutex
	identity *domain.Identity
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{}
}

// Load returns the stored identity or domain.ErrMissingIdentity.
func (s *IdentityStore) Load(_ context.Context) (domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return domain.Identity{}, domain.ErrMissingIdentity
	}
	return *s.identity, nil
}

// Save replaces the stored identity; the upstream entry flow calls this.
func (s *IdentityStore) Save(_ context.Context, identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = &identity
	return nil
}

// Clear removes the stored identity (the "back to home" flow).
func (s *IdentityStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	return nil
}
