package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryTokenStore is an in-memory TokenStore with per-token expiry.
// Suitable for single-process deployments and tests; a multi-instance
// deployment would back this with the sessions of an identity provider.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]memoryToken

	// now is overridable for tests.
	now func() time.Time
}

type memoryToken struct {
	identity  Identity
	expiresAt time.Time
}

// NewMemoryTokenStore returns an empty token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]memoryToken),
		now:    time.Now,
	}
}

// Issue registers a token for an identity with the given time to live.
func (s *MemoryTokenStore) Issue(token string, id Identity, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = memoryToken{identity: id, expiresAt: s.now().Add(ttl)}
}

// Revoke removes a token. Revoking an unknown token is a no-op.
func (s *MemoryTokenStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// Resolve implements TokenStore. Expired tokens are removed lazily.
func (s *MemoryTokenStore) Resolve(_ context.Context, token string) (Identity, error) {
	s.mu.RLock()
	entry, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.tokens, token)
		s.mu.Unlock()
		return Identity{}, ErrInvalidToken
	}
	return entry.identity, nil
}
