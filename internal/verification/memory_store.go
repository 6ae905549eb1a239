package verification

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore keeps verification codes in process memory. Used when Redis is
// not configured, and in tests. Codes do not survive restarts.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]memoryEntry
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]memoryEntry)}
}

// Put stores code for email with the given TTL, replacing any pending code.
func (s *MemoryStore) Put(ctx context.Context, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[email] = memoryEntry{code: code, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Consume checks code against the pending entry for email and removes it on match.
func (s *MemoryStore) Consume(ctx context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[email]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.m, email)
		return ErrCodeNotFound
	}
	if e.code != code {
		return ErrCodeMismatch
	}
	delete(s.m, email)
	return nil
}
