package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"peoplehub/internal/auth"
	"peoplehub/pkg/platform/sentinel"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// InMemoryStore keeps remembered sessions for the lifetime of the process.
// Entries are stored encoded so callers never share state with the store.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	clock   func() time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]entry), clock: time.Now}
}

// WithClock replaces the clock used for TTL checks.
func (s *InMemoryStore) WithClock(clock func() time.Time) *InMemoryStore {
	s.clock = clock
	return s
}

func (s *InMemoryStore) Save(_ context.Context, key string, session *auth.Session, ttl time.Duration) error {
	data, err := encode(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{data: data}
	if ttl > 0 {
		e.expiresAt = s.clock().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, key string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if ok && !e.expiresAt.IsZero() && !s.clock().Before(e.expiresAt) {
		delete(s.entries, key)
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("remembered session %s: %w", key, sentinel.ErrNotFound)
	}
	return decode(e.data)
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

var _ auth.SessionStore = (*InMemoryStore)(nil)
