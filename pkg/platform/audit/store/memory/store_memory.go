package memory

import (
	"context"
	"sync"

	id "peoplehub/pkg/domain"
	audit "peoplehub/pkg/platform/audit"
)

// InMemoryStore keeps events per profile. Used by tests and the demo mode.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.ProfileID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.ProfileID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ProfileID] = append(s.events[event.ProfileID], event)
	return nil
}

func (s *InMemoryStore) ListByProfile(_ context.Context, profileID id.ProfileID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[profileID]...), nil
}

// Actions returns the action names recorded for a profile, oldest first.
func (s *InMemoryStore) Actions(profileID id.ProfileID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.events[profileID]))
	for _, e := range s.events[profileID] {
		out = append(out, e.Action)
	}
	return out
}

// Emit lets the store stand in for a synchronous publisher in tests.
func (s *InMemoryStore) Emit(ctx context.Context, event audit.Event) error {
	return s.Append(ctx, event)
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.ProfileID][]audit.Event)
}
