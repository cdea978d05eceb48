// Package lockout stores failed sign-in counters per email address.
//
// Error contract: Get returns sentinel.ErrNotFound when no failures are recorded.
package lockout

import (
	"context"
	"fmt"
	"sync"

	"peoplehub/internal/auth/models"
	"peoplehub/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.Lockout
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]models.Lockout)}
}

func (s *InMemoryStore) Get(_ context.Context, identifier string) (*models.Lockout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[identifier]
	if !ok {
		return nil, fmt.Errorf("lockout: %w", sentinel.ErrNotFound)
	}
	return &record, nil
}

func (s *InMemoryStore) Save(_ context.Context, record *models.Lockout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Identifier] = *record
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}
