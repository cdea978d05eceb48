// Package profile stores profile rows. Enriched fields are never persisted.
package profile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"peoplehub/internal/profile/models"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles keyed by id for tests and demo installs.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.ProfileID]*models.Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.ProfileID]*models.Profile)}
}

func (s *InMemoryStore) FindByID(_ context.Context, profileID id.ProfileID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
	}
	return p.Clone(), nil
}

// Create inserts a new profile and fails with ErrConflict when the id exists.
func (s *InMemoryStore) Create(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; ok {
		return fmt.Errorf("profile %s: %w", p.ID, sentinel.ErrConflict)
	}
	s.profiles[p.ID] = persisted(p)
	return nil
}

// Save inserts or replaces a profile.
func (s *InMemoryStore) Save(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = persisted(p)
	return nil
}

func (s *InMemoryStore) TouchLastLogin(_ context.Context, profileID id.ProfileID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
	}
	p.LastLogin = &at
	return nil
}

func (s *InMemoryStore) FindEmail(_ context.Context, profileID id.ProfileID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return "", fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
	}
	return p.Email, nil
}

func (s *InMemoryStore) UpdateEmail(_ context.Context, profileID id.ProfileID, email string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
	}
	p.Email = email
	p.UpdatedAt = at
	return nil
}

// UpdateStatus changes the access-relevant fields of a profile.
func (s *InMemoryStore) UpdateStatus(_ context.Context, profileID id.ProfileID, active bool, status models.EmploymentStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
	}
	p.IsActive = active
	p.EmploymentStatus = status
	p.UpdatedAt = at
	return nil
}

// persisted drops the derived fields before storing a copy.
func persisted(p *models.Profile) *models.Profile {
	c := p.Clone()
	c.DisplayName = ""
	c.LinkedEmployeeID = ""
	c.Manager = nil
	c.Permissions = nil
	return c
}
