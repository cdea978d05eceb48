// Package link stores email links: which auth identity authenticates as which
// profile. Stores are pure I/O; primary bookkeeping lives in the service.
package link

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"peoplehub/internal/identity/models"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/sentinel"
)

// InMemoryStore keeps links keyed by identity id.
type InMemoryStore struct {
	mu    sync.RWMutex
	links map[id.IdentityID]*models.EmailLink
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{links: make(map[id.IdentityID]*models.EmailLink)}
}

func (s *InMemoryStore) FindByIdentity(_ context.Context, identityID id.IdentityID) (*models.EmailLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[identityID]
	if !ok {
		return nil, fmt.Errorf("link for identity %s: %w", identityID, sentinel.ErrNotFound)
	}
	c := *l
	return &c, nil
}

// ListByProfile returns the profile's links, oldest first.
func (s *InMemoryStore) ListByProfile(_ context.Context, profileID id.ProfileID) ([]*models.EmailLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EmailLink
	for _, l := range s.links {
		if l.ProfileID == profileID {
			c := *l
			out = append(out, &c)
		}
	}
	models.SortOldestFirst(out)
	return out, nil
}

// Upsert inserts or replaces the link keyed by identity id. CreatedAt of an
// existing link is preserved.
func (s *InMemoryStore) Upsert(_ context.Context, link *models.EmailLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *link
	if existing, ok := s.links[link.IdentityID]; ok {
		c.CreatedAt = existing.CreatedAt
	}
	s.links[link.IdentityID] = &c
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, identityID id.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[identityID]; !ok {
		return fmt.Errorf("link for identity %s: %w", identityID, sentinel.ErrNotFound)
	}
	delete(s.links, identityID)
	return nil
}

// ClearPrimaryExcept unsets the primary flag on every other link of the profile.
func (s *InMemoryStore) ClearPrimaryExcept(_ context.Context, profileID id.ProfileID, keep id.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for identityID, l := range s.links {
		if l.ProfileID == profileID && identityID != keep && l.IsPrimary {
			c := *l
			c.IsPrimary = false
			s.links[identityID] = &c
		}
	}
	return nil
}

// ListProfileIDs returns every profile that owns at least one link.
func (s *InMemoryStore) ListProfileIDs(_ context.Context) ([]id.ProfileID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[id.ProfileID]struct{})
	for _, l := range s.links {
		seen[l.ProfileID] = struct{}{}
	}
	out := make([]id.ProfileID, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
