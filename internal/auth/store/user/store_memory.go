// Package user stores accounts of the local auth backend.
package user

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"peoplehub/internal/auth/models"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/sentinel"
)

// InMemoryStore keeps users in memory. Emails are unique case-insensitively.
type InMemoryStore struct {
	mu      sync.RWMutex
	users   map[id.IdentityID]*models.User
	byEmail map[string]id.IdentityID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[id.IdentityID]*models.User),
		byEmail: make(map[string]id.IdentityID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, ok := s.byEmail[key]; ok {
		return fmt.Errorf("user %s: %w", user.Email, sentinel.ErrConflict)
	}
	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrConflict)
	}
	s.users[user.ID] = clone(user)
	s.byEmail[key] = user.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, identityID id.IdentityID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[identityID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", identityID, sentinel.ErrNotFound)
	}
	return clone(user), nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identityID, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, sentinel.ErrNotFound)
	}
	return clone(s.users[identityID]), nil
}

// Update replaces the stored user. A changed email must stay unique.
func (s *InMemoryStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrNotFound)
	}
	oldKey, newKey := strings.ToLower(current.Email), strings.ToLower(user.Email)
	if oldKey != newKey {
		if _, taken := s.byEmail[newKey]; taken {
			return fmt.Errorf("user %s: %w", user.Email, sentinel.ErrConflict)
		}
		delete(s.byEmail, oldKey)
		s.byEmail[newKey] = user.ID
	}
	s.users[user.ID] = clone(user)
	return nil
}

func clone(user *models.User) *models.User {
	cp := *user
	cp.PasswordHash = append([]byte(nil), user.PasswordHash...)
	cp.Metadata = maps.Clone(user.Metadata)
	return &cp
}
