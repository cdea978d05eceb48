// Package token stores the single-use opaque tokens of the local auth backend
// (rotating refresh tokens and password recovery tokens).
//
// Error contract:
//   - ErrNotFound when no token has the hash
//   - ErrAlreadyUsed / ErrExpired when the token cannot be consumed; the record
//     is still returned so callers can detect replays
package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"peoplehub/internal/auth/models"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/sentinel"
)

// InMemoryStore keeps token records in memory for tests and single-process installs.
type InMemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*models.TokenRecord
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{tokens: make(map[string]*models.TokenRecord)}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[record.Hash]; ok {
		return fmt.Errorf("token: %w", sentinel.ErrConflict)
	}
	cp := *record
	s.tokens[record.Hash] = &cp
	return nil
}

// Consume marks the token as used when it is valid at now.
func (s *InMemoryStore) Consume(_ context.Context, kind models.TokenKind, hash string, now time.Time) (*models.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[hash]
	if !ok || record.Kind != kind {
		return nil, fmt.Errorf("%s token: %w", kind, sentinel.ErrNotFound)
	}
	if err := record.ValidateForConsume(now); err != nil {
		cp := *record
		return &cp, err
	}
	record.MarkUsed(now)
	cp := *record
	return &cp, nil
}

// DeleteByIdentity drops every token of the identity and returns how many were removed.
func (s *InMemoryStore) DeleteByIdentity(_ context.Context, identityID id.IdentityID, kind models.TokenKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for hash, record := range s.tokens {
		if record.IdentityID == identityID && record.Kind == kind {
			delete(s.tokens, hash)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteExpired removes tokens that expired before now.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for hash, record := range s.tokens {
		if record.ExpiresAt.Before(now) {
			delete(s.tokens, hash)
			deleted++
		}
	}
	return deleted, nil
}
