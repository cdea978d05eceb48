// Package models holds the records of the local auth backend.
package models

import (
	"fmt"
	"time"

	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/sentinel"
)

// User is an account of the local auth backend.
type User struct {
	ID           id.IdentityID
	Email        string
	PasswordHash []byte
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenKind separates the single-use tokens kept in the token store.
type TokenKind string

const (
	TokenRefresh  TokenKind = "refresh"
	TokenRecovery TokenKind = "recovery"
)

// TokenRecord is a single-use opaque token. Hash is the SHA-256 of the token
// handed to the client; the token itself is never stored.
type TokenRecord struct {
	Hash       string
	Kind       TokenKind
	IdentityID id.IdentityID
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Used       bool
	UsedAt     *time.Time
}

// ValidateForConsume checks the token can still be exchanged at now.
func (r *TokenRecord) ValidateForConsume(now time.Time) error {
	if r.Used {
		return fmt.Errorf("%s token: %w", r.Kind, sentinel.ErrAlreadyUsed)
	}
	if !now.Before(r.ExpiresAt) {
		return fmt.Errorf("%s token: %w", r.Kind, sentinel.ErrExpired)
	}
	return nil
}

func (r *TokenRecord) MarkUsed(now time.Time) {
	r.Used = true
	r.UsedAt = &now
}
