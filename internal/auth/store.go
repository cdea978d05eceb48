package auth

import (
	"context"
	"time"
)

// SessionStore persists a session across restarts when the user asked to be
// remembered. Load returns a wrapped sentinel.ErrNotFound when nothing is stored.
type SessionStore interface {
	Save(ctx context.Context, key string, session *Session, ttl time.Duration) error
	Load(ctx context.Context, key string) (*Session, error)
	Delete(ctx context.Context, key string) error
}
