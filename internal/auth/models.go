package auth

import (
	"fmt"
	"strings"
	"time"

	id "peoplehub/pkg/domain"
)

// RawIdentity is the auth backend's record of a signed-in principal. It is
// owned by the backend; this module only reads it.
type RawIdentity struct {
	ID    id.IdentityID
	Email string
	// Metadata is the backend's free-form user metadata. It may carry
	// display-name hints (first_name, last_name, full_name, name).
	Metadata map[string]any
}

// MetadataString returns the trimmed string value stored under key, or "".
func (r RawIdentity) MetadataString(key string) string {
	v, ok := r.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return ""
	}
}

// Session is the live credential state issued by the auth backend.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Identity     RawIdentity
}

// Remaining returns the lifetime left at now. It is negative once expired.
func (s *Session) Remaining(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}

// ExpiresWithin reports whether the session ends within d of now. A session
// without an expiry never expires.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return s.Remaining(now) < d
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Identity.Metadata != nil {
		c.Identity.Metadata = make(map[string]any, len(s.Identity.Metadata))
		for k, v := range s.Identity.Metadata {
			c.Identity.Metadata[k] = v
		}
	}
	return &c
}

// EventType enumerates auth state changes delivered to subscribers.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// Event is one auth state change. Session is nil for EventSignedOut.
type Event struct {
	Type    EventType
	Session *Session
}

// UserUpdate carries the fields UpdateUser may change. Empty fields are left alone.
type UserUpdate struct {
	Password string
	Email    string
	Metadata map[string]any
}
