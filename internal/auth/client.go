// Package auth defines the contract of the external auth backend and the
// primitives its implementations share.
//
// Implementations live in subpackages: hosted talks to a GoTrue-compatible
// HTTP API, local is a self-contained backend for offline installs. Errors
// are coded domain errors: CodeUnauthorized for rejected credentials,
// CodeSessionInvalid for a missing or rejected session, CodeTransient for
// network and backend failures.
package auth

import "context"

// Client is the auth backend as seen by the session core. Every
// implementation keeps the current session in memory and reports changes to
// it through Subscribe.
type Client interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	// GetUser asks the backend who the current session belongs to.
	GetUser(ctx context.Context) (*RawIdentity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignInWithOAuth returns the provider URL the user must be sent to. The
	// session arrives later as a SIGNED_IN event.
	SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error)
	SignOut(ctx context.Context) error
	RefreshSession(ctx context.Context) (*Session, error)
	UpdateUser(ctx context.Context, update UserUpdate) (*RawIdentity, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	// SetSession restores a persisted session, refreshing it when the access
	// token has already expired.
	SetSession(ctx context.Context, session *Session) (*Session, error)
	// Subscribe streams auth state changes until cancel is called.
	Subscribe() (events <-chan Event, cancel func())
}
