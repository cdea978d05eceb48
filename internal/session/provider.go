package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"peoplehub/internal/auth"
	"peoplehub/internal/profile/models"
	id "peoplehub/pkg/domain"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/platform/sentinel"
)

// Provider is where the Manager gets sessions and profiles from. The real
// implementation talks to the auth backend; the demo one never leaves memory.
// The choice is made once, at composition.
type Provider interface {
	// Restore returns the session to start with, or nil when signed out.
	Restore(ctx context.Context) (*auth.Session, error)
	Resolve(ctx context.Context, identity auth.RawIdentity) (*models.Profile, error)
	LoadProfile(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)

	SignIn(ctx context.Context, email, password string, remember bool) (*auth.Session, error)
	SignInWithOAuth(ctx context.Context, provider string) (string, error)
	SignOut(ctx context.Context) error
	Refresh(ctx context.Context) (*auth.Session, error)
	CurrentSession(ctx context.Context) (*auth.Session, error)
	CurrentUser(ctx context.Context) (*auth.RawIdentity, error)
	UpdatePassword(ctx context.Context, password string) error
	RequestPasswordReset(ctx context.Context, email string) error

	// SessionChanged is told about every session the Manager adopts, nil on sign-out.
	SessionChanged(ctx context.Context, session *auth.Session)
	Events() (<-chan auth.Event, func())
	// Offline reports that sessions never expire and need no keeping.
	Offline() bool
}

// ProfileResolver is the slice of the profile loader the real provider uses.
type ProfileResolver interface {
	Resolve(ctx context.Context, identity auth.RawIdentity) (*models.Profile, error)
	LoadProfile(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
}

const defaultRememberKey = "default"

// AuthProvider backs sessions with an auth.Client. When the user asks to be
// remembered the session is written to a SessionStore and restored on start.
type AuthProvider struct {
	client      auth.Client
	profiles    ProfileResolver
	store       auth.SessionStore
	rememberKey string
	rememberTTL time.Duration
	redirectURL string
	remembered  atomic.Bool
	logger      *slog.Logger
}

type AuthProviderOption func(*AuthProvider)

// WithRememberStore enables "remember me" persistence.
func WithRememberStore(store auth.SessionStore, ttl time.Duration) AuthProviderOption {
	return func(p *AuthProvider) {
		p.store = store
		if ttl > 0 {
			p.rememberTTL = ttl
		}
	}
}

// WithRedirectURL sets where OAuth and recovery flows return to.
func WithRedirectURL(u string) AuthProviderOption {
	return func(p *AuthProvider) {
		p.redirectURL = u
	}
}

func WithProviderLogger(logger *slog.Logger) AuthProviderOption {
	return func(p *AuthProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewAuthProvider(client auth.Client, profiles ProfileResolver, opts ...AuthProviderOption) *AuthProvider {
	p := &AuthProvider{
		client:      client,
		profiles:    profiles,
		rememberKey: defaultRememberKey,
		rememberTTL: 30 * 24 * time.Hour,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ Provider = (*AuthProvider)(nil)

func (p *AuthProvider) Restore(ctx context.Context) (*auth.Session, error) {
	current, err := p.client.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil || p.store == nil {
		return current, nil
	}

	persisted, err := p.store.Load(ctx, p.rememberKey)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		p.logger.WarnContext(ctx, "failed to load remembered session", "error", err)
		return nil, nil
	}
	restored, err := p.client.SetSession(ctx, persisted)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTransient) {
			return nil, err
		}
		p.logger.InfoContext(ctx, "remembered session rejected", "error", err)
		p.forget(ctx)
		return nil, nil
	}
	p.remembered.Store(true)
	return restored, nil
}

func (p *AuthProvider) Resolve(ctx context.Context, identity auth.RawIdentity) (*models.Profile, error) {
	return p.profiles.Resolve(ctx, identity)
}

func (p *AuthProvider) LoadProfile(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	return p.profiles.LoadProfile(ctx, profileID)
}

func (p *AuthProvider) SignIn(ctx context.Context, email, password string, remember bool) (*auth.Session, error) {
	p.remembered.Store(remember)
	if !remember {
		p.forget(ctx)
	}
	return p.client.SignInWithPassword(ctx, email, password)
}

func (p *AuthProvider) SignInWithOAuth(ctx context.Context, provider string) (string, error) {
	return p.client.SignInWithOAuth(ctx, provider, p.redirectURL)
}

func (p *AuthProvider) SignOut(ctx context.Context) error {
	p.remembered.Store(false)
	p.forget(ctx)
	return p.client.SignOut(ctx)
}

func (p *AuthProvider) Refresh(ctx context.Context) (*auth.Session, error) {
	return p.client.RefreshSession(ctx)
}

func (p *AuthProvider) CurrentSession(ctx context.Context) (*auth.Session, error) {
	return p.client.GetSession(ctx)
}

func (p *AuthProvider) CurrentUser(ctx context.Context) (*auth.RawIdentity, error) {
	return p.client.GetUser(ctx)
}

func (p *AuthProvider) UpdatePassword(ctx context.Context, password string) error {
	_, err := p.client.UpdateUser(ctx, auth.UserUpdate{Password: password})
	return err
}

func (p *AuthProvider) RequestPasswordReset(ctx context.Context, email string) error {
	return p.client.ResetPasswordForEmail(ctx, email, p.redirectURL)
}

func (p *AuthProvider) SessionChanged(ctx context.Context, session *auth.Session) {
	if p.store == nil {
		return
	}
	if session == nil {
		p.forget(ctx)
		return
	}
	if !p.remembered.Load() {
		return
	}
	if err := p.store.Save(ctx, p.rememberKey, session, p.rememberTTL); err != nil {
		p.logger.WarnContext(ctx, "failed to remember session", "error", err)
	}
}

func (p *AuthProvider) Events() (<-chan auth.Event, func()) {
	return p.client.Subscribe()
}

func (p *AuthProvider) Offline() bool { return false }

func (p *AuthProvider) forget(ctx context.Context) {
	if p.store == nil {
		return
	}
	if err := p.store.Delete(ctx, p.rememberKey); err != nil {
		p.logger.WarnContext(ctx, "failed to forget remembered session", "error", err)
	}
}
