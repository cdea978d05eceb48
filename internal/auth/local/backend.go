// Package local is a self-contained auth backend for development and offline
// installs. Passwords are bcrypt hashes, access tokens are HS256 JWTs and
// refresh tokens are opaque single-use tokens rotated on every refresh.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"peoplehub/internal/auth"
	"peoplehub/internal/auth/models"
	id "peoplehub/pkg/domain"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/email"
	"peoplehub/pkg/platform/sentinel"
	"peoplehub/pkg/requestcontext"
)

const minPasswordLength = 8

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, identityID id.IdentityID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// TokenStore persists single-use refresh and recovery tokens by hash.
type TokenStore interface {
	Create(ctx context.Context, record *models.TokenRecord) error
	Consume(ctx context.Context, kind models.TokenKind, hash string, now time.Time) (*models.TokenRecord, error)
	DeleteByIdentity(ctx context.Context, identityID id.IdentityID, kind models.TokenKind) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// RevocationList tracks access tokens revoked before their expiry.
type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Throttle refuses password sign-in after repeated failures.
type Throttle interface {
	Check(ctx context.Context, address string) error
	RecordFailure(ctx context.Context, address string) error
	Clear(ctx context.Context, address string) error
}

// Notifier delivers password recovery links.
type Notifier interface {
	SendRecovery(ctx context.Context, email, link string) error
}

// Config holds token lifetimes and the signing key.
type Config struct {
	SigningKey  string
	Issuer      string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	RecoveryTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Issuer == "" {
		c.Issuer = "peoplehub-local"
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = time.Hour
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.RecoveryTTL <= 0 {
		c.RecoveryTTL = time.Hour
	}
	return c
}

// Backend issues and validates credentials.
type Backend struct {
	users    UserStore
	tokens   TokenStore
	revoked  RevocationList
	notifier Notifier
	throttle Throttle
	issuer   *TokenIssuer
	cfg      Config
	logger   *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(b *Backend) {
		if n != nil {
			b.notifier = n
		}
	}
}

// WithThrottle enables sign-in lockout.
func WithThrottle(t Throttle) Option {
	return func(b *Backend) {
		b.throttle = t
	}
}

func NewBackend(cfg Config, users UserStore, tokens TokenStore, revoked RevocationList, opts ...Option) (*Backend, error) {
	if strings.TrimSpace(cfg.SigningKey) == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "local auth requires a signing key")
	}
	cfg = cfg.withDefaults()
	b := &Backend{
		users:   users,
		tokens:  tokens,
		revoked: revoked,
		issuer:  NewTokenIssuer(cfg.SigningKey, cfg.Issuer),
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.notifier == nil {
		b.notifier = NewLogNotifier(b.logger)
	}
	return b, nil
}

// CreateUser registers an account.
func (b *Backend) CreateUser(ctx context.Context, address, password string, metadata map[string]any) (*models.User, error) {
	address = email.Normalize(address)
	if !strings.Contains(address, "@") {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a valid email is required")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	user := &models.User{
		ID:           id.IdentityID(uuid.NewString()),
		Email:        address,
		PasswordHash: hash,
		Metadata:     maps.Clone(metadata),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := b.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to create user")
	}
	b.logger.InfoContext(ctx, "local user created", "identity_id", user.ID)
	return user, nil
}

// PasswordGrant exchanges credentials for a new session.
func (b *Backend) PasswordGrant(ctx context.Context, address, password string) (*auth.Session, error) {
	if b.throttle != nil {
		if err := b.throttle.Check(ctx, address); err != nil {
			return nil, err
		}
	}
	user, err := b.users.FindByEmail(ctx, email.Normalize(address))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, b.failedAttempt(ctx, address)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to look up user")
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, b.failedAttempt(ctx, address)
	}
	if b.throttle != nil {
		if err := b.throttle.Clear(ctx, address); err != nil {
			b.logger.WarnContext(ctx, "failed to clear sign-in failures", "error", err)
		}
	}
	return b.issueSession(ctx, user)
}

// failedAttempt counts a bad password or unknown address. The lock error wins
// over invalid credentials once the limit is reached.
func (b *Backend) failedAttempt(ctx context.Context, address string) error {
	if b.throttle == nil {
		return errInvalidCredentials()
	}
	if err := b.throttle.RecordFailure(ctx, address); err != nil {
		if dErrors.HasCode(err, dErrors.CodeRateLimited) {
			return err
		}
		b.logger.WarnContext(ctx, "failed to record sign-in failure", "error", err)
	}
	return errInvalidCredentials()
}

// RefreshGrant rotates a refresh token. Presenting a token twice revokes every
// refresh token of the identity.
func (b *Backend) RefreshGrant(ctx context.Context, refreshToken string) (*auth.Session, error) {
	if refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, "refresh token missing")
	}
	now := requestcontext.Now(ctx)
	record, err := b.tokens.Consume(ctx, models.TokenRefresh, hashToken(refreshToken), now)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			if record != nil {
				b.logger.WarnContext(ctx, "refresh token replay detected", "identity_id", record.IdentityID)
				if _, derr := b.tokens.DeleteByIdentity(ctx, record.IdentityID, models.TokenRefresh); derr != nil {
					b.logger.ErrorContext(ctx, "failed to revoke refresh tokens after replay", "error", derr)
				}
			}
			return nil, dErrors.New(dErrors.CodeSessionInvalid, "refresh token already used")
		case errors.Is(err, sentinel.ErrExpired), errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.Wrap(err, dErrors.CodeSessionInvalid, "refresh token rejected")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to refresh session")
		}
	}
	user, err := b.users.FindByID(ctx, record.IdentityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeSessionInvalid, "user no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to load user")
	}
	return b.issueSession(ctx, user)
}

// User returns the identity an access token belongs to.
func (b *Backend) User(ctx context.Context, accessToken string) (*auth.RawIdentity, error) {
	user, _, err := b.authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return identityOf(user), nil
}

// Logout revokes the access token and every refresh token of its identity.
// An already invalid token has nothing left to revoke.
func (b *Backend) Logout(ctx context.Context, accessToken string) error {
	now := requestcontext.Now(ctx)
	claims, err := b.issuer.Validate(accessToken, now)
	if err != nil {
		return nil
	}
	if ttl := claims.ExpiresAt.Sub(now); ttl > 0 {
		if err := b.revoked.RevokeToken(ctx, claims.ID, ttl); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTransient, "failed to revoke access token")
		}
	}
	if _, err := b.tokens.DeleteByIdentity(ctx, id.IdentityID(claims.Subject), models.TokenRefresh); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "failed to revoke refresh tokens")
	}
	return nil
}

// UpdateUser changes the password, email or metadata of the token's identity.
func (b *Backend) UpdateUser(ctx context.Context, accessToken string, update auth.UserUpdate) (*auth.RawIdentity, error) {
	user, _, err := b.authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if update.Password != "" {
		hash, err := hashPassword(update.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if update.Email != "" {
		address := email.Normalize(update.Email)
		if !strings.Contains(address, "@") {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "a valid email is required")
		}
		user.Email = address
	}
	if len(update.Metadata) > 0 {
		if user.Metadata == nil {
			user.Metadata = make(map[string]any, len(update.Metadata))
		}
		maps.Copy(user.Metadata, update.Metadata)
	}
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := b.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeSessionInvalid, "user no longer exists")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to update user")
		}
	}
	return identityOf(user), nil
}

// Recover sends a recovery link to the account's address. Unknown addresses
// succeed silently so the endpoint cannot be used to probe for accounts.
func (b *Backend) Recover(ctx context.Context, address, redirectTo string) error {
	user, err := b.users.FindByEmail(ctx, email.Normalize(address))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			b.logger.DebugContext(ctx, "recovery requested for unknown email")
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeTransient, "failed to look up user")
	}
	raw, err := b.storeToken(ctx, user.ID, models.TokenRecovery, b.cfg.RecoveryTTL)
	if err != nil {
		return err
	}
	link, err := recoveryLink(redirectTo, raw)
	if err != nil {
		return err
	}
	if err := b.notifier.SendRecovery(ctx, user.Email, link); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "failed to send recovery email")
	}
	return nil
}

// VerifyRecovery exchanges a recovery token for a session, after which the
// user may set a new password.
func (b *Backend) VerifyRecovery(ctx context.Context, token string) (*auth.Session, error) {
	now := requestcontext.Now(ctx)
	record, err := b.tokens.Consume(ctx, models.TokenRecovery, hashToken(token), now)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) || errors.Is(err, sentinel.ErrExpired) ||
			errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeSessionInvalid, "recovery link is invalid or has expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to verify recovery link")
	}
	user, err := b.users.FindByID(ctx, record.IdentityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeSessionInvalid, "user no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to load user")
	}
	return b.issueSession(ctx, user)
}

// PurgeExpired drops expired refresh and recovery tokens.
func (b *Backend) PurgeExpired(ctx context.Context) (int, error) {
	n, err := b.tokens.DeleteExpired(ctx, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeTransient, "failed to purge expired tokens")
	}
	return n, nil
}

func (b *Backend) authenticate(ctx context.Context, accessToken string) (*models.User, *Claims, error) {
	claims, err := b.issuer.Validate(accessToken, requestcontext.Now(ctx))
	if err != nil {
		return nil, nil, err
	}
	revoked, err := b.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to check token revocation")
	}
	if revoked {
		return nil, nil, dErrors.New(dErrors.CodeSessionInvalid, "token has been revoked")
	}
	user, err := b.users.FindByID(ctx, id.IdentityID(claims.Subject))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeSessionInvalid, "user no longer exists")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to load user")
	}
	return user, claims, nil
}

func (b *Backend) issueSession(ctx context.Context, user *models.User) (*auth.Session, error) {
	now := requestcontext.Now(ctx)
	access, claims, err := b.issuer.Issue(user, now, b.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := b.storeToken(ctx, user.ID, models.TokenRefresh, b.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &auth.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    claims.ExpiresAt.Time,
		Identity:     *identityOf(user),
	}, nil
}

func (b *Backend) storeToken(ctx context.Context, identityID id.IdentityID, kind models.TokenKind, ttl time.Duration) (string, error) {
	now := requestcontext.Now(ctx)
	raw := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	record := &models.TokenRecord{
		Hash:       hashToken(raw),
		Kind:       kind,
		IdentityID: identityID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := b.tokens.Create(ctx, record); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeTransient, "failed to store "+string(kind)+" token")
	}
	return raw, nil
}

func hashPassword(password string) ([]byte, error) {
	if len(password) < minPasswordLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "password cannot be used")
	}
	return hash, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func recoveryLink(redirectTo, token string) (string, error) {
	u, err := url.Parse(redirectTo)
	if err != nil || redirectTo == "" {
		return "", dErrors.New(dErrors.CodeConfiguration, "recovery redirect URL is invalid")
	}
	q := u.Query()
	q.Set("type", "recovery")
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func identityOf(user *models.User) *auth.RawIdentity {
	return &auth.RawIdentity{
		ID:       user.ID,
		Email:    user.Email,
		Metadata: maps.Clone(user.Metadata),
	}
}

func errInvalidCredentials() error {
	return dErrors.New(dErrors.CodeUnauthorized, "invalid login credentials")
}
