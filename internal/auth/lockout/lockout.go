// Package lockout throttles password sign-in after repeated failures for the
// same email address.
package lockout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"peoplehub/internal/auth/models"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/email"
	"peoplehub/pkg/platform/sentinel"
	"peoplehub/pkg/requestcontext"
)

// Store is the persistence the service needs.
type Store interface {
	Get(ctx context.Context, identifier string) (*models.Lockout, error)
	Save(ctx context.Context, record *models.Lockout) error
	Delete(ctx context.Context, identifier string) error
}

// Config bounds failed attempts. Zero fields take the defaults.
type Config struct {
	// Attempts is how many failures within Window lock the address.
	Attempts     int
	Window       time.Duration
	LockDuration time.Duration
}

func DefaultConfig() Config {
	return Config{Attempts: 5, Window: 15 * time.Minute, LockDuration: 15 * time.Minute}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.LockDuration <= 0 {
		c.LockDuration = d.LockDuration
	}
	return c
}

type Service struct {
	store  Store
	cfg    Config
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(store Store, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func errLocked() error {
	return dErrors.New(dErrors.CodeRateLimited, "too many failed sign-in attempts, try again later")
}

// Check refuses sign-in while the address is locked.
func (s *Service) Check(ctx context.Context, address string) error {
	record, err := s.load(ctx, email.Normalize(address))
	if err != nil {
		return err
	}
	if record != nil && record.IsLockedAt(requestcontext.Now(ctx)) {
		return errLocked()
	}
	return nil
}

// RecordFailure counts a failed attempt and locks the address once the limit
// is reached within the window. It reports the lock as an error.
func (s *Service) RecordFailure(ctx context.Context, address string) error {
	identifier := email.Normalize(address)
	record, err := s.load(ctx, identifier)
	if err != nil {
		return err
	}
	if record == nil {
		record = &models.Lockout{Identifier: identifier}
	}

	now := requestcontext.Now(ctx)
	record.RegisterFailure(now, s.cfg.Window)
	locked := record.ShouldLock(s.cfg.Attempts)
	if locked {
		record.Lock(now, s.cfg.LockDuration)
	}
	if err := s.store.Save(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "failed to record sign-in failure")
	}
	if locked {
		s.logger.WarnContext(ctx, "sign-in locked after repeated failures",
			"failures", record.FailureCount,
			"locked_until", record.LockedUntil,
		)
		return errLocked()
	}
	return nil
}

// Clear forgets the failures of an address after a successful sign-in.
func (s *Service) Clear(ctx context.Context, address string) error {
	if err := s.store.Delete(ctx, email.Normalize(address)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "failed to clear sign-in failures")
	}
	return nil
}

func (s *Service) load(ctx context.Context, identifier string) (*models.Lockout, error) {
	record, err := s.store.Get(ctx, identifier)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to read sign-in failures")
	}
	return record, nil
}
