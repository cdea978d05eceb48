// Package service implements the profile loader: turning a resolved profile id
// into an enriched profile, and provisioning profiles on first sign-in.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"peoplehub/internal/auth"
	identitymodels "peoplehub/internal/identity/models"
	"peoplehub/internal/profile/metrics"
	"peoplehub/internal/profile/models"
	id "peoplehub/pkg/domain"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/email"
	audit "peoplehub/pkg/platform/audit"
	"peoplehub/pkg/platform/sentinel"
	pstrings "peoplehub/pkg/platform/strings"
	"peoplehub/pkg/requestcontext"
)

const (
	defaultLoadTimeout = 15 * time.Second
	touchTimeout       = 5 * time.Second
)

type ProfileStore interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	TouchLastLogin(ctx context.Context, profileID id.ProfileID, at time.Time) error
}

type EmployeeDirectory interface {
	FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error)
	FindByEmail(ctx context.Context, address string) (*models.Employee, error)
	FindByAnyEmail(ctx context.Context, addresses []string) (*models.Employee, error)
}

// Identities is the slice of the identity resolver the loader depends on.
type Identities interface {
	ResolveProfileID(ctx context.Context, identityID id.IdentityID) (id.ProfileID, error)
	Emails(ctx context.Context, profileID id.ProfileID) ([]*identitymodels.EmailLink, error)
	LinkEmail(ctx context.Context, profileID id.ProfileID, identityID id.IdentityID, address string, isPrimary bool) (*identitymodels.EmailLink, error)
}

// Service loads and provisions profiles. Concurrent loads of the same profile
// share one backend round trip.
type Service struct {
	profiles   ProfileStore
	employees  EmployeeDirectory
	identities Identities

	logger      *slog.Logger
	metrics     *metrics.Metrics
	audit       *audit.Emitter
	tracer      trace.Tracer
	loadTimeout time.Duration

	auditPublisher audit.Publisher
	loads          singleflight.Group
	touches        sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

// WithLoadTimeout bounds a single load. A load that times out is transient.
func WithLoadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.loadTimeout = d
		}
	}
}

func New(profiles ProfileStore, employees EmployeeDirectory, identities Identities, opts ...Option) *Service {
	s := &Service{
		profiles:    profiles,
		employees:   employees,
		identities:  identities,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:      otel.Tracer("peoplehub/profile"),
		loadTimeout: defaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = audit.NewEmitter(s.logger, s.auditPublisher)
	return s
}

// Resolve is the single path from a signed-in identity to an enriched
// profile: resolve the profile id, load it, and provision it when missing.
func (s *Service) Resolve(ctx context.Context, identity auth.RawIdentity) (*models.Profile, error) {
	profileID, err := s.identities.ResolveProfileID(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	profile, err := s.LoadProfile(ctx, profileID)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return s.Provision(ctx, identity)
	}
	return profile, err
}

// LoadProfile fetches and enriches a profile. It fails with CodeNotFound when
// the row is missing, CodeAccountDisabled when the person must not sign in,
// and CodeTransient on backend failures or timeout.
//
// Callers waiting on the same profile share one load and each receive their
// own copy. A caller whose context ends stops waiting without cancelling the
// shared load.
func (s *Service) LoadProfile(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	if profileID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "profile ID required")
	}
	results := s.loads.DoChan(string(profileID), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		return s.load(loadCtx, profileID)
	})

	select {
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTransient, "profile load abandoned")
	case res := <-results:
		if res.Shared {
			s.metrics.IncCoalesced()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Profile).Clone(), nil
	}
}

func (s *Service) load(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "profile.load",
		trace.WithAttributes(attribute.String("profile.id", profileID.String())))
	defer span.End()

	profile, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.ObserveLoad("not_found", start)
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "profile not found")
		}
		return nil, s.transient(ctx, span, start, err, "failed to load profile")
	}

	if err := profile.CheckAccess(); err != nil {
		s.metrics.ObserveLoad("disabled", start)
		span.SetStatus(codes.Error, "account disabled")
		s.logger.WarnContext(ctx, "rejected disabled profile",
			"profile_id", profileID,
			"is_active", profile.IsActive,
			"employment_status", profile.EmploymentStatus,
		)
		return nil, err
	}

	var (
		displayName string
		employeeID  id.EmployeeID
		manager     *models.ManagerSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		displayName, employeeID, err = s.resolveDisplayName(gctx, profile)
		return err
	})
	g.Go(func() error {
		manager = s.lookupManager(gctx, profile)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, s.transient(ctx, span, start, err, "failed to enrich profile")
	}

	profile.DisplayName = displayName
	profile.LinkedEmployeeID = employeeID
	profile.Manager = manager
	profile.Permissions = models.PermissionsForRole(profile.Role)

	now := requestcontext.Now(ctx)
	profile.LastLogin = &now
	s.touchLastLogin(ctx, profileID, now)

	s.metrics.ObserveLoad("ok", start)
	return profile, nil
}

// resolveDisplayName prefers the name on a matching employee record, searched
// by every email the profile is known by.
func (s *Service) resolveDisplayName(ctx context.Context, profile *models.Profile) (string, id.EmployeeID, error) {
	addresses := email.SplitList(profile.Email)
	links, err := s.identities.Emails(ctx, profile.ID)
	if err != nil {
		return "", "", err
	}
	for _, l := range links {
		addresses = append(addresses, l.Email)
	}
	addresses = pstrings.DedupeAndTrimLower(addresses)

	if len(addresses) > 0 {
		employee, err := s.employees.FindByAnyEmail(ctx, addresses)
		switch {
		case err == nil:
			return employee.Name, employee.ID, nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return "", "", err
		}
	}
	return fallbackDisplayName(profile), "", nil
}

func fallbackDisplayName(profile *models.Profile) string {
	if name := strings.TrimSpace(profile.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(profile.FirstName); name != "" {
		return name
	}
	return email.LocalPart(email.Primary(profile.Email))
}

// lookupManager is best effort: a missing or unreachable manager record
// leaves the summary unset.
func (s *Service) lookupManager(ctx context.Context, profile *models.Profile) *models.ManagerSummary {
	if profile.ManagerID == "" {
		return nil
	}
	manager, err := s.employees.FindByID(ctx, profile.ManagerID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to look up manager",
				"profile_id", profile.ID,
				"manager_id", profile.ManagerID,
				"error", err,
			)
		}
		return nil
	}
	return manager.Summary()
}

// touchLastLogin stamps the login time in the background. Failures are
// logged and never reach the caller.
func (s *Service) touchLastLogin(ctx context.Context, profileID id.ProfileID, at time.Time) {
	s.touches.Add(1)
	go func() {
		defer s.touches.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
		defer cancel()
		if err := s.profiles.TouchLastLogin(ctx, profileID, at); err != nil {
			s.metrics.IncTouchFailed()
			s.logger.WarnContext(ctx, "failed to stamp last login", "profile_id", profileID, "error", err)
		}
	}()
}

// Wait blocks until background last-login stamps have finished.
func (s *Service) Wait() {
	s.touches.Wait()
}

func (s *Service) transient(ctx context.Context, span trace.Span, start time.Time, err error, msg string) error {
	s.metrics.ObserveLoad("transient", start)
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	s.logger.ErrorContext(ctx, msg, "error", err)
	return dErrors.Wrap(err, dErrors.CodeTransient, msg)
}
