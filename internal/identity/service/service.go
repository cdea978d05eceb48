// Package service implements identity resolution: mapping an auth identity to
// the profile it authenticates as, and the bookkeeping of linked emails.
//
// Each profile keeps exactly one primary link whose email is mirrored onto the
// profile row. Mutations run inside a tx.Runner: a database transaction with
// PostgreSQL stores, a mutex with in-memory ones. RepairPrimary restores the
// invariant if a previous mutation was interrupted.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"peoplehub/internal/identity/metrics"
	"peoplehub/internal/identity/models"
	id "peoplehub/pkg/domain"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/email"
	audit "peoplehub/pkg/platform/audit"
	"peoplehub/pkg/platform/sentinel"
	txcontext "peoplehub/pkg/platform/tx"
	"peoplehub/pkg/requestcontext"
)

type LinkStore interface {
	FindByIdentity(ctx context.Context, identityID id.IdentityID) (*models.EmailLink, error)
	ListByProfile(ctx context.Context, profileID id.ProfileID) ([]*models.EmailLink, error)
	Upsert(ctx context.Context, link *models.EmailLink) error
	Delete(ctx context.Context, identityID id.IdentityID) error
	ClearPrimaryExcept(ctx context.Context, profileID id.ProfileID, keep id.IdentityID) error
	ListProfileIDs(ctx context.Context) ([]id.ProfileID, error)
}

// ProfileDirectory exposes the denormalized email column of profiles.
type ProfileDirectory interface {
	FindEmail(ctx context.Context, profileID id.ProfileID) (string, error)
	UpdateEmail(ctx context.Context, profileID id.ProfileID, email string, at time.Time) error
}

type Service struct {
	links    LinkStore
	profiles ProfileDirectory
	tx       txcontext.Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    *audit.Emitter

	auditPublisher audit.Publisher
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

// WithTx sets the unit-of-work runner. Defaults to a process-local lock.
func WithTx(tx txcontext.Runner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func New(links LinkStore, profiles ProfileDirectory, opts ...Option) *Service {
	s := &Service{
		links:    links,
		profiles: profiles,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = txcontext.NewLockRunner()
	}
	s.audit = audit.NewEmitter(s.logger, s.auditPublisher)
	return s
}

// ResolveProfileID returns the profile an identity authenticates as. Identities
// without a link resolve to a profile with the same id; that fallback is not an
// error.
func (s *Service) ResolveProfileID(ctx context.Context, identityID id.IdentityID) (id.ProfileID, error) {
	if identityID.IsZero() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity ID required")
	}
	link, err := s.links.FindByIdentity(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncResolution("fallback")
			return identityID.AsProfileID(), nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeTransient, "failed to resolve profile")
	}
	s.metrics.IncResolution("linked")
	return link.ProfileID, nil
}

// Emails lists every link of a profile, oldest first.
func (s *Service) Emails(ctx context.Context, profileID id.ProfileID) ([]*models.EmailLink, error) {
	links, err := s.links.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to list linked emails")
	}
	models.SortOldestFirst(links)
	return links, nil
}

// LinkEmail links identityID to profileID. Re-linking to the same profile is an
// idempotent update; linking an identity owned by another profile is a conflict.
//
// The first link of a profile becomes primary regardless of isPrimary, and a
// link that is already primary stays primary. When the profile has no links
// yet, its legacy identity (same id as the profile) is recorded first so the
// original sign-in path is kept.
func (s *Service) LinkEmail(ctx context.Context, profileID id.ProfileID, identityID id.IdentityID, address string, isPrimary bool) (*models.EmailLink, error) {
	if profileID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "profile ID required")
	}
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity ID required")
	}
	address = email.Normalize(address)
	if !validAddress(address) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a valid email address is required")
	}

	var (
		result        *models.EmailLink
		becamePrimary bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		profileEmail, err := s.profileEmail(ctx, profileID)
		if err != nil {
			return err
		}
		existing, err := s.findLink(ctx, identityID)
		if err != nil {
			return err
		}
		if existing != nil && existing.ProfileID != profileID {
			return dErrors.New(dErrors.CodeConflict, "identity is already linked to another profile")
		}

		links, err := s.links.ListByProfile(ctx, profileID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list linked emails")
		}
		if len(links) == 0 {
			legacy, err := s.backfillLegacyLink(ctx, profileID, identityID, profileEmail, now)
			if err != nil {
				return err
			}
			if legacy != nil {
				links = append(links, legacy)
			}
		}

		wasPrimary := existing != nil && existing.IsPrimary
		makePrimary := isPrimary || wasPrimary || !hasOtherPrimary(links, identityID)

		link := &models.EmailLink{
			IdentityID: identityID,
			ProfileID:  profileID,
			Email:      address,
			IsPrimary:  makePrimary,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if existing != nil {
			link.CreatedAt = existing.CreatedAt
		}
		if err := s.writePrimary(ctx, link, makePrimary, profileEmail, now); err != nil {
			return err
		}
		result = link
		becamePrimary = makePrimary && !wasPrimary
		return nil
	})
	s.metrics.IncMutation("link", err)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "email linked",
		"profile_id", profileID,
		"identity_id", identityID,
		"primary", result.IsPrimary,
	)
	s.audit.Emit(ctx, audit.Event{
		ProfileID:  profileID,
		IdentityID: identityID,
		Action:     string(audit.EventEmailLinked),
		Email:      address,
	})
	if becamePrimary {
		s.audit.Emit(ctx, audit.Event{
			ProfileID:  profileID,
			IdentityID: identityID,
			Action:     string(audit.EventPrimaryEmailChanged),
			Email:      address,
		})
	}
	return result, nil
}

// UnlinkEmail removes a link. The last link of a profile can never be removed.
// Removing the primary promotes the oldest remaining link.
func (s *Service) UnlinkEmail(ctx context.Context, identityID id.IdentityID) error {
	if identityID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "identity ID required")
	}

	var removed *models.EmailLink
	var promoted *models.EmailLink
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		link, err := s.findLink(ctx, identityID)
		if err != nil {
			return err
		}
		if link == nil {
			return dErrors.New(dErrors.CodeNotFound, "email link not found")
		}
		links, err := s.links.ListByProfile(ctx, link.ProfileID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list linked emails")
		}
		if len(links) <= 1 {
			return dErrors.New(dErrors.CodeLastEmail, "cannot remove the only email linked to a profile")
		}
		if err := s.links.Delete(ctx, identityID); err != nil {
			return mapStoreErr(err, "failed to remove email link")
		}
		removed = link

		remaining := without(links, identityID)
		if len(models.Primaries(remaining)) > 0 {
			return nil
		}
		models.SortOldestFirst(remaining)
		next := *remaining[0]
		next.IsPrimary = true
		next.UpdatedAt = now
		profileEmail, err := s.profileEmail(ctx, link.ProfileID)
		if err != nil {
			return err
		}
		if err := s.writePrimary(ctx, &next, true, profileEmail, now); err != nil {
			return err
		}
		promoted = &next
		return nil
	})
	s.metrics.IncMutation("unlink", err)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "email unlinked",
		"profile_id", removed.ProfileID,
		"identity_id", identityID,
	)
	s.audit.Emit(ctx, audit.Event{
		ProfileID:  removed.ProfileID,
		IdentityID: identityID,
		Action:     string(audit.EventEmailUnlinked),
		Email:      removed.Email,
	})
	if promoted != nil {
		s.audit.Emit(ctx, audit.Event{
			ProfileID:  promoted.ProfileID,
			IdentityID: promoted.IdentityID,
			Action:     string(audit.EventPrimaryEmailChanged),
			Email:      promoted.Email,
			Reason:     "primary_unlinked",
		})
	}
	return nil
}

// SetPrimaryEmail makes an existing link the profile's primary and mirrors its
// email onto the profile. Safe to re-run after a partial failure.
func (s *Service) SetPrimaryEmail(ctx context.Context, identityID id.IdentityID) (*models.EmailLink, error) {
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity ID required")
	}

	var result *models.EmailLink
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		link, err := s.findLink(ctx, identityID)
		if err != nil {
			return err
		}
		if link == nil {
			return dErrors.New(dErrors.CodeNotFound, "email link not found")
		}
		profileEmail, err := s.profileEmail(ctx, link.ProfileID)
		if err != nil {
			return err
		}
		link.IsPrimary = true
		link.UpdatedAt = now
		if err := s.writePrimary(ctx, link, true, profileEmail, now); err != nil {
			return err
		}
		result = link
		return nil
	})
	s.metrics.IncMutation("set_primary", err)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "primary email changed",
		"profile_id", result.ProfileID,
		"identity_id", identityID,
	)
	s.audit.Emit(ctx, audit.Event{
		ProfileID:  result.ProfileID,
		IdentityID: identityID,
		Action:     string(audit.EventPrimaryEmailChanged),
		Email:      result.Email,
	})
	return result, nil
}

// RepairPrimary restores exactly one primary link and a matching profile email.
// It reports whether anything had to change.
func (s *Service) RepairPrimary(ctx context.Context, profileID id.ProfileID) (bool, error) {
	var chosen *models.EmailLink
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		links, err := s.links.ListByProfile(ctx, profileID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list linked emails")
		}
		if len(links) == 0 {
			return nil
		}
		models.SortOldestFirst(links)
		profileEmail, err := s.profileEmail(ctx, profileID)
		if err != nil {
			return err
		}
		current := email.Primary(profileEmail)

		primaries := models.Primaries(links)
		var pick *models.EmailLink
		switch {
		case len(primaries) == 1:
			pick = primaries[0]
		case len(primaries) > 1:
			if pick = models.FindByEmail(primaries, current); pick == nil {
				pick = primaries[0]
			}
		default:
			if pick = models.FindByEmail(links, current); pick == nil {
				pick = links[0]
			}
		}
		if len(primaries) == 1 && strings.EqualFold(current, pick.Email) {
			return nil
		}

		now := requestcontext.Now(ctx)
		fixed := *pick
		fixed.IsPrimary = true
		fixed.UpdatedAt = now
		if err := s.writePrimary(ctx, &fixed, true, profileEmail, now); err != nil {
			return err
		}
		chosen = &fixed
		return nil
	})
	s.metrics.IncMutation("repair", err)
	if err != nil || chosen == nil {
		return false, err
	}

	s.metrics.AddRepairs(1)
	s.logger.WarnContext(ctx, "repaired primary email bookkeeping",
		"profile_id", profileID,
		"identity_id", chosen.IdentityID,
	)
	s.audit.Emit(ctx, audit.Event{
		ProfileID:  profileID,
		IdentityID: chosen.IdentityID,
		Action:     string(audit.EventLinksRepaired),
		Email:      chosen.Email,
	})
	return true, nil
}

// RepairAll runs RepairPrimary for every linked profile and returns how many
// were corrected. Failures for one profile do not stop the sweep.
func (s *Service) RepairAll(ctx context.Context) (int, error) {
	profileIDs, err := s.links.ListProfileIDs(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list linked profiles")
	}
	var (
		repaired int
		errs     []error
	)
	for _, profileID := range profileIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		changed, err := s.RepairPrimary(ctx, profileID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to repair profile links", "profile_id", profileID, "error", err)
			errs = append(errs, err)
			continue
		}
		if changed {
			repaired++
		}
	}
	return repaired, errors.Join(errs...)
}

// writePrimary persists link and, when primary, clears the flag on the other
// links first and mirrors the email onto the profile last.
func (s *Service) writePrimary(ctx context.Context, link *models.EmailLink, primary bool, profileEmail string, now time.Time) error {
	if primary {
		if err := s.links.ClearPrimaryExcept(ctx, link.ProfileID, link.IdentityID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear primary email")
		}
	}
	if err := s.links.Upsert(ctx, link); err != nil {
		return mapStoreErr(err, "failed to save email link")
	}
	if primary && !strings.EqualFold(email.Primary(profileEmail), link.Email) {
		if err := s.profiles.UpdateEmail(ctx, link.ProfileID, link.Email, now); err != nil {
			return mapStoreErr(err, "failed to update profile email")
		}
	}
	return nil
}

func (s *Service) backfillLegacyLink(ctx context.Context, profileID id.ProfileID, linking id.IdentityID, profileEmail string, now time.Time) (*models.EmailLink, error) {
	legacyID := id.IdentityID(profileID)
	legacyEmail := email.Normalize(email.Primary(profileEmail))
	if legacyID == linking || legacyEmail == "" {
		return nil, nil
	}
	taken, err := s.findLink(ctx, legacyID)
	if err != nil || taken != nil {
		return nil, err
	}
	legacy := &models.EmailLink{
		IdentityID: legacyID,
		ProfileID:  profileID,
		Email:      legacyEmail,
		IsPrimary:  true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.links.Upsert(ctx, legacy); err != nil {
		return nil, mapStoreErr(err, "failed to record legacy email link")
	}
	s.logger.InfoContext(ctx, "recorded legacy email link", "profile_id", profileID)
	return legacy, nil
}

func (s *Service) findLink(ctx context.Context, identityID id.IdentityID) (*models.EmailLink, error) {
	link, err := s.links.FindByIdentity(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up email link")
	}
	return link, nil
}

func (s *Service) profileEmail(ctx context.Context, profileID id.ProfileID) (string, error) {
	addr, err := s.profiles.FindEmail(ctx, profileID)
	if err != nil {
		return "", mapStoreErr(err, "failed to load profile")
	}
	return addr, nil
}

func mapStoreErr(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "profile not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func hasOtherPrimary(links []*models.EmailLink, identityID id.IdentityID) bool {
	for _, l := range links {
		if l.IsPrimary && l.IdentityID != identityID {
			return true
		}
	}
	return false
}

func without(links []*models.EmailLink, identityID id.IdentityID) []*models.EmailLink {
	out := make([]*models.EmailLink, 0, len(links))
	for _, l := range links {
		if l.IdentityID != identityID {
			out = append(out, l)
		}
	}
	return out
}

func validAddress(address string) bool {
	at := strings.IndexByte(address, '@')
	return at > 0 && at < len(address)-1 && !strings.ContainsAny(address, " ;")
}
