package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"peoplehub/internal/auth"
	"peoplehub/internal/profile/models"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/email"
	audit "peoplehub/pkg/platform/audit"
	"peoplehub/pkg/platform/sentinel"
	"peoplehub/pkg/requestcontext"
)

// Provision creates the profile of an identity signing in for the first time
// and returns it loaded. The profile takes the identity's id. An employee
// record with the exact same email pre-fills the HR fields and the role.
//
// Two racing provisions create one row: the loser's insert is rejected as a
// conflict and it loads the winner's profile instead.
func (s *Service) Provision(ctx context.Context, identity auth.RawIdentity) (*models.Profile, error) {
	if identity.ID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity ID required")
	}
	ctx, span := s.tracer.Start(ctx, "profile.provision",
		trace.WithAttributes(attribute.String("identity.id", identity.ID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	address := email.Normalize(identity.Email)
	first, last := deriveNames(identity)
	profile := &models.Profile{
		ID:               identity.ID.AsProfileID(),
		Email:            address,
		FirstName:        first,
		LastName:         last,
		FullName:         strings.TrimSpace(first + " " + last),
		Role:             models.RoleEmployee,
		IsActive:         true,
		EmploymentStatus: models.StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if address != "" {
		employee, err := s.employees.FindByEmail(ctx, address)
		switch {
		case err == nil:
			profile.EmployeeID = employee.ID
			profile.Position = employee.Position
			profile.Department = employee.Department
			profile.ManagerID = employee.ManagerID
			profile.Role = models.RoleForPosition(employee.Position)
		case !errors.Is(err, sentinel.ErrNotFound):
			span.RecordError(err)
			return nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to search employee directory")
		}
	}

	created := true
	if err := s.profiles.Create(ctx, profile); err != nil {
		if !errors.Is(err, sentinel.ErrConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "create failed")
			return nil, dErrors.Wrap(err, dErrors.CodeTransient, "failed to create profile")
		}
		created = false
		s.metrics.IncProvisioned("raced")
		s.logger.InfoContext(ctx, "profile already provisioned, loading existing", "profile_id", profile.ID)
	}

	if created {
		s.metrics.IncProvisioned("created")
		s.logger.InfoContext(ctx, "profile provisioned",
			"profile_id", profile.ID,
			"role", profile.Role,
			"employee_id", profile.EmployeeID,
		)
		if address != "" {
			if _, err := s.identities.LinkEmail(ctx, profile.ID, identity.ID, address, true); err != nil {
				s.logger.WarnContext(ctx, "failed to record email link for new profile",
					"profile_id", profile.ID,
					"error", err,
				)
			}
		}
		s.audit.Emit(ctx, audit.Event{
			ProfileID:  profile.ID,
			IdentityID: identity.ID,
			Action:     string(audit.EventProfileProvisioned),
			Email:      address,
		})
	}

	// An in-flight load that already saw the row missing must not answer for us.
	s.loads.Forget(string(profile.ID))
	loaded, err := s.LoadProfile(ctx, profile.ID)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeTransient, "provisioned profile is not visible yet")
	}
	return loaded, err
}

// deriveNames prefers explicit metadata names, then a full name split on the
// first space, then the email local part.
func deriveNames(identity auth.RawIdentity) (first, last string) {
	first = identity.MetadataString("first_name")
	last = identity.MetadataString("last_name")
	if first != "" || last != "" {
		return first, last
	}
	for _, key := range []string{"full_name", "name"} {
		if parts := strings.Fields(identity.MetadataString(key)); len(parts) > 0 {
			return parts[0], strings.Join(parts[1:], " ")
		}
	}
	return email.DeriveNameFromEmail(identity.Email)
}
