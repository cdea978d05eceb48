package session

import (
	"context"
	"time"

	"peoplehub/internal/auth"
	"peoplehub/internal/profile/models"
	id "peoplehub/pkg/domain"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/requestcontext"
)

const (
	DemoProfileID = "demo-user"
	DemoEmail     = "demo@peoplehub.local"
)

// DemoProvider serves a fixed administrator without any backend. Sessions
// never expire, so the keeper has nothing to do.
type DemoProvider struct {
	events *auth.Broadcaster
}

func NewDemoProvider() *DemoProvider {
	return &DemoProvider{events: auth.NewBroadcaster()}
}

var _ Provider = (*DemoProvider)(nil)

func demoSession() *auth.Session {
	return &auth.Session{
		AccessToken: "demo",
		Identity: auth.RawIdentity{
			ID:    DemoProfileID,
			Email: DemoEmail,
		},
	}
}

// DemoProfile is the profile every demo session resolves to.
func DemoProfile(now time.Time) *models.Profile {
	return &models.Profile{
		ID:               DemoProfileID,
		Email:            DemoEmail,
		FirstName:        "Demo",
		LastName:         "User",
		FullName:         "Demo User",
		Role:             models.RoleAdmin,
		IsActive:         true,
		EmploymentStatus: models.StatusActive,
		Position:         "general_manager",
		DisplayName:      "Demo User",
		Permissions:      models.PermissionsForRole(models.RoleAdmin),
		LastLogin:        &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (p *DemoProvider) Restore(context.Context) (*auth.Session, error) {
	return demoSession(), nil
}

func (p *DemoProvider) Resolve(ctx context.Context, _ auth.RawIdentity) (*models.Profile, error) {
	return DemoProfile(requestcontext.Now(ctx)), nil
}

func (p *DemoProvider) LoadProfile(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	if profileID != DemoProfileID {
		return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	return DemoProfile(requestcontext.Now(ctx)), nil
}

func (p *DemoProvider) SignIn(context.Context, string, string, bool) (*auth.Session, error) {
	return demoSession(), nil
}

func (p *DemoProvider) SignInWithOAuth(context.Context, string) (string, error) {
	return "", dErrors.New(dErrors.CodeBadRequest, "oauth sign-in is not available in demo mode")
}

func (p *DemoProvider) SignOut(context.Context) error { return nil }

func (p *DemoProvider) Refresh(context.Context) (*auth.Session, error) {
	return demoSession(), nil
}

func (p *DemoProvider) CurrentSession(context.Context) (*auth.Session, error) {
	return demoSession(), nil
}

func (p *DemoProvider) CurrentUser(context.Context) (*auth.RawIdentity, error) {
	return &demoSession().Identity, nil
}

func (p *DemoProvider) UpdatePassword(context.Context, string) error {
	return dErrors.New(dErrors.CodeBadRequest, "password changes are not available in demo mode")
}

func (p *DemoProvider) RequestPasswordReset(context.Context, string) error {
	return dErrors.New(dErrors.CodeBadRequest, "password resets are not available in demo mode")
}

func (p *DemoProvider) SessionChanged(context.Context, *auth.Session) {}

func (p *DemoProvider) Events() (<-chan auth.Event, func()) {
	return p.events.Subscribe()
}

func (p *DemoProvider) Offline() bool { return true }
