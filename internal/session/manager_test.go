package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"peoplehub/internal/auth"
	"peoplehub/internal/auth/local"
	"peoplehub/internal/auth/store/revocation"
	sessionstore "peoplehub/internal/auth/store/session"
	"peoplehub/internal/auth/store/token"
	userstore "peoplehub/internal/auth/store/user"
	identityservice "peoplehub/internal/identity/service"
	"peoplehub/internal/identity/store/link"
	"peoplehub/internal/profile/models"
	profileservice "peoplehub/internal/profile/service"
	"peoplehub/internal/profile/store/employee"
	profilestore "peoplehub/internal/profile/store/profile"
	id "peoplehub/pkg/domain"
	dErrors "peoplehub/pkg/domain-errors"
	audit "peoplehub/pkg/platform/audit"
	auditmemory "peoplehub/pkg/platform/audit/store/memory"
	"peoplehub/pkg/platform/sentinel"
	"peoplehub/pkg/testutil"
)

const (
	janeEmail    = "jane.doe@example.com"
	janePassword = "correct-horse"
)

// ManagerSuite runs the manager against the local auth backend and in-memory
// stores, the way an offline install is wired.
type ManagerSuite struct {
	suite.Suite
	ctx       context.Context
	backend   *local.Backend
	client    *local.Client
	remember  *sessionstore.InMemoryStore
	profiles  *profilestore.InMemoryStore
	employees *employee.InMemoryStore
	loader    *profileservice.Service
	audit     *auditmemory.InMemoryStore
	manager   *Manager
	janeID    id.IdentityID
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = testutil.Ctx()
	backend, err := local.NewBackend(
		local.Config{SigningKey: "test-key", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour},
		userstore.NewInMemory(),
		token.NewInMemory(),
		revocation.NewInMemory(func() time.Time { return testutil.FixedNow }),
	)
	s.Require().NoError(err)
	s.backend = backend

	user, err := backend.CreateUser(s.ctx, janeEmail, janePassword, map[string]any{"first_name": "Jane", "last_name": "Doe"})
	s.Require().NoError(err)
	s.janeID = user.ID

	s.remember = sessionstore.NewInMemory()
	s.profiles = profilestore.NewInMemoryStore()
	s.employees = employee.NewInMemoryStore()
	s.audit = auditmemory.NewInMemoryStore()
	identities := identityservice.New(link.NewInMemoryStore(), s.profiles)
	s.loader = profileservice.New(s.profiles, s.employees, identities, profileservice.WithAuditPublisher(s.audit))

	s.client, s.manager = s.newManager()
	s.Require().NoError(s.manager.Start(s.ctx))
}

func (s *ManagerSuite) TearDownTest() {
	s.manager.Close()
	s.loader.Wait()
}

// newManager builds a manager with a fresh client, as a restarted process would.
func (s *ManagerSuite) newManager() (*local.Client, *Manager) {
	client := local.NewClient(s.backend)
	provider := NewAuthProvider(client, s.loader,
		WithRememberStore(s.remember, 0),
		WithRedirectURL("http://localhost:5173/reset-password"),
	)
	return client, NewManager(provider,
		WithAuditPublisher(s.audit),
		WithSignOutTimeout(time.Second),
		WithRetryPolicy(RetryPolicy{Attempts: 2, Base: time.Millisecond, Max: 5 * time.Millisecond}),
	)
}

func (s *ManagerSuite) janeProfileID() id.ProfileID {
	return s.janeID.AsProfileID()
}

func (s *ManagerSuite) TestStartsSignedOutWithoutSession() {
	snap := s.manager.Snapshot()
	s.Equal(StateUnauthenticated, snap.State)
	s.False(snap.Loading())
	s.NoError(snap.Err)
	s.False(s.manager.CheckPermission(string(models.PermViewOwnProfile)))
}

func (s *ManagerSuite) TestLoginProvisionsProfileOnFirstSignIn() {
	snap, err := s.manager.Login(s.ctx, "  Jane.Doe@Example.com ", janePassword, false)
	s.Require().NoError(err)

	s.Equal(StateAuthenticated, snap.State)
	s.Require().NotNil(snap.Profile)
	s.Equal(s.janeProfileID(), snap.Profile.ID)
	s.Equal(janeEmail, snap.Profile.Email)
	s.Equal("Jane Doe", snap.Profile.DisplayName)
	s.Equal(s.janeID, snap.Session.Identity.ID)

	s.True(s.manager.CheckPermission(string(models.PermTrackTime)))
	s.False(s.manager.CheckPermission(string(models.PermManageUsers)))

	actions := s.audit.Actions(s.janeProfileID())
	s.Contains(actions, string(audit.EventProfileProvisioned))
	s.Contains(actions, string(audit.EventSignedIn))
}

func (s *ManagerSuite) TestLoginRejectsBadCredentials() {
	_, err := s.manager.Login(s.ctx, janeEmail, "wrong-password", false)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal(StateUnauthenticated, s.manager.Snapshot().State)

	_, err = s.manager.Login(s.ctx, "", "", false)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ManagerSuite) TestTerminatedEmployeeIsSignedOut() {
	s.Require().NoError(s.profiles.Save(s.ctx, &models.Profile{
		ID:               s.janeProfileID(),
		Email:            janeEmail,
		Role:             models.RoleEmployee,
		IsActive:         true,
		EmploymentStatus: models.StatusTerminated,
	}))

	_, err := s.manager.Login(s.ctx, janeEmail, janePassword, true)
	s.True(dErrors.HasCode(err, dErrors.CodeAccountDisabled))

	snap := s.manager.Snapshot()
	s.Equal(StateUnauthenticated, snap.State)
	s.True(dErrors.HasCode(snap.Err, dErrors.CodeAccountDisabled))
	s.Nil(snap.Profile)

	current, err := s.client.GetSession(s.ctx)
	s.Require().NoError(err)
	s.Nil(current, "backend session is dropped")
}

func (s *ManagerSuite) TestDeactivationNoticeSignsOut() {
	_, err := s.manager.Login(s.ctx, janeEmail, janePassword, false)
	s.Require().NoError(err)

	s.Require().NoError(s.profiles.UpdateStatus(s.ctx, s.janeProfileID(), false, models.StatusActive, testutil.FixedNow))
	err = s.manager.ProfileChanged(s.ctx, s.janeProfileID())
	s.True(dErrors.HasCode(err, dErrors.CodeAccountDisabled))

	snap := s.manager.Snapshot()
	s.Equal(StateUnauthenticated, snap.State)
	s.True(dErrors.HasCode(snap.Err, dErrors.CodeAccountDisabled))
	s.Contains(s.audit.Actions(s.janeProfileID()), string(audit.EventForcedSignOut))
}

func (s *ManagerSuite) TestChangesToOtherProfilesAreIgnored() {
	_, err := s.manager.Login(s.ctx, janeEmail, janePassword, false)
	s.Require().NoError(err)

	s.NoError(s.manager.ProfileChanged(s.ctx, "someone-else"))
	s.Equal(StateAuthenticated, s.manager.Snapshot().State)
}

func (s *ManagerSuite) TestLogoutClearsLocalAndBackendSession() {
	_, err := s.manager.Login(s.ctx, janeEmail, janePassword, false)
	s.Require().NoError(err)

	s.manager.Logout(s.ctx)

	snap := s.manager.Snapshot()
	s.Equal(StateUnauthenticated, snap.State)
	s.NoError(snap.Err)
	current, err := s.client.GetSession(s.ctx)
	s.Require().NoError(err)
	s.Nil(current)
	s.Contains(s.audit.Actions(s.janeProfileID()), string(audit.EventSignedOut))
}

func (s *ManagerSuite) TestRememberedSessionSurvivesRestart() {
	_, err := s.manager.Login(s.ctx, janeEmail, janePassword, true)
	s.Require().NoError(err)
	s.manager.Close()

	_, restarted := s.newManager()
	defer restarted.Close()
	s.Require().NoError(restarted.Start(s.ctx))

	snap := restarted.Snapshot()
	s.Equal(StateAuthenticated, snap.State)
	s.Equal(s.janeProfileID(), snap.Profile.ID)
}

func (s *ManagerSuite) TestSessionIsForgottenWithoutRememberMe() {
	_, err := s.manager.Login(s.ctx, janeEmail, janePassword, false)
	s.Require().NoError(err)
	s.manager.Close()

	_, restarted := s.newManager()
	defer restarted.Close()
	s.Require().NoError(restarted.Start(s.ctx))

	s.Equal(StateUnauthenticated, restarted.Snapshot().State)
}

func (s *ManagerSuite) TestCompletePasswordReset() {
	_, err := s.manager.CompletePasswordReset(s.ctx, "new-password-123")
	s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalid), "needs a session")

	_, err = s.manager.Login(s.ctx, janeEmail, janePassword, false)
	s.Require().NoError(err)

	msg, err := s.manager.CompletePasswordReset(s.ctx, "new-password-123")
	s.Require().NoError(err)
	s.NotEmpty(msg)
	s.Equal(StateAuthenticated, s.manager.Snapshot().State)

	s.manager.Logout(s.ctx)
	_, err = s.manager.Login(s.ctx, janeEmail, "new-password-123", false)
	s.NoError(err)
	s.Contains(s.audit.Actions(s.janeProfileID()), string(audit.EventPasswordChanged))
}

func (s *ManagerSuite) TestRequestPasswordReset() {
	msg, err := s.manager.RequestPasswordReset(s.ctx, janeEmail)
	s.Require().NoError(err)
	s.NotEmpty(msg)

	_, err = s.manager.RequestPasswordReset(s.ctx, " ")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ManagerSuite) TestOAuthIsRejectedByLocalBackend() {
	_, err := s.manager.LoginWithOAuth(s.ctx, "google")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.manager.LoginWithOAuth(s.ctx, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ManagerSuite) TestSubscribersSeeTheLatestState() {
	updates, cancel := s.manager.Subscribe()
	defer cancel()
	s.Equal(StateUnauthenticated, (<-updates).State)

	_, err := s.manager.Login(s.ctx, janeEmail, janePassword, false)
	s.Require().NoError(err)

	s.Eventually(func() bool {
		select {
		case snap := <-updates:
			return snap.State == StateAuthenticated
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func (s *ManagerSuite) TestBackendSignOutEventClearsState() {
	_, err := s.manager.Login(s.ctx, janeEmail, janePassword, false)
	s.Require().NoError(err)

	s.Require().NoError(s.client.SignOut(s.ctx))

	s.Eventually(func() bool {
		return s.manager.Snapshot().State == StateUnauthenticated
	}, time.Second, 5*time.Millisecond)
}

func (s *ManagerSuite) TestRejectedRememberedSessionIsForgotten() {
	stale := &auth.Session{AccessToken: "not-a-token", RefreshToken: "gone", ExpiresAt: testutil.FixedNow.Add(time.Hour)}
	s.Require().NoError(s.remember.Save(s.ctx, defaultRememberKey, stale, time.Hour))

	_, restarted := s.newManager()
	defer restarted.Close()
	s.Require().NoError(restarted.Start(s.ctx))

	s.Equal(StateUnauthenticated, restarted.Snapshot().State)
	_, err := s.remember.Load(s.ctx, defaultRememberKey)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
