package session

//go:generate mockgen -source=provider.go -destination=mocks/mocks.go -package=mocks Provider

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"peoplehub/internal/auth"
	"peoplehub/internal/profile/models"
	"peoplehub/internal/session/mocks"
	id "peoplehub/pkg/domain"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/requestcontext"
	"peoplehub/pkg/testutil"
)

// ManagerMockSuite drives the manager with a mocked provider to pin down
// timing-sensitive behavior.
type ManagerMockSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	provider *mocks.MockProvider
	events   *auth.Broadcaster
	session  *auth.Session
	profile  *models.Profile
	manager  *Manager
}

func TestManagerMockSuite(t *testing.T) {
	suite.Run(t, new(ManagerMockSuite))
}

func (s *ManagerMockSuite) SetupTest() {
	s.ctx = testutil.Ctx()
	s.ctrl = gomock.NewController(s.T())
	s.provider = mocks.NewMockProvider(s.ctrl)
	s.events = auth.NewBroadcaster()
	s.session = testSession("jane")
	s.profile = activeProfile("jane")

	s.provider.EXPECT().Events().DoAndReturn(func() (<-chan auth.Event, func()) {
		return s.events.Subscribe()
	}).AnyTimes()
	s.provider.EXPECT().Offline().Return(false).AnyTimes()
	s.provider.EXPECT().SessionChanged(gomock.Any(), gomock.Any()).AnyTimes()

	s.manager = NewManager(s.provider,
		WithSignOutTimeout(50*time.Millisecond),
		WithRetryPolicy(RetryPolicy{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond}),
	)
}

func (s *ManagerMockSuite) TearDownTest() {
	s.manager.Close()
}

// startAuthenticated restores s.session and resolves it to s.profile.
func (s *ManagerMockSuite) startAuthenticated() {
	s.provider.EXPECT().Restore(gomock.Any()).Return(s.session, nil)
	s.provider.EXPECT().Resolve(gomock.Any(), s.session.Identity).Return(s.profile, nil)
	s.Require().NoError(s.manager.Start(s.ctx))
	s.Require().Equal(StateAuthenticated, s.manager.Snapshot().State)
}

func (s *ManagerMockSuite) TestConcurrentRefreshesShareOneCall() {
	s.startAuthenticated()

	entered := make(chan struct{})
	release := make(chan struct{})
	renewed := testSession("jane")
	renewed.ExpiresAt = renewed.ExpiresAt.Add(time.Hour)
	s.provider.EXPECT().Refresh(gomock.Any()).DoAndReturn(func(context.Context) (*auth.Session, error) {
		close(entered)
		<-release
		return renewed, nil
	}).Times(1)

	triggers := []string{TriggerTimer, TriggerActivity, TriggerVisible, TriggerFocus, TriggerOnline}
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	start := func(trigger string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.manager.Refresh(s.ctx, trigger)
			if err != nil || !got.ExpiresAt.Equal(renewed.ExpiresAt) {
				failed.Add(1)
			}
		}()
	}
	start(triggers[0])
	<-entered
	for i := range 20 {
		start(triggers[i%len(triggers)])
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	s.Zero(failed.Load())
	s.Equal(renewed.ExpiresAt, s.manager.Snapshot().Session.ExpiresAt)
}

func (s *ManagerMockSuite) TestTransientLoadIsRetried() {
	transient := dErrors.New(dErrors.CodeTransient, "failed to load profile")
	s.provider.EXPECT().Restore(gomock.Any()).Return(s.session, nil)
	gomock.InOrder(
		s.provider.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(nil, transient).Times(2),
		s.provider.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(s.profile, nil),
	)

	s.Require().NoError(s.manager.Start(s.ctx))
	s.Equal(StateAuthenticated, s.manager.Snapshot().State)
}

func (s *ManagerMockSuite) TestTransientLoadKeepsCredentials() {
	transient := dErrors.New(dErrors.CodeTransient, "failed to load profile")
	s.provider.EXPECT().Restore(gomock.Any()).Return(s.session, nil)
	s.provider.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(nil, transient).Times(3)
	s.provider.EXPECT().SignOut(gomock.Any()).Times(0)

	s.Require().NoError(s.manager.Start(s.ctx))

	snap := s.manager.Snapshot()
	s.Equal(StateLoading, snap.State)
	s.True(dErrors.HasCode(snap.Err, dErrors.CodeTransient))
	s.Require().NotNil(snap.Session)
	s.Equal(s.session.AccessToken, snap.Session.AccessToken)

	s.provider.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(s.profile, nil)
	snap, err := s.manager.Retry(s.ctx)
	s.Require().NoError(err)
	s.Equal(StateAuthenticated, snap.State)
	s.NoError(snap.Err)
}

func (s *ManagerMockSuite) TestOnlineSignalFinishesFailedProfileLoad() {
	transient := dErrors.New(dErrors.CodeTransient, "failed to load profile")
	s.session.ExpiresAt = testutil.FixedNow.Add(time.Hour)
	s.provider.EXPECT().Restore(gomock.Any()).Return(s.session, nil)
	s.provider.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(nil, transient).Times(3)
	s.Require().NoError(s.manager.Start(s.ctx))
	s.Require().Equal(StateLoading, s.manager.Snapshot().State)

	s.provider.EXPECT().CurrentSession(gomock.Any()).Return(s.session.Clone(), nil)
	s.provider.EXPECT().CurrentUser(gomock.Any()).Return(&s.session.Identity, nil)
	s.provider.EXPECT().Resolve(gomock.Any(), s.session.Identity).Return(s.profile, nil)

	keeper := NewKeeper(s.manager, KeeperConfig{})
	keeper.Revalidate(s.ctx, SignalOnline)

	snap := s.manager.Snapshot()
	s.Equal(StateAuthenticated, snap.State)
	s.NoError(snap.Err)
	s.Require().NotNil(snap.Profile)
	s.Equal(s.profile.ID, snap.Profile.ID)
}

func (s *ManagerMockSuite) TestNonTransientLoadIsNotRetried() {
	s.provider.EXPECT().Restore(gomock.Any()).Return(s.session, nil)
	s.provider.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeAccountDisabled, "account is deactivated")).Times(1)
	s.provider.EXPECT().SignOut(gomock.Any()).Return(nil)

	s.Require().NoError(s.manager.Start(s.ctx))

	snap := s.manager.Snapshot()
	s.Equal(StateUnauthenticated, snap.State)
	s.True(dErrors.HasCode(snap.Err, dErrors.CodeAccountDisabled))
}

func (s *ManagerMockSuite) TestRestoreFailureCanBeRetried() {
	gomock.InOrder(
		s.provider.EXPECT().Restore(gomock.Any()).Return(nil, dErrors.New(dErrors.CodeTransient, "auth backend unavailable")),
		s.provider.EXPECT().Restore(gomock.Any()).Return(s.session, nil),
	)
	s.provider.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(s.profile, nil)

	s.Require().NoError(s.manager.Start(s.ctx))
	snap := s.manager.Snapshot()
	s.True(snap.Loading())
	s.True(dErrors.HasCode(snap.Err, dErrors.CodeTransient))

	snap, err := s.manager.Retry(s.ctx)
	s.Require().NoError(err)
	s.Equal(StateAuthenticated, snap.State)
}

func (s *ManagerMockSuite) TestConfigurationErrorFailsStart() {
	s.provider.EXPECT().Restore(gomock.Any()).Return(nil, dErrors.New(dErrors.CodeConfiguration, "auth URL is missing"))

	err := s.manager.Start(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func (s *ManagerMockSuite) TestLogoutDoesNotWaitForAHungBackend() {
	s.startAuthenticated()
	s.provider.EXPECT().SignOut(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	started := time.Now()
	s.manager.Logout(s.ctx)

	s.Less(time.Since(started), time.Second)
	s.Equal(StateUnauthenticated, s.manager.Snapshot().State)
}

func (s *ManagerMockSuite) TestLoadFinishingAfterLogoutIsDiscarded() {
	entered := make(chan struct{})
	release := make(chan struct{})
	s.provider.EXPECT().Restore(gomock.Any()).Return(s.session, nil)
	s.provider.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, auth.RawIdentity) (*models.Profile, error) {
			close(entered)
			<-release
			return s.profile, nil
		})
	s.provider.EXPECT().SignOut(gomock.Any()).Return(nil)

	started := make(chan error, 1)
	go func() { started <- s.manager.Start(s.ctx) }()
	<-entered

	s.manager.Logout(s.ctx)
	close(release)
	s.Require().NoError(<-started)

	snap := s.manager.Snapshot()
	s.Equal(StateUnauthenticated, snap.State)
	s.Nil(snap.Profile)
}

func (s *ManagerMockSuite) TestRejectedRefreshForcesSignOut() {
	s.startAuthenticated()
	s.provider.EXPECT().Refresh(gomock.Any()).Return(nil, dErrors.New(dErrors.CodeSessionInvalid, "refresh token revoked"))
	s.provider.EXPECT().SignOut(gomock.Any()).Return(nil)

	_, err := s.manager.Refresh(s.ctx, TriggerTimer)
	s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalid))

	snap := s.manager.Snapshot()
	s.Equal(StateUnauthenticated, snap.State)
	s.True(dErrors.HasCode(snap.Err, dErrors.CodeSessionInvalid))
}

func (s *ManagerMockSuite) TestRefreshWithoutSessionStaysLocal() {
	s.provider.EXPECT().Restore(gomock.Any()).Return(nil, nil)
	s.Require().NoError(s.manager.Start(s.ctx))
	before := s.manager.Snapshot()

	s.provider.EXPECT().Refresh(gomock.Any()).Times(0)
	s.provider.EXPECT().SignOut(gomock.Any()).Times(0)

	_, err := s.manager.Refresh(s.ctx, TriggerTimer)
	s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalid))

	after := s.manager.Snapshot()
	s.Equal(StateUnauthenticated, after.State)
	s.Equal(before.Version, after.Version, "no transition is recorded")
}

func (s *ManagerMockSuite) TestDeletedProfileSignsOut() {
	s.startAuthenticated()
	s.provider.EXPECT().LoadProfile(gomock.Any(), s.profile.ID).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "profile not found")).Times(1)
	s.provider.EXPECT().SignOut(gomock.Any()).Return(nil)

	err := s.manager.ProfileChanged(s.ctx, s.profile.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalid))

	snap := s.manager.Snapshot()
	s.Equal(StateUnauthenticated, snap.State)
	s.Nil(snap.Profile)
	s.Nil(snap.Session)
	s.True(dErrors.HasCode(snap.Err, dErrors.CodeSessionInvalid))
}

func (s *ManagerMockSuite) TestTransientRefreshFailureKeepsSession() {
	s.startAuthenticated()
	s.provider.EXPECT().Refresh(gomock.Any()).Return(nil, dErrors.New(dErrors.CodeTransient, "auth backend unavailable"))
	s.provider.EXPECT().SignOut(gomock.Any()).Times(0)

	_, err := s.manager.Refresh(s.ctx, TriggerTimer)
	s.True(dErrors.HasCode(err, dErrors.CodeTransient))
	s.Equal(StateAuthenticated, s.manager.Snapshot().State)
}

func (s *ManagerMockSuite) TestValidateRefreshesSessionCloseToExpiry() {
	s.session.ExpiresAt = testutil.FixedNow.Add(4 * time.Minute)
	s.startAuthenticated()

	renewed := s.session.Clone()
	renewed.ExpiresAt = testutil.FixedNow.Add(time.Hour)
	s.provider.EXPECT().CurrentSession(gomock.Any()).Return(s.session.Clone(), nil)
	s.provider.EXPECT().Refresh(gomock.Any()).Return(renewed, nil)

	ctx := requestcontext.WithTime(context.Background(), testutil.FixedNow)
	s.Require().NoError(s.manager.Validate(ctx, TriggerVisible))

	remaining := s.manager.Snapshot().Session.Remaining(testutil.FixedNow)
	s.Greater(remaining, 4*time.Minute)
}

func (s *ManagerMockSuite) TestValidateChecksUserForLongLivedSession() {
	s.session.ExpiresAt = testutil.FixedNow.Add(time.Hour)
	s.startAuthenticated()

	s.provider.EXPECT().CurrentSession(gomock.Any()).Return(s.session.Clone(), nil)
	s.provider.EXPECT().CurrentUser(gomock.Any()).Return(nil, dErrors.New(dErrors.CodeSessionInvalid, "invalid token"))
	s.provider.EXPECT().SignOut(gomock.Any()).Return(nil)

	err := s.manager.Validate(s.ctx, TriggerFocus)
	s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalid))
	s.Equal(StateUnauthenticated, s.manager.Snapshot().State)
}

func (s *ManagerMockSuite) TestValidateWithoutBackendSessionSignsOut() {
	s.startAuthenticated()
	s.provider.EXPECT().CurrentSession(gomock.Any()).Return(nil, nil)
	s.provider.EXPECT().SignOut(gomock.Any()).Return(nil)

	err := s.manager.Validate(s.ctx, TriggerOnline)
	s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalid))
	s.Equal(StateUnauthenticated, s.manager.Snapshot().State)
}

func (s *ManagerMockSuite) TestOwnPasswordChangeDoesNotReloadProfile() {
	s.startAuthenticated()

	s.provider.EXPECT().CurrentSession(gomock.Any()).Return(s.session.Clone(), nil)
	s.provider.EXPECT().UpdatePassword(gomock.Any(), "new-password-123").DoAndReturn(func(context.Context, string) error {
		s.events.Publish(auth.Event{Type: auth.EventUserUpdated, Session: s.session.Clone()})
		return nil
	})
	_, err := s.manager.CompletePasswordReset(s.ctx, "new-password-123")
	s.Require().NoError(err)

	reloaded := make(chan struct{})
	s.provider.EXPECT().LoadProfile(gomock.Any(), s.profile.ID).DoAndReturn(
		func(context.Context, id.ProfileID) (*models.Profile, error) {
			close(reloaded)
			return s.profile, nil
		}).Times(1)
	s.events.Publish(auth.Event{Type: auth.EventUserUpdated, Session: s.session.Clone()})

	select {
	case <-reloaded:
	case <-time.After(time.Second):
		s.Fail("a foreign user update must reload the profile")
	}
	s.Zero(s.manager.pendingPasswordChanges.Load())
}

func (s *ManagerMockSuite) TestFailedPasswordChangeClearsPendingFlag() {
	s.startAuthenticated()
	s.provider.EXPECT().CurrentSession(gomock.Any()).Return(s.session.Clone(), nil)
	s.provider.EXPECT().UpdatePassword(gomock.Any(), gomock.Any()).Return(dErrors.New(dErrors.CodeInvalidInput, "password too short"))

	_, err := s.manager.CompletePasswordReset(s.ctx, "short")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.Zero(s.manager.pendingPasswordChanges.Load())
	s.Equal(StateAuthenticated, s.manager.Snapshot().State)
}

func (s *ManagerMockSuite) TestSignedInEventHydratesOnce() {
	s.provider.EXPECT().Restore(gomock.Any()).Return(nil, nil)
	s.Require().NoError(s.manager.Start(s.ctx))

	s.provider.EXPECT().Resolve(gomock.Any(), s.session.Identity).Return(s.profile, nil).Times(1)
	s.events.Publish(auth.Event{Type: auth.EventSignedIn, Session: s.session.Clone()})
	s.Eventually(func() bool {
		return s.manager.Snapshot().State == StateAuthenticated
	}, time.Second, 5*time.Millisecond)

	s.events.Publish(auth.Event{Type: auth.EventSignedIn, Session: s.session.Clone()})
	s.Eventually(func() bool {
		return s.manager.Snapshot().Version >= 5
	}, time.Second, 5*time.Millisecond)
}
