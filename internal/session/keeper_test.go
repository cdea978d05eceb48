package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"peoplehub/internal/auth"
	"peoplehub/pkg/requestcontext"
	"peoplehub/pkg/testutil"
)

// fakeTarget records what the keeper asks of the manager.
type fakeTarget struct {
	mu        sync.Mutex
	snap      Snapshot
	refreshes []string
	validates []string
	calls     atomic.Int32
}

func (f *fakeTarget) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.clone()
}

func (f *fakeTarget) Refresh(_ context.Context, trigger string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, trigger)
	f.calls.Add(1)
	return f.snap.Session.Clone(), nil
}

func (f *fakeTarget) Validate(_ context.Context, trigger string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validates = append(f.validates, trigger)
	f.calls.Add(1)
	return nil
}

func (f *fakeTarget) recorded() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.refreshes...), append([]string{}, f.validates...)
}

type KeeperSuite struct {
	suite.Suite
	target *fakeTarget
	clock  time.Time
	keeper *Keeper
}

func TestKeeperSuite(t *testing.T) {
	suite.Run(t, new(KeeperSuite))
}

func (s *KeeperSuite) SetupTest() {
	s.clock = testutil.FixedNow
	s.target = &fakeTarget{snap: Snapshot{
		State:   StateAuthenticated,
		Profile: activeProfile("jane"),
		Session: &auth.Session{AccessToken: "a", ExpiresAt: s.clock.Add(time.Hour)},
	}}
	s.keeper = NewKeeper(s.target, KeeperConfig{}, WithKeeperClock(func() time.Time { return s.clock }))
}

func (s *KeeperSuite) expiresIn(d time.Duration) {
	s.target.mu.Lock()
	defer s.target.mu.Unlock()
	s.target.snap.Session.ExpiresAt = s.clock.Add(d)
}

func (s *KeeperSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.clock)
}

func (s *KeeperSuite) TestTickRefreshesOnlyNearExpiry() {
	s.keeper.Tick(s.ctx())
	refreshes, _ := s.target.recorded()
	s.Empty(refreshes)

	s.expiresIn(9 * time.Minute)
	s.keeper.Tick(s.ctx())
	refreshes, _ = s.target.recorded()
	s.Equal([]string{TriggerTimer}, refreshes)
}

func (s *KeeperSuite) TestTickIgnoresSignedOutState() {
	s.target.snap = Snapshot{State: StateUnauthenticated}
	s.keeper.Tick(s.ctx())
	s.Zero(s.target.calls.Load())
}

func (s *KeeperSuite) TestActivityHonorsThresholdAndCooldown() {
	s.expiresIn(14 * time.Minute)

	s.keeper.Activity(s.ctx())
	s.keeper.Activity(s.ctx())
	refreshes, _ := s.target.recorded()
	s.Equal([]string{TriggerActivity}, refreshes, "second activity falls inside the cooldown")

	s.clock = s.clock.Add(6 * time.Minute)
	s.expiresIn(14 * time.Minute)
	s.keeper.Activity(s.ctx())
	refreshes, _ = s.target.recorded()
	s.Len(refreshes, 2)
}

func (s *KeeperSuite) TestActivityLeavesLongLivedSessionsAlone() {
	s.expiresIn(20 * time.Minute)
	s.keeper.Activity(s.ctx())
	s.Zero(s.target.calls.Load())
}

func (s *KeeperSuite) TestRevalidateCooldownIsShared() {
	s.keeper.Revalidate(s.ctx(), SignalVisible)
	s.keeper.Revalidate(s.ctx(), SignalFocus)
	_, validates := s.target.recorded()
	s.Equal([]string{string(SignalVisible)}, validates)

	s.clock = s.clock.Add(61 * time.Second)
	s.keeper.Revalidate(s.ctx(), SignalOnline)
	_, validates = s.target.recorded()
	s.Equal([]string{string(SignalVisible), string(SignalOnline)}, validates)
}

func (s *KeeperSuite) TestRevalidateReachesStalledProfileLoad() {
	s.target.snap = Snapshot{
		State:   StateLoading,
		Session: &auth.Session{AccessToken: "a", ExpiresAt: s.clock.Add(time.Hour)},
	}
	s.keeper.Revalidate(s.ctx(), SignalOnline)
	_, validates := s.target.recorded()
	s.Equal([]string{string(SignalOnline)}, validates)
}

func (s *KeeperSuite) TestRevalidateSkipsLoadingWithoutSession() {
	s.target.snap = Snapshot{State: StateLoading}
	s.keeper.Revalidate(s.ctx(), SignalOnline)
	s.Zero(s.target.calls.Load())
}

func (s *KeeperSuite) TestActivityIgnoresStalledProfileLoad() {
	s.target.snap = Snapshot{
		State:   StateLoading,
		Session: &auth.Session{AccessToken: "a", ExpiresAt: s.clock.Add(time.Minute)},
	}
	s.keeper.Activity(s.ctx())
	s.Zero(s.target.calls.Load())
}

func (s *KeeperSuite) TestNotifyDropsWhenQueueIsFull() {
	for range signalQueue + 5 {
		s.keeper.Notify(SignalFocus)
	}
	s.Len(s.keeper.signals, signalQueue)
}

func (s *KeeperSuite) TestRunDebouncesActivityAndServesSignals() {
	s.expiresIn(4 * time.Minute)
	k := NewKeeper(s.target, KeeperConfig{
		Interval:         time.Hour,
		ActivityDebounce: 10 * time.Millisecond,
	}, WithKeeperClock(func() time.Time { return s.clock }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		k.Run(ctx)
		close(done)
	}()

	for range 5 {
		k.Notify(SignalActivity)
	}
	k.Notify(SignalVisible)

	s.Eventually(func() bool {
		refreshes, validates := s.target.recorded()
		return len(refreshes) == 1 && len(validates) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	refreshes, _ := s.target.recorded()
	s.Equal([]string{TriggerActivity}, refreshes, "a burst of activity is one check")
}

func TestParseSignal(t *testing.T) {
	for _, raw := range []string{"activity", "visible", "focus", "online"} {
		sig, err := ParseSignal(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, string(sig))
	}
	_, err := ParseSignal("scroll")
	assert.Error(t, err)
}

func TestKeeperConfigDefaults(t *testing.T) {
	cfg := KeeperConfig{Interval: time.Minute}.withDefaults()
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, DefaultKeeperConfig().ActivityCooldown, cfg.ActivityCooldown)
	assert.Equal(t, 60*time.Second, cfg.ValidateCooldown)
}
