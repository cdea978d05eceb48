package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"peoplehub/internal/auth"
	"peoplehub/internal/auth/device"
	"peoplehub/internal/profile/models"
	"peoplehub/internal/session/metrics"
	id "peoplehub/pkg/domain"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/email"
	audit "peoplehub/pkg/platform/audit"
	"peoplehub/pkg/requestcontext"
)

const (
	defaultSignOutTimeout      = 5 * time.Second
	defaultRevalidateThreshold = 5 * time.Minute

	refreshKey = "refresh"

	msgResetRequested   = "Check your email for a link to reset your password."
	msgPasswordUpdated  = "Your password has been updated."
	msgSessionExpired   = "your session has expired, please sign in again"
	msgNoSession        = "no session to refresh, please sign in"
	msgProfileRemoved   = "your profile no longer exists, please sign in again"
	msgResetLinkExpired = "the reset link has expired, request a new one"
)

var (
	errNotStarted = dErrors.New(dErrors.CodeInternal, "session manager is not running")
	errSuperseded = dErrors.New(dErrors.CodeTransient, "session changed while loading, try again")
)

// RetryPolicy bounds the retries of transient profile loads.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultRetryPolicy makes three attempts, waiting 200ms then 400ms.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Base: 200 * time.Millisecond, Max: 2 * time.Second}

// Manager is the single owner of the session state. Every mutation goes
// through apply, which enforces the transition table in state.go. Auth events
// are consumed by one goroutine started in Start.
//
// Refreshes are coalesced globally: however many callers ask at once, one
// call reaches the provider. Profile loads are coalesced per identity.
type Manager struct {
	provider Provider

	logger              *slog.Logger
	metrics             *metrics.Metrics
	audit               *audit.Emitter
	auditPublisher      audit.Publisher
	tracer              trace.Tracer
	signOutTimeout      time.Duration
	revalidateThreshold time.Duration
	retry               RetryPolicy

	mu      sync.Mutex
	snap    Snapshot
	subs    map[int]chan Snapshot
	nextSub int

	flights singleflight.Group
	workers sync.WaitGroup
	// pendingPasswordChanges counts USER_UPDATED events caused by our own
	// password changes. They carry no profile change and must not reload.
	pendingPasswordChanges atomic.Int32

	cancelEvents func()
	loopDone     chan struct{}
	closeOnce    sync.Once
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(m *Manager) {
		m.auditPublisher = p
	}
}

// WithSignOutTimeout bounds the backend sign-out call. Local state is cleared
// whether or not the call finishes in time.
func WithSignOutTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.signOutTimeout = d
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(m *Manager) {
		if p.Attempts > 0 {
			m.retry.Attempts = p.Attempts
		}
		if p.Base > 0 {
			m.retry.Base = p.Base
		}
		if p.Max > 0 {
			m.retry.Max = p.Max
		}
	}
}

// WithRevalidateThreshold sets how close to expiry Validate refreshes
// instead of merely checking the user.
func WithRevalidateThreshold(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.revalidateThreshold = d
		}
	}
}

func NewManager(provider Provider, opts ...Option) *Manager {
	m := &Manager{
		provider:            provider,
		logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:              otel.Tracer("peoplehub/session"),
		signOutTimeout:      defaultSignOutTimeout,
		revalidateThreshold: defaultRevalidateThreshold,
		retry:               DefaultRetryPolicy,
		snap:                Snapshot{State: StateUninitialized},
		subs:                make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.audit = audit.NewEmitter(m.logger, m.auditPublisher)
	return m
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.clone()
}

// Subscribe streams snapshots, starting with the current one. A slow
// subscriber only ever sees the latest snapshot.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subID := m.nextSub
	m.nextSub++
	ch := make(chan Snapshot, 1)
	ch <- m.snap.clone()
	m.subs[subID] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[subID]; ok {
			delete(m.subs, subID)
			close(c)
		}
	}
}

// apply runs one transition. It reports the state before and after, and
// whether the transition took effect.
func (m *Manager) apply(ctx context.Context, t transition) (Snapshot, Snapshot, bool) {
	m.mu.Lock()
	prev := m.snap
	cur, ok := next(prev, t)
	if !ok {
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "session transition ignored",
			"change", t.change.String(),
			"state", string(prev.State),
		)
		return prev.clone(), prev.clone(), false
	}
	m.snap = cur
	for _, ch := range m.subs {
		publishLatest(ch, cur.clone())
	}
	m.mu.Unlock()

	if prev.State != cur.State {
		m.metrics.IncTransition(string(prev.State), string(cur.State))
		m.logger.InfoContext(ctx, "session state changed",
			"from", string(prev.State),
			"to", string(cur.State),
			"change", t.change.String(),
		)
	}
	return prev.clone(), cur.clone(), true
}

func publishLatest(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// Start restores the previous session, if any, and begins consuming auth
// events. Only configuration errors are returned; every other failure is
// visible in the snapshot.
func (m *Manager) Start(ctx context.Context) error {
	if _, _, ok := m.apply(ctx, transition{change: changeStart}); !ok {
		return dErrors.New(dErrors.CodeInternal, "session manager already started")
	}
	events, cancel := m.provider.Events()
	m.cancelEvents = cancel
	m.loopDone = make(chan struct{})
	go m.run(context.WithoutCancel(ctx), events)

	err := m.restore(ctx)
	if dErrors.HasCode(err, dErrors.CodeConfiguration) {
		return err
	}
	return nil
}

// Close stops consuming auth events and waits for background loads.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.cancelEvents != nil {
			m.cancelEvents()
			<-m.loopDone
		}
		m.workers.Wait()

		m.mu.Lock()
		defer m.mu.Unlock()
		for subID, ch := range m.subs {
			delete(m.subs, subID)
			close(ch)
		}
	})
}

func (m *Manager) restore(ctx context.Context) error {
	session, err := m.provider.Restore(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to restore session", "error", err)
		m.apply(ctx, transition{change: changeLoadFailed, err: err})
		return err
	}
	if session == nil {
		m.apply(ctx, transition{change: changeSignedOut})
		return nil
	}
	_, err = m.hydrate(ctx, session, 0)
	return err
}

func (m *Manager) run(ctx context.Context, events <-chan auth.Event) {
	defer close(m.loopDone)
	for ev := range events {
		m.handle(ctx, ev)
	}
}

func (m *Manager) handle(ctx context.Context, ev auth.Event) {
	m.logger.DebugContext(ctx, "auth event", "type", string(ev.Type))
	switch ev.Type {
	case auth.EventSignedIn:
		if ev.Session == nil {
			return
		}
		epoch := m.epoch()
		m.background(func() {
			_, _ = m.hydrate(ctx, ev.Session, epoch)
		})
	case auth.EventSignedOut:
		if _, _, ok := m.apply(ctx, transition{change: changeSignedOut}); ok {
			m.provider.SessionChanged(ctx, nil)
		}
	case auth.EventTokenRefreshed:
		m.adoptSession(ctx, ev.Session)
	case auth.EventUserUpdated:
		m.adoptSession(ctx, ev.Session)
		if m.consumePasswordChange() {
			return
		}
		cur := m.Snapshot()
		if cur.State != StateAuthenticated || cur.Profile == nil {
			return
		}
		profileID := cur.Profile.ID
		m.background(func() {
			_, _ = m.reload(ctx, profileID)
		})
	}
}

func (m *Manager) background(fn func()) {
	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		fn()
	}()
}

func (m *Manager) epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.epoch
}

func (m *Manager) consumePasswordChange() bool {
	for {
		n := m.pendingPasswordChanges.Load()
		if n <= 0 {
			return false
		}
		if m.pendingPasswordChanges.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func (m *Manager) adoptSession(ctx context.Context, session *auth.Session) {
	if session == nil {
		return
	}
	if _, _, ok := m.apply(ctx, transition{change: changeSessionRefreshed, session: session}); ok {
		m.provider.SessionChanged(ctx, session)
	}
}

// hydrate turns a session into an authenticated state. Concurrent hydrations
// of the same identity share one profile load. A non-zero epoch drops the
// hydration when the session was signed out since the caller looked.
func (m *Manager) hydrate(ctx context.Context, session *auth.Session, epoch uint64) (Snapshot, error) {
	key := "hydrate:" + string(session.Identity.ID)
	ch := m.flights.DoChan(key, func() (any, error) {
		return m.doHydrate(context.WithoutCancel(ctx), session.Clone(), epoch)
	})
	select {
	case res := <-ch:
		snap, _ := res.Val.(Snapshot)
		return snap, res.Err
	case <-ctx.Done():
		return m.Snapshot(), ctx.Err()
	}
}

func (m *Manager) doHydrate(ctx context.Context, session *auth.Session, epoch uint64) (Snapshot, error) {
	cur := m.Snapshot()
	if cur.State == StateAuthenticated && cur.Session != nil && cur.Session.Identity.ID == session.Identity.ID {
		m.adoptSession(ctx, session)
		return m.Snapshot(), nil
	}

	_, loading, ok := m.apply(ctx, transition{change: changeLoading, epoch: epoch, session: session})
	if !ok {
		if cur.State == StateUninitialized {
			return cur, errNotStarted
		}
		return cur, errSuperseded
	}

	ctx, span := m.tracer.Start(ctx, "session.hydrate",
		trace.WithAttributes(attribute.String("identity_id", string(session.Identity.ID))),
	)
	defer span.End()

	profile, err := m.loadWithRetry(ctx, func(ctx context.Context) (*models.Profile, error) {
		return m.provider.Resolve(ctx, session.Identity)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "hydrate failed")
	}
	return m.settle(ctx, loading.epoch, session, profile, err)
}

// settle applies the outcome of a profile load started at epoch.
func (m *Manager) settle(ctx context.Context, epoch uint64, session *auth.Session, profile *models.Profile, err error) (Snapshot, error) {
	if err == nil {
		err = checkProfile(profile)
	}
	if err == nil {
		_, cur, ok := m.apply(ctx, transition{change: changeAuthenticated, epoch: epoch, session: session, profile: profile})
		if !ok {
			return cur, errSuperseded
		}
		if session != nil {
			m.provider.SessionChanged(ctx, session)
		}
		return cur, nil
	}
	if dErrors.ForcesSignOut(err) {
		m.forceSignOut(ctx, epoch, err)
		return m.Snapshot(), err
	}
	m.logger.WarnContext(ctx, "profile load failed", "error", err)
	_, cur, _ := m.apply(ctx, transition{change: changeLoadFailed, epoch: epoch, err: err})
	return cur, err
}

func checkProfile(profile *models.Profile) error {
	if profile == nil {
		return dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	return profile.CheckAccess()
}

// loadWithRetry retries transient failures with exponential backoff. Any
// other error ends the attempt at once.
func (m *Manager) loadWithRetry(ctx context.Context, load func(context.Context) (*models.Profile, error)) (*models.Profile, error) {
	var profile *models.Profile
	op := func() error {
		p, err := load(ctx)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeTransient) {
				return err
			}
			return backoff.Permanent(err)
		}
		profile = p
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.retry.Base
	b.MaxInterval = m.retry.Max
	b.MaxElapsedTime = 0
	retries := uint64(0)
	if m.retry.Attempts > 1 {
		retries = uint64(m.retry.Attempts - 1)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		m.metrics.IncLoadRetry()
		m.logger.WarnContext(ctx, "profile load failed, retrying", "error", err, "wait", wait)
	})
	return profile, err
}

// reload refreshes the profile behind an authenticated session. The state
// stays Authenticated while the load runs; a transient failure keeps the
// profile already shown.
func (m *Manager) reload(ctx context.Context, profileID id.ProfileID) (Snapshot, error) {
	ch := m.flights.DoChan("profile:"+string(profileID), func() (any, error) {
		return m.doReload(context.WithoutCancel(ctx), profileID)
	})
	select {
	case res := <-ch:
		snap, _ := res.Val.(Snapshot)
		return snap, res.Err
	case <-ctx.Done():
		return m.Snapshot(), ctx.Err()
	}
}

func (m *Manager) doReload(ctx context.Context, profileID id.ProfileID) (Snapshot, error) {
	cur := m.Snapshot()
	if cur.State != StateAuthenticated || cur.Profile == nil || cur.Profile.ID != profileID {
		return cur, nil
	}
	profile, err := m.loadWithRetry(ctx, func(ctx context.Context) (*models.Profile, error) {
		return m.provider.LoadProfile(ctx, profileID)
	})
	if err == nil {
		err = checkProfile(profile)
	}
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		err = dErrors.Wrap(err, dErrors.CodeSessionInvalid, msgProfileRemoved)
	}
	if err == nil {
		_, snap, ok := m.apply(ctx, transition{change: changeAuthenticated, epoch: cur.epoch, profile: profile})
		if !ok {
			return snap, errSuperseded
		}
		return snap, nil
	}
	if dErrors.ForcesSignOut(err) {
		m.forceSignOut(ctx, cur.epoch, err)
		return m.Snapshot(), err
	}
	m.logger.WarnContext(ctx, "profile reload failed", "profile_id", profileID, "error", err)
	return m.Snapshot(), err
}

// forceSignOut clears local state with err as the reason, then signs out of
// the backend. Epoch zero forces unconditionally.
func (m *Manager) forceSignOut(ctx context.Context, epoch uint64, err error) {
	prev, _, ok := m.apply(ctx, transition{change: changeSignedOut, epoch: epoch, err: err})
	if !ok {
		return
	}
	reason := string(dErrors.CodeOf(err))
	m.metrics.IncForcedSignOut(reason)
	m.logger.WarnContext(ctx, "session signed out", "reason", reason, "error", err)

	event := audit.Event{Action: string(audit.EventForcedSignOut), Reason: reason}
	if prev.Profile != nil {
		event.ProfileID = prev.Profile.ID
	}
	if prev.Session != nil {
		event.IdentityID = prev.Session.Identity.ID
		event.Email = prev.Session.Identity.Email
	}
	m.audit.Emit(ctx, event)

	m.provider.SessionChanged(ctx, nil)
	m.signOutBackend(ctx)
}

// signOutBackend never waits longer than the sign-out timeout.
func (m *Manager) signOutBackend(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.signOutTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.provider.SignOut(ctx)
	}()
	select {
	case err := <-done:
		if err != nil {
			m.logger.WarnContext(ctx, "backend sign-out failed", "error", err)
		}
	case <-ctx.Done():
		m.metrics.IncSignOutTimeout()
		m.logger.WarnContext(ctx, "backend sign-out timed out", "timeout", m.signOutTimeout)
	}
}

// Refresh renews the session. Concurrent callers share one call to the
// provider. A rejected session forces sign-out; a transient failure leaves
// the session alone. Without a session there is nothing to renew.
func (m *Manager) Refresh(ctx context.Context, trigger string) (*auth.Session, error) {
	if m.Snapshot().Session == nil {
		return nil, dErrors.New(dErrors.CodeSessionInvalid, msgNoSession)
	}
	ch := m.flights.DoChan(refreshKey, func() (any, error) {
		return m.doRefresh(context.WithoutCancel(ctx), trigger)
	})
	select {
	case res := <-ch:
		session, _ := res.Val.(*auth.Session)
		return session.Clone(), res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) doRefresh(ctx context.Context, trigger string) (*auth.Session, error) {
	ctx, span := m.tracer.Start(ctx, "session.refresh",
		trace.WithAttributes(attribute.String("trigger", trigger)),
	)
	defer span.End()

	epoch := m.epoch()
	session, err := m.provider.Refresh(ctx)
	if err == nil && session == nil {
		err = dErrors.New(dErrors.CodeSessionInvalid, msgSessionExpired)
	}
	m.metrics.IncRefresh(trigger, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		if dErrors.ForcesSignOut(err) {
			m.forceSignOut(ctx, epoch, err)
		} else {
			m.logger.WarnContext(ctx, "session refresh failed", "trigger", trigger, "error", err)
		}
		return nil, err
	}

	m.adoptSession(ctx, session)
	m.audit.Emit(ctx, audit.Event{
		Action:     string(audit.EventSessionRefreshed),
		IdentityID: session.Identity.ID,
		Reason:     trigger,
	})
	return session, nil
}

// Validate checks the session is still good: refresh it when close to
// expiry, otherwise ask the backend who it belongs to. A missing profile is
// loaded again.
func (m *Manager) Validate(ctx context.Context, trigger string) error {
	if m.provider.Offline() {
		return nil
	}
	cur := m.Snapshot()
	if cur.State != StateAuthenticated && cur.State != StateLoading {
		return nil
	}
	if cur.Session == nil {
		// Restore has not produced a session yet; Retry owns that path.
		return nil
	}

	session, err := m.provider.CurrentSession(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		err := dErrors.New(dErrors.CodeSessionInvalid, msgSessionExpired)
		m.forceSignOut(ctx, cur.epoch, err)
		return err
	}

	if session.ExpiresWithin(requestcontext.Now(ctx), m.revalidateThreshold) {
		refreshed, err := m.Refresh(ctx, trigger)
		if err != nil {
			return err
		}
		session = refreshed
	} else {
		user, err := m.provider.CurrentUser(ctx)
		if err == nil && user == nil {
			err = dErrors.New(dErrors.CodeSessionInvalid, msgSessionExpired)
		}
		if err != nil {
			if dErrors.ForcesSignOut(err) {
				m.forceSignOut(ctx, cur.epoch, err)
			}
			return err
		}
	}

	cur = m.Snapshot()
	if cur.State == StateAuthenticated && cur.Profile != nil {
		return nil
	}
	if cur.State != StateLoading {
		return nil
	}
	_, err = m.hydrate(ctx, session, cur.epoch)
	return err
}

// Login signs in with a password and loads the profile behind it.
func (m *Manager) Login(ctx context.Context, address, password string, remember bool) (Snapshot, error) {
	address = strings.TrimSpace(address)
	if address == "" || password == "" {
		return m.Snapshot(), dErrors.New(dErrors.CodeInvalidInput, "email and password are required")
	}
	dev := device.ParseUserAgent(requestcontext.UserAgent(ctx))

	session, err := m.provider.SignIn(ctx, address, password, remember)
	if err != nil {
		m.auditSignInFailed(ctx, address, dev, err)
		return m.Snapshot(), err
	}
	snap, err := m.hydrate(ctx, session, 0)
	if err != nil {
		m.auditSignInFailed(ctx, address, dev, err)
		return snap, err
	}

	m.audit.Emit(ctx, audit.Event{
		Action:     string(audit.EventSignedIn),
		ProfileID:  snap.Profile.ID,
		IdentityID: session.Identity.ID,
		Email:      email.Normalize(address),
		Device:     dev,
	})
	return snap, nil
}

func (m *Manager) auditSignInFailed(ctx context.Context, address, dev string, err error) {
	reason := string(dErrors.CodeOf(err))
	if reason == "" {
		reason = string(dErrors.CodeInternal)
	}
	m.audit.Emit(ctx, audit.Event{
		Action: string(audit.EventSignInFailed),
		Email:  email.Normalize(address),
		Reason: reason,
		Device: dev,
	})
}

// LoginWithOAuth returns the provider URL to send the user to. The session
// arrives later as an auth event.
func (m *Manager) LoginWithOAuth(ctx context.Context, provider string) (string, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "provider is required")
	}
	return m.provider.SignInWithOAuth(ctx, provider)
}

// Logout clears local state at once and then signs out of the backend,
// giving up after the sign-out timeout.
func (m *Manager) Logout(ctx context.Context) {
	prev, _, ok := m.apply(ctx, transition{change: changeSignedOut})
	m.provider.SessionChanged(ctx, nil)
	m.signOutBackend(ctx)
	if !ok || prev.Profile == nil {
		return
	}
	event := audit.Event{
		Action:    string(audit.EventSignedOut),
		ProfileID: prev.Profile.ID,
		Device:    device.ParseUserAgent(requestcontext.UserAgent(ctx)),
	}
	if prev.Session != nil {
		event.IdentityID = prev.Session.Identity.ID
	}
	m.audit.Emit(ctx, event)
}

// RequestPasswordReset sends a recovery link to address.
func (m *Manager) RequestPasswordReset(ctx context.Context, address string) (string, error) {
	address = email.Normalize(address)
	if address == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if err := m.provider.RequestPasswordReset(ctx, address); err != nil {
		return "", err
	}
	m.audit.Emit(ctx, audit.Event{
		Action: string(audit.EventPasswordResetRequested),
		Email:  address,
	})
	return msgResetRequested, nil
}

// CompletePasswordReset sets a new password for the signed-in user, usually
// a session established by a recovery link.
func (m *Manager) CompletePasswordReset(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "password is required")
	}
	session, err := m.provider.CurrentSession(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", dErrors.New(dErrors.CodeSessionInvalid, msgResetLinkExpired)
	}

	m.pendingPasswordChanges.Add(1)
	if err := m.provider.UpdatePassword(ctx, password); err != nil {
		m.consumePasswordChange()
		return "", err
	}

	event := audit.Event{
		Action:     string(audit.EventPasswordChanged),
		IdentityID: session.Identity.ID,
		Email:      session.Identity.Email,
	}
	if snap := m.Snapshot(); snap.Profile != nil {
		event.ProfileID = snap.Profile.ID
	}
	m.audit.Emit(ctx, event)
	return msgPasswordUpdated, nil
}

// CheckPermission reports whether the signed-in profile holds permission.
func (m *Manager) CheckPermission(permission string) bool {
	snap := m.Snapshot()
	if !snap.IsAuthenticated() {
		return false
	}
	return snap.Profile.HasPermission(models.Permission(permission))
}

// ProfileChanged reloads the current profile when profileID is the one
// signed in. Other ids are ignored.
func (m *Manager) ProfileChanged(ctx context.Context, profileID id.ProfileID) error {
	_, err := m.reload(ctx, profileID)
	return err
}

// Retry repeats whatever left the session stuck: the restore, the profile
// load, or a failed reload.
func (m *Manager) Retry(ctx context.Context) (Snapshot, error) {
	cur := m.Snapshot()
	switch {
	case cur.State == StateLoading && cur.Session != nil:
		return m.hydrate(ctx, cur.Session, cur.epoch)
	case cur.State == StateLoading && cur.Err != nil:
		err := m.restore(ctx)
		return m.Snapshot(), err
	case cur.State == StateAuthenticated:
		return m.reload(ctx, cur.Profile.ID)
	default:
		return cur, nil
	}
}

// IsSuperseded reports that an operation lost a race with a sign-out or a
// newer sign-in.
func IsSuperseded(err error) bool {
	return errors.Is(err, errSuperseded)
}
