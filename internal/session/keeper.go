package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"peoplehub/internal/auth"
	"peoplehub/internal/session/metrics"
	"peoplehub/pkg/requestcontext"
)

// Signal is a hint from the UI shell that the user is around.
type Signal string

const (
	SignalActivity Signal = "activity"
	SignalVisible  Signal = "visible"
	SignalFocus    Signal = "focus"
	SignalOnline   Signal = "online"
)

func ParseSignal(s string) (Signal, error) {
	switch sig := Signal(s); sig {
	case SignalActivity, SignalVisible, SignalFocus, SignalOnline:
		return sig, nil
	default:
		return "", fmt.Errorf("unknown signal %q", s)
	}
}

// Refresh triggers, as reported to metrics and audit.
const (
	TriggerTimer    = "timer"
	TriggerActivity = "activity"
	TriggerVisible  = "visible"
	TriggerFocus    = "focus"
	TriggerOnline   = "online"
	TriggerManual   = "manual"
)

const signalQueue = 32

// KeeperConfig holds the keeper's timing. Zero fields take the defaults.
type KeeperConfig struct {
	// Interval is the proactive check period.
	Interval time.Duration
	// RefreshThreshold is how close to expiry the proactive check refreshes.
	RefreshThreshold time.Duration
	// ActivityDebounce collapses bursts of activity into one signal.
	ActivityDebounce time.Duration
	// ActivityCooldown is the minimum gap between activity-driven checks.
	ActivityCooldown time.Duration
	// ActivityThreshold is how close to expiry activity refreshes.
	ActivityThreshold time.Duration
	// ValidateCooldown is the minimum gap between visibility, focus and
	// online validations.
	ValidateCooldown time.Duration
}

func DefaultKeeperConfig() KeeperConfig {
	return KeeperConfig{
		Interval:          5 * time.Minute,
		RefreshThreshold:  10 * time.Minute,
		ActivityDebounce:  time.Second,
		ActivityCooldown:  5 * time.Minute,
		ActivityThreshold: 15 * time.Minute,
		ValidateCooldown:  60 * time.Second,
	}
}

func (c KeeperConfig) withDefaults() KeeperConfig {
	d := DefaultKeeperConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.RefreshThreshold <= 0 {
		c.RefreshThreshold = d.RefreshThreshold
	}
	if c.ActivityDebounce <= 0 {
		c.ActivityDebounce = d.ActivityDebounce
	}
	if c.ActivityCooldown <= 0 {
		c.ActivityCooldown = d.ActivityCooldown
	}
	if c.ActivityThreshold <= 0 {
		c.ActivityThreshold = d.ActivityThreshold
	}
	if c.ValidateCooldown <= 0 {
		c.ValidateCooldown = d.ValidateCooldown
	}
	return c
}

// Target is what the keeper keeps alive. *Manager satisfies it.
type Target interface {
	Snapshot() Snapshot
	Refresh(ctx context.Context, trigger string) (*auth.Session, error)
	Validate(ctx context.Context, trigger string) error
}

// Keeper refreshes the session before it expires. It checks on a timer,
// after user activity, and when the UI becomes visible, focused or online.
// Every refresh goes through Target.Refresh, which lets one call in flight.
type Keeper struct {
	target  Target
	cfg     KeeperConfig
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics

	signals  chan Signal
	activity *rate.Limiter
	validate *rate.Limiter
	handlers sync.WaitGroup
}

type KeeperOption func(*Keeper)

func WithKeeperClock(now func() time.Time) KeeperOption {
	return func(k *Keeper) {
		if now != nil {
			k.now = now
		}
	}
}

func WithKeeperLogger(logger *slog.Logger) KeeperOption {
	return func(k *Keeper) {
		if logger != nil {
			k.logger = logger
		}
	}
}

func WithKeeperMetrics(m *metrics.Metrics) KeeperOption {
	return func(k *Keeper) {
		k.metrics = m
	}
}

func NewKeeper(target Target, cfg KeeperConfig, opts ...KeeperOption) *Keeper {
	cfg = cfg.withDefaults()
	k := &Keeper{
		target:   target,
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		signals:  make(chan Signal, signalQueue),
		activity: rate.NewLimiter(rate.Every(cfg.ActivityCooldown), 1),
		validate: rate.NewLimiter(rate.Every(cfg.ValidateCooldown), 1),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Notify queues a signal without blocking. Signals beyond the queue are dropped.
func (k *Keeper) Notify(sig Signal) {
	select {
	case k.signals <- sig:
	default:
		k.metrics.IncDroppedSignal()
		k.logger.Debug("keeper signal dropped", "signal", string(sig))
	}
}

// Run services the timer and queued signals until ctx ends, then waits for
// running checks.
func (k *Keeper) Run(ctx context.Context) {
	ticker := time.NewTicker(k.cfg.Interval)
	defer ticker.Stop()
	debounce := time.NewTimer(k.cfg.ActivityDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()
	defer k.handlers.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.spawn(ctx, k.Tick)
		case sig := <-k.signals:
			if sig == SignalActivity {
				debounce.Reset(k.cfg.ActivityDebounce)
				continue
			}
			k.spawn(ctx, func(ctx context.Context) { k.Revalidate(ctx, sig) })
		case <-debounce.C:
			k.spawn(ctx, k.Activity)
		}
	}
}

func (k *Keeper) spawn(ctx context.Context, fn func(context.Context)) {
	k.handlers.Add(1)
	go func() {
		defer k.handlers.Done()
		fn(requestcontext.WithTime(ctx, k.now()))
	}()
}

// Tick is the proactive check: refresh when the session ends within the
// refresh threshold.
func (k *Keeper) Tick(ctx context.Context) {
	k.refreshWithin(ctx, k.cfg.RefreshThreshold, TriggerTimer)
}

// Activity refreshes a session close to expiry while the user is active, at
// most once per activity cooldown.
func (k *Keeper) Activity(ctx context.Context) {
	if !k.signedIn() {
		return
	}
	if !k.activity.AllowN(k.now(), 1) {
		return
	}
	k.refreshWithin(ctx, k.cfg.ActivityThreshold, TriggerActivity)
}

// Revalidate handles visibility, focus and online signals, at most once per
// validate cooldown.
func (k *Keeper) Revalidate(ctx context.Context, sig Signal) {
	if !k.holdsSession() {
		return
	}
	if !k.validate.AllowN(k.now(), 1) {
		return
	}
	if err := k.target.Validate(ctx, string(sig)); err != nil {
		k.logger.WarnContext(ctx, "session validation failed", "signal", string(sig), "error", err)
	}
}

func (k *Keeper) signedIn() bool {
	snap := k.target.Snapshot()
	return snap.State == StateAuthenticated && snap.Session != nil
}

// holdsSession also accepts a session whose profile failed to load, so a
// visibility or online signal can finish the load.
func (k *Keeper) holdsSession() bool {
	snap := k.target.Snapshot()
	if snap.Session == nil {
		return false
	}
	return snap.State == StateAuthenticated || snap.State == StateLoading
}

func (k *Keeper) refreshWithin(ctx context.Context, threshold time.Duration, trigger string) {
	snap := k.target.Snapshot()
	if snap.State != StateAuthenticated || snap.Session == nil {
		return
	}
	if !snap.Session.ExpiresWithin(requestcontext.Now(ctx), threshold) {
		return
	}
	if _, err := k.target.Refresh(ctx, trigger); err != nil {
		k.logger.WarnContext(ctx, "session refresh failed", "trigger", trigger, "error", err)
	}
}
