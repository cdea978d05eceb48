package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"peoplehub/internal/auth"
	"peoplehub/internal/auth/hosted"
	"peoplehub/internal/auth/local"
	"peoplehub/internal/auth/lockout"
	lockoutstore "peoplehub/internal/auth/store/lockout"
	"peoplehub/internal/auth/store/revocation"
	sessionstore "peoplehub/internal/auth/store/session"
	"peoplehub/internal/auth/store/token"
	userstore "peoplehub/internal/auth/store/user"
	identityhandler "peoplehub/internal/identity/handler"
	identitymetrics "peoplehub/internal/identity/metrics"
	identityservice "peoplehub/internal/identity/service"
	"peoplehub/internal/identity/store/link"
	"peoplehub/internal/platform/config"
	"peoplehub/internal/platform/httpserver"
	"peoplehub/internal/platform/metrics"
	"peoplehub/internal/platform/postgres"
	platformredis "peoplehub/internal/platform/redis"
	profilemetrics "peoplehub/internal/profile/metrics"
	profileservice "peoplehub/internal/profile/service"
	"peoplehub/internal/profile/store/employee"
	profilestore "peoplehub/internal/profile/store/profile"
	"peoplehub/internal/realtime"
	"peoplehub/internal/session"
	sessionhandler "peoplehub/internal/session/handler"
	sessionmetrics "peoplehub/internal/session/metrics"
	httptransport "peoplehub/internal/transport/http"
	"peoplehub/pkg/platform/audit"
	"peoplehub/pkg/platform/audit/publisher"
	"peoplehub/pkg/platform/audit/store/kafka"
	"peoplehub/pkg/platform/audit/store/logsink"
	auditpostgres "peoplehub/pkg/platform/audit/store/postgres"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/platform/circuit"
	"peoplehub/pkg/platform/tx"
)

// app is the composed session agent.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	db      *sql.DB
	redis   *platformredis.Client
	audit   *publisher.Publisher
	closers []func()

	identity *identityservice.Service
	profiles *profileservice.Service
	local    *local.Backend
	revoked  *revocation.PostgresList
	manager  *session.Manager
	keeper   *session.Keeper
	listener *realtime.Listener

	router http.Handler
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if err := a.openInfrastructure(ctx); err != nil {
		return nil, err
	}
	if err := a.buildAudit(); err != nil {
		return nil, err
	}
	a.buildServices()

	provider, err := a.buildProvider()
	if err != nil {
		return nil, err
	}

	sm := sessionmetrics.New(a.metrics.Registry)
	a.manager = session.NewManager(provider,
		session.WithLogger(logger),
		session.WithMetrics(sm),
		session.WithAuditPublisher(a.audit),
		session.WithSignOutTimeout(cfg.Session.SignOutTimeout),
		session.WithRevalidateThreshold(cfg.Session.RevalidateThreshold),
		session.WithRetryPolicy(session.DefaultRetryPolicy),
	)
	if !provider.Offline() {
		a.keeper = session.NewKeeper(a.manager, session.KeeperConfig{
			Interval:          cfg.Keeper.Interval,
			RefreshThreshold:  cfg.Keeper.RefreshThreshold,
			ActivityDebounce:  cfg.Keeper.ActivityDebounce,
			ActivityCooldown:  cfg.Keeper.ActivityCooldown,
			ActivityThreshold: cfg.Keeper.ActivityThreshold,
			ValidateCooldown:  cfg.Keeper.ValidateCooldown,
		}, session.WithKeeperLogger(logger), session.WithKeeperMetrics(sm))
	}
	if a.db != nil && cfg.Auth.Mode != config.ModeDemo {
		a.listener = realtime.New(realtime.PgxDialer(cfg.Database.URL), a.manager,
			realtime.WithLogger(logger),
			realtime.WithReconnectHook(a.resyncProfile),
		)
	}

	a.router = a.buildRouter()
	return a, nil
}

func (a *app) openInfrastructure(ctx context.Context) error {
	if a.cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, a.cfg.Database.URL, postgres.WithPool(postgres.PoolConfig{
			MaxOpenConns:    a.cfg.Database.MaxOpenConns,
			MaxIdleConns:    a.cfg.Database.MaxIdleConns,
			ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
		}))
		if err != nil {
			return err
		}
		a.db = db
		a.closers = append(a.closers, func() { _ = db.Close() })
		if a.cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
		}
	}

	rc, err := platformredis.New(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		a.redis = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })
	}
	return nil
}

func (a *app) buildAudit() error {
	var store audit.Store
	switch a.cfg.Audit.Sink {
	case config.AuditPostgres:
		if a.db == nil {
			return dErrors.New(dErrors.CodeConfiguration, "audit.sink=postgres requires database.url")
		}
		store = auditpostgres.New(a.db)
	case config.AuditKafka:
		client, err := kafka.NewClient(a.cfg.Kafka.Brokers, a.cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		store = kafka.New(client, a.cfg.Kafka.AuditTopic,
			kafka.WithLogger(a.logger),
			kafka.WithMetrics(kafka.NewMetrics(a.metrics.Registry)),
			kafka.WithBreaker(circuit.New("audit-kafka")),
		)
	default:
		store = logsink.New(a.logger)
	}
	a.audit = publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(a.cfg.Audit.Buffer),
		publisher.WithLogger(a.logger),
	)
	a.closers = append(a.closers, a.audit.Close)
	return nil
}

// persistent reports whether domain data lives in PostgreSQL. Demo mode never
// touches the database.
func (a *app) persistent() bool {
	return a.db != nil && a.cfg.Auth.Mode != config.ModeDemo
}

// profileStore is one store serving both the loader and the email directory.
type profileStore interface {
	profileservice.ProfileStore
	identityservice.ProfileDirectory
}

func (a *app) buildServices() {
	var (
		links     identityservice.LinkStore
		profiles  profileStore
		employees profileservice.EmployeeDirectory
	)
	identityOpts := []identityservice.Option{
		identityservice.WithLogger(a.logger),
		identityservice.WithMetrics(identitymetrics.New(a.metrics.Registry)),
		identityservice.WithAuditPublisher(a.audit),
	}
	if a.persistent() {
		links = link.NewPostgres(a.db)
		profiles = profilestore.NewPostgres(a.db)
		employees = employee.NewPostgres(a.db)
		identityOpts = append(identityOpts, identityservice.WithTx(tx.NewSQLRunner(a.db)))
	} else {
		links = link.NewInMemoryStore()
		profiles = profilestore.NewInMemoryStore()
		employees = employee.NewInMemoryStore()
	}

	a.identity = identityservice.New(links, profiles, identityOpts...)
	a.profiles = profileservice.New(profiles, employees, a.identity,
		profileservice.WithLogger(a.logger),
		profileservice.WithMetrics(profilemetrics.New(a.metrics.Registry)),
		profileservice.WithAuditPublisher(a.audit),
		profileservice.WithLoadTimeout(a.cfg.Session.LoadTimeout),
	)
	a.closers = append(a.closers, a.profiles.Wait)
}

func (a *app) buildProvider() (session.Provider, error) {
	var client auth.Client
	switch a.cfg.Auth.Mode {
	case config.ModeDemo:
		return session.NewDemoProvider(), nil
	case config.ModeHosted:
		c, err := hosted.New(a.cfg.Backend.URL, a.cfg.Backend.AnonKey,
			hosted.WithLogger(a.logger),
			hosted.WithBreaker(circuit.New("auth-backend")),
		)
		if err != nil {
			return nil, err
		}
		client = c
	case config.ModeLocal:
		backend, err := a.buildLocalBackend()
		if err != nil {
			return nil, err
		}
		a.local = backend
		client = local.NewClient(backend)
	default:
		return nil, dErrors.New(dErrors.CodeConfiguration, "unknown auth.mode "+a.cfg.Auth.Mode)
	}

	var remember auth.SessionStore = sessionstore.NewInMemory()
	if a.redis != nil {
		remember = sessionstore.NewRedis(a.redis.Client)
	}
	return session.NewAuthProvider(client, a.profiles,
		session.WithRememberStore(remember, a.cfg.Session.RememberTTL),
		session.WithRedirectURL(a.cfg.Auth.RedirectURL),
		session.WithProviderLogger(a.logger),
	), nil
}

func (a *app) buildLocalBackend() (*local.Backend, error) {
	var (
		users    local.UserStore
		tokens   local.TokenStore
		revoked  local.RevocationList
		failures lockout.Store
	)
	if a.persistent() {
		users = userstore.NewPostgres(a.db)
		tokens = token.NewPostgres(a.db)
		a.revoked = revocation.NewPostgres(a.db)
		revoked = a.revoked
		failures = lockoutstore.NewPostgres(a.db)
	} else {
		users = userstore.NewInMemory()
		tokens = token.NewInMemory()
		revoked = revocation.NewInMemory(time.Now)
		failures = lockoutstore.NewInMemory()
	}
	if a.redis != nil {
		revoked = revocation.NewRedis(a.redis.Client)
		a.revoked = nil
	}
	return local.NewBackend(local.Config{
		SigningKey: a.cfg.Auth.SigningKey,
		AccessTTL:  a.cfg.Auth.AccessTTL,
		RefreshTTL: a.cfg.Auth.RefreshTTL,
	}, users, tokens, revoked,
		local.WithLogger(a.logger),
		local.WithThrottle(lockout.New(failures, lockout.Config{
			Attempts:     a.cfg.Auth.LockoutAttempts,
			Window:       a.cfg.Auth.LockoutWindow,
			LockDuration: a.cfg.Auth.LockoutDuration,
		}, lockout.WithLogger(a.logger))),
	)
}

func (a *app) buildRouter() http.Handler {
	var health []httptransport.HealthCheck
	if a.db != nil {
		health = append(health, httptransport.HealthCheck{Name: "postgres", Check: a.db.PingContext})
	}
	if a.redis != nil {
		health = append(health, httptransport.HealthCheck{Name: "redis", Check: a.redis.Health})
	}

	var signals sessionhandler.Signals
	if a.keeper != nil {
		signals = a.keeper
	}
	return httptransport.NewRouter(httptransport.Deps{
		Session:    sessionhandler.New(a.manager, signals, a.logger),
		Identity:   identityhandler.New(a.identity, a.logger),
		Metrics:    a.metrics,
		AdminToken: a.cfg.Admin.Token,
		Health:     health,
		Logger:     a.logger,
	})
}

// start brings the session up. Only a configuration error stops the process;
// anything else is surfaced through the session state.
func (a *app) start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// run starts the session, the background jobs and the HTTP server, and blocks
// until ctx ends or the server fails.
func (a *app) run(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.keeper != nil {
		g.Go(func() error {
			a.keeper.Run(ctx)
			return nil
		})
	}
	if a.listener != nil {
		g.Go(func() error {
			a.listener.Run(ctx)
			return nil
		})
	}
	if a.cfg.Auth.Mode != config.ModeDemo {
		g.Go(func() error {
			every(ctx, a.cfg.Links.RepairInterval, a.repairLinks)
			return nil
		})
	}
	if a.local != nil {
		g.Go(func() error {
			every(ctx, a.cfg.Auth.PurgeInterval, a.purgeTokens)
			return nil
		})
	}

	srv := httpserver.New(a.cfg.HTTP.Addr, a.router)
	srv.ReadHeaderTimeout = a.cfg.HTTP.ReadHeaderTimeout
	g.Go(func() error {
		return httpserver.Run(ctx, srv, a.cfg.HTTP.ShutdownTimeout, a.logger)
	})
	return g.Wait()
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	if a.manager != nil {
		a.manager.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) repairLinks(ctx context.Context) {
	repaired, err := a.identity.RepairAll(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "email link consistency check failed", "error", err)
		return
	}
	if repaired > 0 {
		a.logger.InfoContext(ctx, "email link consistency check repaired profiles", "repaired", repaired)
	}
}

func (a *app) purgeTokens(ctx context.Context) {
	purged, err := a.local.PurgeExpired(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "token purge failed", "error", err)
		return
	}
	a.logger.DebugContext(ctx, "expired tokens purged", "purged", purged)

	if a.revoked == nil {
		return
	}
	if n, err := a.revoked.DeleteExpired(ctx); err != nil {
		a.logger.WarnContext(ctx, "revocation purge failed", "error", err)
	} else {
		a.logger.DebugContext(ctx, "expired revocations purged", "purged", n)
	}
}

// resyncProfile reloads the signed-in profile after the change feed was down.
func (a *app) resyncProfile(ctx context.Context) {
	snap := a.manager.Snapshot()
	if snap.Profile == nil {
		return
	}
	if err := a.manager.ProfileChanged(ctx, snap.Profile.ID); err != nil {
		a.logger.InfoContext(ctx, "profile resync after reconnect", "error", err)
	}
}

// every runs fn once per interval until ctx ends. A non-positive interval
// disables the job.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
