// Package realtime forwards profile change notifications from PostgreSQL to
// the session manager, so a deactivated account is signed out without waiting
// for the next refresh.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	id "peoplehub/pkg/domain"
	dErrors "peoplehub/pkg/domain-errors"
)

// Channel is the NOTIFY channel fed by the profiles trigger.
const Channel = "profile_changes"

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// Change is the notification payload.
type Change struct {
	ProfileID id.ProfileID `json:"profile_id"`
	Op        string       `json:"op"`
}

func ParseChange(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	c.ProfileID = id.ProfileID(strings.TrimSpace(string(c.ProfileID)))
	if c.ProfileID == "" {
		return Change{}, fmt.Errorf("decode change: missing profile_id")
	}
	return c, nil
}

// Sink receives profile changes. *session.Manager satisfies it.
type Sink interface {
	ProfileChanged(ctx context.Context, profileID id.ProfileID) error
}

// Conn is the part of *pgx.Conn the listener uses.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Dialer opens a dedicated connection for LISTEN.
type Dialer func(ctx context.Context) (Conn, error)

// PgxDialer dials dsn with pgx. LISTEN needs a connection of its own, so the
// listener does not share the database/sql pool.
func PgxDialer(dsn string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

type Listener struct {
	dial        Dialer
	sink        Sink
	logger      *slog.Logger
	minBackoff  time.Duration
	maxBackoff  time.Duration
	onReconnect func(ctx context.Context)
}

type Option func(*Listener)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithBackoff bounds the wait between reconnect attempts.
func WithBackoff(min, max time.Duration) Option {
	return func(l *Listener) {
		if min > 0 {
			l.minBackoff = min
		}
		if max > 0 {
			l.maxBackoff = max
		}
	}
}

// WithReconnectHook runs after every reconnect. Notifications sent while the
// connection was down are lost, so the hook should resync.
func WithReconnectHook(fn func(ctx context.Context)) Option {
	return func(l *Listener) {
		l.onReconnect = fn
	}
}

func New(dial Dialer, sink Sink, opts ...Option) *Listener {
	l := &Listener{
		dial:       dial,
		sink:       sink,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run listens until ctx ends, reconnecting with exponential backoff.
func (l *Listener) Run(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.minBackoff
	b.MaxInterval = l.maxBackoff
	b.MaxElapsedTime = 0

	connected := false
	for {
		err := l.listen(ctx, func() {
			if connected && l.onReconnect != nil {
				l.onReconnect(ctx)
			}
			connected = true
			b.Reset()
		})
		if ctx.Err() != nil {
			return
		}
		wait := b.NextBackOff()
		l.logger.WarnContext(ctx, "profile change listener disconnected", "error", err, "retry_in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (l *Listener) listen(ctx context.Context, onListening func()) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.InfoContext(ctx, "listening for profile changes", "channel", Channel)
	onListening()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		if n.Channel != Channel {
			continue
		}
		l.dispatch(ctx, n.Payload)
	}
}

func (l *Listener) dispatch(ctx context.Context, payload string) {
	change, err := ParseChange(payload)
	if err != nil {
		l.logger.WarnContext(ctx, "ignoring malformed profile change", "error", err)
		return
	}
	err = l.sink.ProfileChanged(ctx, change.ProfileID)
	switch {
	case err == nil:
	case dErrors.ForcesSignOut(err):
		l.logger.InfoContext(ctx, "profile change ended the session", "profile_id", change.ProfileID, "op", change.Op, "error", err)
	default:
		l.logger.WarnContext(ctx, "profile change not applied", "profile_id", change.ProfileID, "op", change.Op, "error", err)
	}
}
