package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	txcontext "peoplehub/pkg/platform/tx"
)

// PostgresList keeps revoked jtis in token_revocations so they survive an
// agent restart. Expired rows are ignored on read and purged by DeleteExpired.
type PostgresList struct {
	db    *sql.DB
	clock Clock
}

type PostgresOption func(*PostgresList)

func WithClock(clock Clock) PostgresOption {
	return func(l *PostgresList) {
		if clock != nil {
			l.clock = clock
		}
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresList {
	l := &PostgresList{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *PostgresList) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	_, err := txcontext.Executor(ctx, l.db).ExecContext(ctx, `
		INSERT INTO token_revocations (jti, expires_at) VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET expires_at = GREATEST(token_revocations.expires_at, EXCLUDED.expires_at)
	`, jti, l.clock().Add(ttl))
	if err != nil {
		return fmt.Errorf("revoke %s: %w", jti, err)
	}
	return nil
}

func (l *PostgresList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	var until time.Time
	row := txcontext.Executor(ctx, l.db).QueryRowContext(ctx, `SELECT expires_at FROM token_revocations WHERE jti = $1`, jti)
	switch err := row.Scan(&until); {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("look up revocation %s: %w", jti, err)
	}
	return l.clock().Before(until), nil
}

// DeleteExpired purges rows whose token has expired and returns the count.
func (l *PostgresList) DeleteExpired(ctx context.Context) (int, error) {
	res, err := txcontext.Executor(ctx, l.db).ExecContext(ctx, `DELETE FROM token_revocations WHERE expires_at <= $1`, l.clock())
	if err != nil {
		return 0, fmt.Errorf("purge revocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge revocations: %w", err)
	}
	return int(n), nil
}
