package lockout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"peoplehub/internal/auth/models"
	"peoplehub/pkg/platform/sentinel"
	txcontext "peoplehub/pkg/platform/tx"
)

// PostgresStore persists lockout counters in the auth_lockouts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, identifier string) (*models.Lockout, error) {
	query := `
		SELECT identifier, failure_count, window_start, last_failure_at, locked_until
		FROM auth_lockouts
		WHERE identifier = $1
	`
	record := &models.Lockout{}
	var lockedUntil sql.NullTime
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, identifier).Scan(
		&record.Identifier, &record.FailureCount, &record.WindowStart, &record.LastFailureAt, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lockout: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get lockout: %w", err)
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		record.LockedUntil = &t
	}
	return record, nil
}

func (s *PostgresStore) Save(ctx context.Context, record *models.Lockout) error {
	query := `
		INSERT INTO auth_lockouts (identifier, failure_count, window_start, last_failure_at, locked_until)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identifier) DO UPDATE SET
			failure_count = EXCLUDED.failure_count,
			window_start = EXCLUDED.window_start,
			last_failure_at = EXCLUDED.last_failure_at,
			locked_until = EXCLUDED.locked_until
	`
	var lockedUntil sql.NullTime
	if record.LockedUntil != nil {
		lockedUntil = sql.NullTime{Time: *record.LockedUntil, Valid: true}
	}
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		record.Identifier, record.FailureCount, record.WindowStart, record.LastFailureAt, lockedUntil)
	if err != nil {
		return fmt.Errorf("save lockout: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, identifier string) error {
	if _, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `DELETE FROM auth_lockouts WHERE identifier = $1`, identifier); err != nil {
		return fmt.Errorf("delete lockout: %w", err)
	}
	return nil
}
