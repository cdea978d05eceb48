package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"peoplehub/internal/auth/models"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/sentinel"
	txcontext "peoplehub/pkg/platform/tx"
)

// PostgresStore persists token records in the auth_tokens table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record *models.TokenRecord) error {
	query := `
		INSERT INTO auth_tokens (hash, kind, identity_id, created_at, expires_at, used, used_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, NULL)
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		record.Hash, string(record.Kind), string(record.IdentityID), record.CreatedAt, record.ExpiresAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("token: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

// Consume flips used in a single conditional update. When nothing matches,
// the row is read back to tell a replay from an expiry.
func (s *PostgresStore) Consume(ctx context.Context, kind models.TokenKind, hash string, now time.Time) (*models.TokenRecord, error) {
	exec := txcontext.Executor(ctx, s.db)
	query := `
		UPDATE auth_tokens
		SET used = TRUE, used_at = $3
		WHERE hash = $1 AND kind = $2 AND NOT used AND expires_at > $3
		RETURNING identity_id, created_at, expires_at
	`
	record := &models.TokenRecord{Hash: hash, Kind: kind}
	var identityID string
	err := exec.QueryRowContext(ctx, query, hash, string(kind), now).Scan(&identityID, &record.CreatedAt, &record.ExpiresAt)
	if err == nil {
		record.IdentityID = id.IdentityID(identityID)
		record.MarkUsed(now)
		return record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consume token: %w", err)
	}

	var usedAt sql.NullTime
	err = exec.QueryRowContext(ctx,
		`SELECT identity_id, created_at, expires_at, used, used_at FROM auth_tokens WHERE hash = $1 AND kind = $2`,
		hash, string(kind),
	).Scan(&identityID, &record.CreatedAt, &record.ExpiresAt, &record.Used, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s token: %w", kind, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("read token: %w", err)
	}
	record.IdentityID = id.IdentityID(identityID)
	if usedAt.Valid {
		t := usedAt.Time
		record.UsedAt = &t
	}
	if err := record.ValidateForConsume(now); err != nil {
		return record, err
	}
	// Valid on re-read means a concurrent writer changed the row between the two statements.
	return record, fmt.Errorf("%s token: %w", kind, sentinel.ErrInvalidState)
}

func (s *PostgresStore) DeleteByIdentity(ctx context.Context, identityID id.IdentityID, kind models.TokenKind) (int, error) {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM auth_tokens WHERE identity_id = $1 AND kind = $2`, string(identityID), string(kind))
	if err != nil {
		return 0, fmt.Errorf("delete tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete tokens rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `DELETE FROM auth_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired rows affected: %w", err)
	}
	return int(n), nil
}
