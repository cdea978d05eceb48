package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"peoplehub/internal/auth/models"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/sentinel"
	txcontext "peoplehub/pkg/platform/tx"
)

// PostgresStore persists users in the auth_users table. Metadata is stored as jsonb.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, email, password_hash, metadata, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	metadata, err := marshalMetadata(user.Metadata)
	if err != nil {
		return err
	}
	query := `INSERT INTO auth_users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		string(user.ID), strings.ToLower(user.Email), user.PasswordHash, metadata, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return translateWriteErr(err, user.Email)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, identityID id.IdentityID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM auth_users WHERE id = $1`
	return s.findOne(ctx, query, string(identityID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM auth_users WHERE email = $1`
	return s.findOne(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (s *PostgresStore) Update(ctx context.Context, user *models.User) error {
	metadata, err := marshalMetadata(user.Metadata)
	if err != nil {
		return err
	}
	query := `
		UPDATE auth_users
		SET email = $2, password_hash = $3, metadata = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		string(user.ID), strings.ToLower(user.Email), user.PasswordHash, metadata, user.UpdatedAt)
	if err != nil {
		return translateWriteErr(err, user.Email)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var (
		user       models.User
		identityID string
		metadata   []byte
	)
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(
		&identityID, &user.Email, &user.PasswordHash, &metadata, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", arg, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.ID = id.IdentityID(identityID)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &user.Metadata); err != nil {
			return nil, fmt.Errorf("decode user metadata: %w", err)
		}
	}
	return &user, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode user metadata: %w", err)
	}
	return b, nil
}

func translateWriteErr(err error, email string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("user %s: %w", email, sentinel.ErrConflict)
	}
	return fmt.Errorf("write user: %w", err)
}
