package link

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"peoplehub/internal/identity/models"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/sentinel"
	txcontext "peoplehub/pkg/platform/tx"
)

// PostgresStore persists email links in PostgreSQL. Calls join a transaction
// carried in the context.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const linkColumns = `identity_id, profile_id, email, is_primary, created_at, updated_at`

func (s *PostgresStore) FindByIdentity(ctx context.Context, identityID id.IdentityID) (*models.EmailLink, error) {
	query := `SELECT ` + linkColumns + ` FROM email_links WHERE identity_id = $1`
	link, err := scanLink(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, string(identityID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("link for identity %s: %w", identityID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find link: %w", err)
	}
	return link, nil
}

func (s *PostgresStore) ListByProfile(ctx context.Context, profileID id.ProfileID) ([]*models.EmailLink, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM email_links
		WHERE profile_id = $1
		ORDER BY created_at ASC, identity_id ASC
	`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, string(profileID))
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []*models.EmailLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, link *models.EmailLink) error {
	query := `
		INSERT INTO email_links (` + linkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identity_id) DO UPDATE SET
			profile_id = EXCLUDED.profile_id,
			email = EXCLUDED.email,
			is_primary = EXCLUDED.is_primary,
			updated_at = EXCLUDED.updated_at
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		string(link.IdentityID),
		string(link.ProfileID),
		link.Email,
		link.IsPrimary,
		link.CreatedAt,
		link.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return fmt.Errorf("link profile %s: %w", link.ProfileID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("upsert link: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, identityID id.IdentityID) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM email_links WHERE identity_id = $1`, string(identityID))
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete link rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("link for identity %s: %w", identityID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ClearPrimaryExcept(ctx context.Context, profileID id.ProfileID, keep id.IdentityID) error {
	query := `
		UPDATE email_links
		SET is_primary = FALSE, updated_at = NOW()
		WHERE profile_id = $1 AND identity_id <> $2 AND is_primary
	`
	if _, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query, string(profileID), string(keep)); err != nil {
		return fmt.Errorf("clear primary links: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListProfileIDs(ctx context.Context) ([]id.ProfileID, error) {
	var raw []string
	query := `SELECT COALESCE(array_agg(DISTINCT profile_id ORDER BY profile_id), '{}') FROM email_links`
	if err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query).Scan(pq.Array(&raw)); err != nil {
		return nil, fmt.Errorf("list linked profiles: %w", err)
	}
	out := make([]id.ProfileID, len(raw))
	for i, p := range raw {
		out[i] = id.ProfileID(p)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*models.EmailLink, error) {
	var (
		link                  models.EmailLink
		identityID, profileID string
	)
	if err := row.Scan(&identityID, &profileID, &link.Email, &link.IsPrimary, &link.CreatedAt, &link.UpdatedAt); err != nil {
		return nil, err
	}
	link.IdentityID = id.IdentityID(identityID)
	link.ProfileID = id.ProfileID(profileID)
	return &link, nil
}
