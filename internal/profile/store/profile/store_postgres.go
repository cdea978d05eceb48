package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"peoplehub/internal/profile/models"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/sentinel"
	txcontext "peoplehub/pkg/platform/tx"
)

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const profileColumns = `id, email, first_name, last_name, full_name, role, is_active, employment_status,
	employee_id, position, department, manager_id, last_login, created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, string(profileID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

// Create inserts a profile. A duplicate id surfaces as ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, p *models.Profile) error {
	query := `INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query, profileArgs(p)...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("profile %s: %w", p.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// Save inserts or replaces a profile.
func (s *PostgresStore) Save(ctx context.Context, p *models.Profile) error {
	query := `INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			full_name = EXCLUDED.full_name,
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active,
			employment_status = EXCLUDED.employment_status,
			employee_id = EXCLUDED.employee_id,
			position = EXCLUDED.position,
			department = EXCLUDED.department,
			manager_id = EXCLUDED.manager_id,
			last_login = EXCLUDED.last_login,
			updated_at = EXCLUDED.updated_at`
	if _, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query, profileArgs(p)...); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, profileID id.ProfileID, at time.Time) error {
	return s.updateOne(ctx, "touch last login", profileID,
		`UPDATE profiles SET last_login = $2 WHERE id = $1`, at)
}

func (s *PostgresStore) FindEmail(ctx context.Context, profileID id.ProfileID) (string, error) {
	var email string
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT email FROM profiles WHERE id = $1`, string(profileID)).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
		}
		return "", fmt.Errorf("find profile email: %w", err)
	}
	return email, nil
}

func (s *PostgresStore) UpdateEmail(ctx context.Context, profileID id.ProfileID, email string, at time.Time) error {
	return s.updateOne(ctx, "update profile email", profileID,
		`UPDATE profiles SET email = $2, updated_at = $3 WHERE id = $1`, email, at)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, profileID id.ProfileID, active bool, status models.EmploymentStatus, at time.Time) error {
	return s.updateOne(ctx, "update profile status", profileID,
		`UPDATE profiles SET is_active = $2, employment_status = $3, updated_at = $4 WHERE id = $1`,
		active, string(status), at)
}

func (s *PostgresStore) updateOne(ctx context.Context, op string, profileID id.ProfileID, query string, args ...any) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query, append([]any{string(profileID)}, args...)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
	}
	return nil
}

func profileArgs(p *models.Profile) []any {
	return []any{
		string(p.ID),
		p.Email,
		p.FirstName,
		p.LastName,
		p.FullName,
		string(p.Role),
		p.IsActive,
		string(p.EmploymentStatus),
		nullString(string(p.EmployeeID)),
		p.Position,
		p.Department,
		nullString(string(p.ManagerID)),
		p.LastLogin,
		p.CreatedAt,
		p.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p                     models.Profile
		profileID, role       string
		status                string
		employeeID, managerID sql.NullString
		lastLogin             sql.NullTime
	)
	err := row.Scan(&profileID, &p.Email, &p.FirstName, &p.LastName, &p.FullName, &role, &p.IsActive, &status,
		&employeeID, &p.Position, &p.Department, &managerID, &lastLogin, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = id.ProfileID(profileID)
	p.Role = models.Role(role)
	p.EmploymentStatus = models.EmploymentStatus(status)
	p.EmployeeID = id.EmployeeID(employeeID.String)
	p.ManagerID = id.EmployeeID(managerID.String)
	if lastLogin.Valid {
		t := lastLogin.Time
		p.LastLogin = &t
	}
	return &p, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
