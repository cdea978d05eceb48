package employee

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"peoplehub/internal/profile/models"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/sentinel"
	"peoplehub/pkg/platform/strings"
	txcontext "peoplehub/pkg/platform/tx"
)

// PostgresStore reads the employees table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const employeeColumns = `id, name, email, position, department, manager_id`

func (s *PostgresStore) Save(ctx context.Context, e *models.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			position = EXCLUDED.position,
			department = EXCLUDED.department,
			manager_id = EXCLUDED.manager_id
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		string(e.ID), e.Name, e.Email, e.Position, e.Department,
		sql.NullString{String: string(e.ManagerID), Valid: e.ManagerID != ""},
	)
	if err != nil {
		return fmt.Errorf("save employee: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`
	e, err := scanEmployee(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, string(employeeID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("employee %s: %w", employeeID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find employee: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, address string) (*models.Employee, error) {
	return s.FindByAnyEmail(ctx, []string{address})
}

func (s *PostgresStore) FindByAnyEmail(ctx context.Context, addresses []string) (*models.Employee, error) {
	wanted := strings.DedupeAndTrimLower(addresses)
	if len(wanted) == 0 {
		return nil, fmt.Errorf("employee without email: %w", sentinel.ErrNotFound)
	}
	query := `
		SELECT ` + employeeColumns + `
		FROM employees
		WHERE lower(email) = ANY($1)
		ORDER BY id
		LIMIT 1
	`
	e, err := scanEmployee(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, pq.Array(wanted)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("employee by email: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find employee by email: %w", err)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*models.Employee, error) {
	var (
		e          models.Employee
		employeeID string
		managerID  sql.NullString
	)
	if err := row.Scan(&employeeID, &e.Name, &e.Email, &e.Position, &e.Department, &managerID); err != nil {
		return nil, err
	}
	e.ID = id.EmployeeID(employeeID)
	e.ManagerID = id.EmployeeID(managerID.String)
	return &e, nil
}
