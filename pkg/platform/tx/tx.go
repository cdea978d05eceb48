// Package tx carries a SQL transaction through the context so stores can join
// a unit of work started by a service without knowing about it.
package tx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

const defaultTxTimeout = 5 * time.Second

type (
	ctxKey    struct{}
	lockedKey struct{}
)

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(ctxKey{}).(*sql.Tx)
	return tx, ok
}

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor returns the transaction in ctx, or db when there is none.
func Executor(ctx context.Context, db *sql.DB) DBTX {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// Runner runs fn as one unit of work. Nested calls join the outer unit.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner wraps fn in a database transaction.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db, timeout: defaultTxTimeout}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LockRunner serializes units of work with a mutex. Used with in-memory
// stores, which have no transactions of their own.
type LockRunner struct {
	mu sync.Mutex
}

func NewLockRunner() *LockRunner {
	return &LockRunner{}
}

func (r *LockRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if held, _ := ctx.Value(lockedKey{}).(*LockRunner); held == r {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(context.WithValue(ctx, lockedKey{}, r))
}
