// Package postgres opens the PostgreSQL pool and owns the schema migrations.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	driverName     = "postgres"
	migrationTable = "schema_migrations"
	migrationDir   = "migrations"
	pingTimeout    = 5 * time.Second
)

// PoolConfig bounds the connection pool. Zero fields keep database/sql defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Option func(*sql.DB)

func WithPool(cfg PoolConfig) Option {
	return func(db *sql.DB) {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}
}

// Open connects with lib/pq and verifies the connection before returning.
func Open(ctx context.Context, dsn string, opts ...Option) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open postgres: empty dsn")
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	for _, opt := range opts {
		opt(db)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func init() {
	goose.SetBaseFS(migrations)
	goose.SetTableName(migrationTable)
	goose.SetLogger(goose.NopLogger())
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := goose.SetDialect(driverName); err != nil {
		return fmt.Errorf("migrate dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, migrationDir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Rollback reverts the most recent migration.
func Rollback(ctx context.Context, db *sql.DB) error {
	if err := goose.SetDialect(driverName); err != nil {
		return fmt.Errorf("migrate dialect: %w", err)
	}
	if err := goose.DownContext(ctx, db, migrationDir); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version reports the applied schema version.
func Version(ctx context.Context, db *sql.DB) (int64, error) {
	if err := goose.SetDialect(driverName); err != nil {
		return 0, fmt.Errorf("migrate dialect: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}
