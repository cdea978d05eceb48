package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"peoplehub/internal/platform/config"
	"peoplehub/internal/platform/postgres"
	dErrors "peoplehub/pkg/domain-errors"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var rollback bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if rollback {
				err = postgres.Rollback(cmd.Context(), db)
			} else {
				err = postgres.Migrate(cmd.Context(), db)
			}
			if err != nil {
				return err
			}
			version, err := postgres.Version(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the most recent migration")
	return cmd
}

// openDatabase opens the configured pool for the maintenance commands, which
// cannot run without one.
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.Database.URL == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "database.url is required")
	}
	return postgres.Open(ctx, cfg.Database.URL, postgres.WithPool(postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}))
}
