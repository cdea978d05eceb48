package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"peoplehub/internal/platform/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()
			return a.run(ctx)
		},
	}
}
