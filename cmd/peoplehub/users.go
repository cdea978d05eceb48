package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"peoplehub/internal/auth/local"
	"peoplehub/internal/auth/store/revocation"
	"peoplehub/internal/auth/store/token"
	userstore "peoplehub/internal/auth/store/user"
	"peoplehub/internal/platform/config"
	"peoplehub/internal/platform/logger"
	dErrors "peoplehub/pkg/domain-errors"
)

func newUsersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts of the local auth backend",
	}
	cmd.AddCommand(newUsersAddCmd(opts))
	return cmd
}

func newUsersAddCmd(opts *rootOptions) *cobra.Command {
	var (
		address   string
		password  string
		firstName string
		lastName  string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a local account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Auth.Mode != config.ModeLocal {
				return dErrors.New(dErrors.CodeConfiguration, "users are managed by the auth backend unless auth.mode is local")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			backend, err := local.NewBackend(local.Config{
				SigningKey: cfg.Auth.SigningKey,
				AccessTTL:  cfg.Auth.AccessTTL,
				RefreshTTL: cfg.Auth.RefreshTTL,
			}, userstore.NewPostgres(db), token.NewPostgres(db), revocation.NewPostgres(db),
				local.WithLogger(logger.New(cfg.Log.Level, cfg.Log.Format)))
			if err != nil {
				return err
			}

			metadata := map[string]any{}
			if firstName != "" {
				metadata["first_name"] = firstName
			}
			if lastName != "" {
				metadata["last_name"] = lastName
			}
			user, err := backend.CreateUser(cmd.Context(), address, password, metadata)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name stored in user metadata")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name stored in user metadata")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
