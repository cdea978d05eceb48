package main

import (
	"database/sql"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"peoplehub/internal/identity/models"
	identityservice "peoplehub/internal/identity/service"
	"peoplehub/internal/identity/store/link"
	"peoplehub/internal/platform/logger"
	profilestore "peoplehub/internal/profile/store/profile"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/audit/publisher"
	"peoplehub/pkg/platform/audit/store/logsink"
	"peoplehub/pkg/platform/tx"
)

func newEmailsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emails",
		Short: "Administer the email addresses linked to profiles",
	}
	cmd.AddCommand(
		newEmailsListCmd(opts),
		newEmailsLinkCmd(opts),
		newEmailsUnlinkCmd(opts),
		newEmailsPrimaryCmd(opts),
		newEmailsRepairCmd(opts),
	)
	return cmd
}

// withIdentities runs fn against an identity service backed by the configured
// database.
func withIdentities(cmd *cobra.Command, opts *rootOptions, fn func(*identityservice.Service) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	return fn(newIdentityService(db, publisher.NewPublisher(logsink.New(log))))
}

func newIdentityService(db *sql.DB, pub *publisher.Publisher) *identityservice.Service {
	return identityservice.New(link.NewPostgres(db), profilestore.NewPostgres(db),
		identityservice.WithAuditPublisher(pub),
		identityservice.WithTx(tx.NewSQLRunner(db)),
	)
}

func newEmailsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list PROFILE_ID",
		Short: "List a profile's email addresses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentities(cmd, opts, func(s *identityservice.Service) error {
				links, err := s.Emails(cmd.Context(), id.ProfileID(args[0]))
				if err != nil {
					return err
				}
				return printLinks(cmd.OutOrStdout(), links)
			})
		},
	}
}

func newEmailsLinkCmd(opts *rootOptions) *cobra.Command {
	var (
		identityID string
		address    string
		primary    bool
	)
	cmd := &cobra.Command{
		Use:   "link PROFILE_ID",
		Short: "Link an email address to a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentities(cmd, opts, func(s *identityservice.Service) error {
				l, err := s.LinkEmail(cmd.Context(), id.ProfileID(args[0]), id.IdentityID(identityID), address, primary)
				if err != nil {
					return err
				}
				return printLinks(cmd.OutOrStdout(), []*models.EmailLink{l})
			})
		},
	}
	cmd.Flags().StringVar(&identityID, "identity", "", "auth identity id owning the address")
	cmd.Flags().StringVar(&address, "email", "", "email address")
	cmd.Flags().BoolVar(&primary, "primary", false, "make the address primary")
	_ = cmd.MarkFlagRequired("identity")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newEmailsUnlinkCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink IDENTITY_ID",
		Short: "Remove an email link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentities(cmd, opts, func(s *identityservice.Service) error {
				if err := s.UnlinkEmail(cmd.Context(), id.IdentityID(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unlinked %s\n", args[0])
				return nil
			})
		},
	}
}

func newEmailsPrimaryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-primary IDENTITY_ID",
		Short: "Make an email link its profile's primary address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentities(cmd, opts, func(s *identityservice.Service) error {
				l, err := s.SetPrimaryEmail(cmd.Context(), id.IdentityID(args[0]))
				if err != nil {
					return err
				}
				return printLinks(cmd.OutOrStdout(), []*models.EmailLink{l})
			})
		},
	}
}

func newEmailsRepairCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Give every profile exactly one primary email matching its profile email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withIdentities(cmd, opts, func(s *identityservice.Service) error {
				repaired, err := s.RepairAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "repaired %d profiles\n", repaired)
				return nil
			})
		},
	}
}

func printLinks(out io.Writer, links []*models.EmailLink) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tPROFILE\tEMAIL\tPRIMARY")
	for _, l := range links {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", l.IdentityID, l.ProfileID, l.Email, l.IsPrimary)
	}
	return w.Flush()
}
