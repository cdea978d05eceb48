// Command peoplehub runs the session agent and its maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"peoplehub/internal/platform/config"
	dErrors "peoplehub/pkg/domain-errors"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConfiguration) {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "peoplehub",
		Short:         "PeopleHub session agent",
		Long:          `Keeps the signed-in session of the PeopleHub UI shell and administers email links.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configDir, "config", "c", ".", "directory holding config.yml")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newEmailsCmd(opts),
		newUsersCmd(opts),
	)
	return root
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configDir)
}
