package cmd

import (
	"github.com/spf13/cobra"
)

// newMigrateCmd creates the 'migrate' subcommand, which applies the Postgres schema.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ranking tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return appInstance.Migrate(cmd.Context())
		},
	}
}
