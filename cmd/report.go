package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newReportCmd creates the 'report' subcommand, which writes one HTML report per country.
func newReportCmd() *cobra.Command {
	var countries []string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate HTML reports for countries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(countries) == 0 {
				return errors.New("at least one --country is required")
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			for _, country := range countries {
				uri, err := appInstance.GetReports().Save(cmd.Context(), country)
				if err != nil {
					return fmt.Errorf("report %q: %w", country, err)
				}
				appInstance.GetLogger().Info("Report written", zap.String("country", country), zap.String("uri", uri))
				fmt.Fprintln(cmd.OutOrStdout(), uri)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&countries, "country", nil, "country name (repeatable)")
	return cmd
}
