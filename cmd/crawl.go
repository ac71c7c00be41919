package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCrawlCmd creates the 'crawl' subcommand, which scrapes the configured
// countries, saves the snapshot, and imports it.
func newCrawlCmd() *cobra.Command {
	var countries []string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Scrape country rankings and import them",
		Long: `Scrapes the top movies for each configured country (or the codes given
with --countries), writes the dated JSON snapshot, and imports the batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := appInstance.Crawl(cmd.Context(), countries)
			if err != nil {
				return fmt.Errorf("crawl: %w", err)
			}
			appInstance.GetLogger().Info("Crawl command finished.",
				zap.Int("countries", result.Countries),
				zap.Int("records", result.Records),
			)
			return writeResult(cmd, result)
		},
	}
	cmd.Flags().StringSliceVar(&countries, "countries", nil, "country codes to scrape (default: scraper.countries or all)")
	return cmd
}

func writeResult(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
