package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/movierank/internal/ranking"
)

// newImportCmd creates the 'import' subcommand, which loads a snapshot file.
func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a ranking batch from a JSON file",
		Long:  `Imports a {"movies": [...]} document in one transaction. Use "-" to read stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open batch: %w", err)
				}
				defer f.Close()
				in = f
			}
			batch, err := ranking.DecodeBatch(in)
			if err != nil {
				return err
			}
			report, err := appInstance.GetImporter().Import(cmd.Context(), batch.Movies)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			return writeResult(cmd, report)
		},
	}
}
