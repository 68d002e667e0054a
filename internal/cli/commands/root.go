package commands

import (
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/bomsearch/internal/cli"
)

// NewRootCmd builds the bomsearch command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bomsearch",
		Short: "Match bill of materials line items to catalog products",
		Long: `bomsearch matches procurement BOM line items to catalog products using
keyword, full-text and vector search.

Configuration is read from BOMSEARCH_* environment variables (and .env).
BOMSEARCH_DATABASE_URL is required.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(SearchCmd())
	rootCmd.AddCommand(BatchCmd())
	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(BackfillCmd())

	return rootCmd
}
