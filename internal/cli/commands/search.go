package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/bomsearch/internal/cli"
	"github.com/cloo-solutions/bomsearch/internal/domain"
)

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		spec       string
		quantity   float64
		mode       string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <item>",
		Short: "Search the catalog for one line item",
		Long:  "Matches a single BOM line item against the catalog and prints the ranked products.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			searchMode, err := parseModeFlag(mode)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			app, err := NewApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			item := domain.BomLineItem{Item: args[0], Spec: spec, Quantity: quantity}
			res, err := app.Orchestrator.Search(ctx, item, searchMode)
			if err != nil {
				return err
			}

			if outputJSON {
				return writeJSON(os.Stdout, res)
			}
			return printResult(os.Stdout, res)
		},
	}

	cmd.Flags().StringVarP(&spec, "spec", "s", "", "Specification text for the line item")
	cmd.Flags().Float64VarP(&quantity, "quantity", "q", 0, "Quantity")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Search mode: off, family_first, product_first, hybrid")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")
	_ = cli.SetFlagEnum(cmd, "mode", modeValues()...)

	return cmd
}

func modeValues() []string {
	return []string{
		string(domain.SearchModeOff),
		string(domain.SearchModeFamilyFirst),
		string(domain.SearchModeProductFirst),
		string(domain.SearchModeHybrid),
	}
}

func parseModeFlag(mode string) (domain.SearchMode, error) {
	if mode == "" {
		return "", nil
	}
	return domain.ParseSearchMode(mode)
}
