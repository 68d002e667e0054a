package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult writes one search result as a table.
func printResult(w io.Writer, res *domain.SearchResult) error {
	fmt.Fprintf(w, "%s (mode: %s, %s)\n", res.Item.Text(), res.Mode, res.ExecutionTime.Round(1e6))
	if res.FamilyLabel != "" {
		fmt.Fprintf(w, "Family: %s", res.FamilyLabel)
		if res.CSICode != "" {
			fmt.Fprintf(w, "  CSI: %s", res.CSICode)
		}
		fmt.Fprintln(w)
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}

	if len(res.Matches) == 0 {
		fmt.Fprintln(w, "No matches found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tVENDOR\tMODEL\tFAMILY\tSCORE")
	for i, m := range res.Matches {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			i+1, m.Vendor, truncate(m.Model, 40), m.FamilyLabel, formatScore(m.Score))
	}
	return tw.Flush()
}

// printSummary writes a one line per item overview of a batch.
func printSummary(w io.Writer, res *domain.SourcingResult) error {
	fmt.Fprintf(w, "Batch %s: %d items, %d matches in %s\n",
		res.BatchID, len(res.Results), res.MatchCount(), res.TotalTime.Round(1e6))
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tITEM\tMODE\tMATCHES\tTOP MATCH")
	for i, r := range res.Results {
		top := "-"
		if len(r.Matches) > 0 {
			top = r.Matches[0].Vendor + " " + r.Matches[0].Model
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", i+1, truncate(r.Item.Text(), 40), r.Mode, len(r.Matches), truncate(top, 40))
	}
	return tw.Flush()
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *score)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
