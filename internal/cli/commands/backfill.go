package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/jobs"
)

// BackfillCmd creates the backfill command.
func BackfillCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Embed catalog families and products that have no vector",
		Long: `Embeds material families first, then catalog products, until no row is
left without an embedding. Rows that keep failing are skipped after a few
attempts and reported at the end.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			app, err := NewApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.Backfill == nil {
				return fmt.Errorf("no embedding provider configured: set BOMSEARCH_OPENAI_API_KEY or BOMSEARCH_EMBEDDING_PROVIDER=local")
			}
			if batchSize <= 0 {
				batchSize = app.Config.BackfillBatchSize
			}

			worker := jobs.NewEmbeddingWorker(app.Backfill, batchSize, app.Logger)
			n, err := worker.Drain(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "embedded %d rows\n", n)
			for kind, ids := range worker.Skipped() {
				app.Logger.Warn("rows skipped after repeated failures", zap.String("kind", string(kind)), zap.Strings("ids", ids))
				fmt.Fprintf(out, "skipped %d %s rows\n", len(ids), kind)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Rows per embedding call (default BOMSEARCH_BACKFILL_BATCH_SIZE)")

	return cmd
}
