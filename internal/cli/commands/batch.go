package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/cli"
	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/service"
)

// BatchSearchSource tags search log rows written by the batch command.
const BatchSearchSource = "cli"

// BatchCmd creates the batch command.
func BatchCmd() *cobra.Command {
	var (
		mode    string
		out     string
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "batch <bom.json | s3://bucket/key>",
		Short: "Search every line item of a BOM file",
		Long: `Reads a JSON BOM document from a local file or S3 and searches each line item.

The document is either {"items": [...], "mode": "...", "warnings": [...]} or a
bare array of {"item", "spec", "quantity"} objects. Results are written as JSON
to stdout, a local file or an s3:// URI (--out).`,
		Args: cobra.ExactArgs(1),
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

			store := func(ctx context.Context) (ObjectStore, error) {
				return app.Storage(ctx)
			}
			return runBatch(ctx, app.Orchestrator, app.SearchLog, store, batchOptions{
				Source:  args[0],
				Mode:    mode,
				Out:     out,
				Summary: summary,
			}, os.Stdout, app.Logger)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Search mode (overrides the mode in the document)")
	_ = cli.SetFlagEnum(cmd, "mode", modeValues()...)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write JSON results to a file or s3:// URI")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print a table summary instead of JSON on stdout")

	return cmd
}

type batchOptions struct {
	Source  string
	Mode    string
	Out     string
	Summary bool
}

type batchSearcher interface {
	SearchBatch(ctx context.Context, req service.BatchRequest) (*domain.SourcingResult, error)
}

type searchRecorder interface {
	Record(ctx context.Context, source string, mode domain.SearchMode, result *domain.SourcingResult)
}

func runBatch(
	ctx context.Context,
	searcher batchSearcher,
	recorder searchRecorder,
	store func(context.Context) (ObjectStore, error),
	opts batchOptions,
	stdout io.Writer,
	log *zap.Logger,
) error {
	data, err := readSource(ctx, opts.Source, store)
	if err != nil {
		return err
	}
	doc, err := ParseBOM(data)
	if err != nil {
		return err
	}

	modeName := opts.Mode
	if modeName == "" {
		modeName = doc.Mode
	}
	mode, err := parseModeFlag(modeName)
	if err != nil {
		return err
	}

	res, err := searcher.SearchBatch(ctx, service.BatchRequest{
		Items:    doc.Items,
		Mode:     mode,
		Warnings: doc.Warnings,
	})
	if err != nil {
		return fmt.Errorf("batch search failed: %w", err)
	}

	if recorder != nil {
		logMode := mode
		if len(res.Results) > 0 {
			logMode = res.Results[0].Mode
		}
		recorder.Record(ctx, BatchSearchSource, logMode, res)
	}

	var body bytes.Buffer
	if err := writeJSON(&body, res); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	if opts.Out == "" {
		if opts.Summary {
			return printSummary(stdout, res)
		}
		_, err := stdout.Write(body.Bytes())
		return err
	}

	url, err := writeDestination(ctx, opts.Out, body.Bytes(), store)
	if err != nil {
		return err
	}
	log.Info("batch results written", zap.String("destination", opts.Out), zap.String("batch_id", res.BatchID))

	if err := printSummary(stdout, res); err != nil {
		return err
	}
	if url != "" {
		fmt.Fprintf(stdout, "Download: %s\n", url)
	}
	return nil
}
