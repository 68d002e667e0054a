package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/api/handlers"
	"github.com/cloo-solutions/bomsearch/internal/database"
	"github.com/cloo-solutions/bomsearch/internal/jobs"
	"github.com/cloo-solutions/bomsearch/internal/server"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the bomsearch API server and the embedding backfill worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides BOMSEARCH_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-backfill", false, "Do not start the embedding backfill worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	log := app.Logger

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		app.Config.Port = port
	}

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if _, err := database.MigrateUp(app.Config.DatabaseURL, log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	var worker *jobs.Worker
	if noBackfill, _ := cmd.Flags().GetBool("no-backfill"); !noBackfill && app.Backfill != nil {
		processor := jobs.NewEmbeddingWorker(app.Backfill, app.Config.BackfillBatchSize, log)
		worker = jobs.NewWorker(processor, app.Config.BackfillInterval, log)
		go worker.Start(ctx)
		log.Info("embedding backfill worker started", zap.Duration("interval", app.Config.BackfillInterval))
	}

	router := server.NewRouter(server.RouterConfig{
		Logger:         log,
		MaxBodyBytes:   app.Config.MaxRequestBodySize,
		SearchHandler:  handlers.NewSearchHandler(app.Orchestrator, app.SearchLog),
		CatalogHandler: handlers.NewCatalogHandler(app.Families),
	})

	srv := &http.Server{
		Addr:              ":" + app.Config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", app.Config.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down...")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
