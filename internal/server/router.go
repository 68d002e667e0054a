package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/api"
	"github.com/cloo-solutions/bomsearch/internal/api/handlers"
	"github.com/cloo-solutions/bomsearch/internal/api/middleware"
	"github.com/cloo-solutions/bomsearch/internal/metrics"
)

const defaultMaxBodyBytes int64 = 1 << 20

type RouterConfig struct {
	Logger         *zap.Logger
	MaxBodyBytes   int64
	SearchHandler  *handlers.SearchHandler
	CatalogHandler *handlers.CatalogHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(logger))
	r.Use(metrics.Middleware())
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", cfg.SearchHandler.Search)
		r.Post("/search/batch", cfg.SearchHandler.SearchBatch)
		r.Get("/modes", cfg.SearchHandler.Modes)

		if cfg.CatalogHandler != nil {
			r.Get("/families", cfg.CatalogHandler.ListFamilies)
		}
	})

	return r
}
