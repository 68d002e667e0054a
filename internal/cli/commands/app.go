// Package commands implements the bomsearch command line.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/config"
	"github.com/cloo-solutions/bomsearch/internal/database"
	"github.com/cloo-solutions/bomsearch/internal/embedding"
	"github.com/cloo-solutions/bomsearch/internal/localai"
	"github.com/cloo-solutions/bomsearch/internal/logger"
	"github.com/cloo-solutions/bomsearch/internal/metrics"
	"github.com/cloo-solutions/bomsearch/internal/openai"
	"github.com/cloo-solutions/bomsearch/internal/repository"
	"github.com/cloo-solutions/bomsearch/internal/service"
	"github.com/cloo-solutions/bomsearch/internal/storage"
	"github.com/cloo-solutions/bomsearch/internal/telemetry"
)

const memoryCacheCleanup = 10 * time.Minute

// App holds the process-wide collaborators shared by the commands.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Pool         *pgxpool.Pool
	Families     *repository.FamilyRepository
	Orchestrator *service.Orchestrator
	SearchLog    *service.SearchLogger
	// Backfill embeds catalog rows without the cache. Nil when no embedding
	// provider is configured.
	Backfill *service.EmbeddingService

	closers []func()
}

// loadBase reads the config and builds the logger and telemetry.
func loadBase() (*config.Config, *zap.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Env,
		TracesSampleRate: cfg.SentrySampleRate,
		Debug:            cfg.Debug,
	}, log)
	if err != nil {
		log.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
		shutdownTelemetry = func() {}
	}

	return cfg, log, func() {
		shutdownTelemetry()
		_ = log.Sync()
	}, nil
}

// NewApp connects to the database and wires the search stack.
func NewApp(ctx context.Context) (*App, error) {
	cfg, log, shutdown, err := loadBase()
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: log, closers: []func(){shutdown}}

	metrics.Register()

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Pool = pool
	app.closers = append(app.closers, pool.Close)
	log.Info("connected to database")

	inner, provider, model, err := newProviderEmbedder(cfg, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	var embedder service.Embedder
	if inner != nil {
		gated := embedding.NewGatedEmbedder(inner, embedding.GateConfig{
			Concurrency: cfg.EmbeddingConcurrency,
			BatchSize:   cfg.EmbeddingBatchSize,
		}, provider, metrics.EmbeddingRequestsTotal, log)

		store, closeStore, err := newCacheStore(cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, closeStore)

		embedder = embedding.NewCachedEmbedder(gated, store, embedding.CacheConfig{
			Provider: provider,
			Model:    model,
			TTL:      cfg.EmbeddingCacheTTL,
		}, metrics.EmbeddingCacheTotal, log)

		app.Backfill = service.NewEmbeddingService(repository.NewCatalogEmbeddingRepository(pool), gated, log)
		log.Info("embedding provider ready", zap.String("provider", provider), zap.String("model", model))
	} else {
		log.Warn("no embedding provider configured, semantic modes disabled")
	}

	interpreter, err := newInterpreter(cfg, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Families = repository.NewFamilyRepository(pool)
	orchestrator, err := service.NewOrchestrator(cfg.SearchConfig(), service.Dependencies{
		Families:    app.Families,
		Products:    repository.NewProductRepository(pool),
		Semantic:    repository.NewSemanticProductRepository(pool),
		Enrichments: repository.NewEnrichmentRepository(pool, log),
		Embedder:    embedder,
		Interpreter: interpreter,
		Logger:      log,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to build search orchestrator: %w", err)
	}
	app.Orchestrator = orchestrator
	app.closers = append(app.closers, orchestrator.Close)

	app.SearchLog = service.NewSearchLogger(repository.NewSearchLogRepository(pool), log)
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Storage returns an S3 client for BOM documents, or an error when S3 is
// not configured.
func (a *App) Storage(ctx context.Context) (*storage.S3Client, error) {
	if !a.Config.HasS3() {
		return nil, fmt.Errorf("object storage not configured: BOMSEARCH_S3_ENDPOINT and credentials required")
	}
	return storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        a.Config.S3Endpoint,
		Region:          a.Config.S3Region,
		AccessKeyID:     a.Config.S3AccessKey,
		SecretAccessKey: a.Config.S3SecretKey,
		Bucket:          a.Config.S3Bucket,
		UsePathStyle:    true,
	})
}

func newProviderEmbedder(cfg *config.Config, log *zap.Logger) (embedding.Embedder, string, string, error) {
	if cfg.UseLocalEmbeddings() {
		e, err := localai.NewEmbedder(localai.Config{
			BaseURL:        cfg.LocalBaseURL,
			EmbeddingModel: cfg.LocalModel,
			Dimensions:     cfg.EmbeddingDimensions,
		}, log)
		if err != nil {
			return nil, "", "", err
		}
		return e, config.ProviderLocal, e.Model(), nil
	}

	if !cfg.HasOpenAI() {
		return nil, "", "", nil
	}
	c := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
	return c, config.ProviderOpenAI, c.Model(), nil
}

func newCacheStore(cfg *config.Config) (embedding.Store, func(), error) {
	if cfg.HasRedis() {
		store, err := embedding.NewRedisStore(embedding.RedisConfig{
			Addrs:    cfg.RedisAddrs,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return embedding.NewMemoryStore(cfg.EmbeddingCacheTTL, memoryCacheCleanup), func() {}, nil
}

func newInterpreter(cfg *config.Config, log *zap.Logger) (service.QueryInterpreter, error) {
	if !cfg.InterpreterEnabled {
		return nil, nil
	}

	var chat openai.ChatAPI
	switch {
	case cfg.UseLocalEmbeddings() && cfg.LocalChatModel != "":
		c, err := localai.NewChat(localai.Config{BaseURL: cfg.LocalBaseURL, ChatModel: cfg.LocalChatModel})
		if err != nil {
			return nil, err
		}
		chat = c
	case cfg.HasOpenAI():
		chat = openai.NewChatAdapter(openai.NewSDKClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), cfg.InterpreterModel)
	default:
		log.Info("no interpreter backend configured, product-first search uses raw text")
		return nil, nil
	}
	return openai.NewInterpreter(chat, openai.InterpreterConfig{}, log), nil
}
