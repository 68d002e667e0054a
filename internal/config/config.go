package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/rerank"
	"github.com/cloo-solutions/bomsearch/internal/service"
)

const envPrefix = "BOMSEARCH"

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	SentryDSN        string  `envconfig:"SENTRY_DSN"`
	SentrySampleRate float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE" default:"1.0"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	InterpreterModel    string `envconfig:"INTERPRETER_MODEL" default:"gpt-4o-mini"`
	InterpreterEnabled  bool   `envconfig:"INTERPRETER_ENABLED" default:"true"`

	EmbeddingProvider string `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	LocalBaseURL      string `envconfig:"LOCAL_BASE_URL" default:"http://localhost:11434/v1"`
	LocalModel        string `envconfig:"LOCAL_EMBEDDING_MODEL" default:"nomic-embed-text"`
	LocalChatModel    string `envconfig:"LOCAL_CHAT_MODEL"`

	RedisAddrs           []string      `envconfig:"REDIS_ADDRS"`
	RedisPassword        string        `envconfig:"REDIS_PASSWORD"`
	EmbeddingCacheTTL    time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"6h"`
	EmbeddingConcurrency int           `envconfig:"EMBEDDING_CONCURRENCY" default:"4"`
	EmbeddingBatchSize   int           `envconfig:"EMBEDDING_BATCH_SIZE" default:"64"`

	SearchMode         string  `envconfig:"SEARCH_MODE" default:"hybrid"`
	SemanticEnabled    bool    `envconfig:"SEMANTIC_ENABLED" default:"true"`
	MinSimilarity      float64 `envconfig:"MIN_SIMILARITY" default:"0.3"`
	MaxResults         int     `envconfig:"MAX_RESULTS" default:"10"`
	FamilyCandidates   int     `envconfig:"FAMILY_CANDIDATES" default:"10"`
	FilterByFamily     bool    `envconfig:"FILTER_BY_INTERPRETED_FAMILY" default:"false"`
	RRFK               int     `envconfig:"RRF_K" default:"50"`
	FullTextWeight     float64 `envconfig:"RRF_FULLTEXT_WEIGHT" default:"1.0"`
	VectorWeight       float64 `envconfig:"RRF_VECTOR_WEIGHT" default:"1.0"`
	ReRankEnabled      bool    `envconfig:"RERANK_ENABLED" default:"true"`
	ReRankAlpha        float64 `envconfig:"RERANK_ALPHA" default:"0.7"`
	ReRankBeta         float64 `envconfig:"RERANK_BETA" default:"0.3"`
	MaxInputLength     int     `envconfig:"MAX_INPUT_LENGTH" default:"1000"`
	BatchConcurrency   int     `envconfig:"BATCH_CONCURRENCY" default:"8"`
	MaxRequestBodySize int64   `envconfig:"MAX_REQUEST_BODY_BYTES" default:"1048576"`

	BackfillInterval  time.Duration `envconfig:"BACKFILL_INTERVAL" default:"30s"`
	BackfillBatchSize int           `envconfig:"BACKFILL_BATCH_SIZE" default:"100"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"bomsearch-boms"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks mode names and numeric ranges.
func (c *Config) Validate() error {
	var errs []error
	if _, err := domain.ParseSearchMode(c.SearchMode); err != nil {
		errs = append(errs, fmt.Errorf("SEARCH_MODE: %w", err))
	}
	switch strings.ToLower(c.EmbeddingProvider) {
	case ProviderOpenAI, ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("EMBEDDING_PROVIDER: unknown provider %q", c.EmbeddingProvider))
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("MIN_SIMILARITY: %v not in [0,1]", c.MinSimilarity))
	}
	if c.ReRankAlpha < 0 || c.ReRankBeta < 0 {
		errs = append(errs, errors.New("RERANK_ALPHA and RERANK_BETA must not be negative"))
	}
	if c.FullTextWeight < 0 || c.VectorWeight < 0 {
		errs = append(errs, errors.New("RRF weights must not be negative"))
	}
	for name, v := range map[string]int{
		"EMBEDDING_DIMENSIONS":  c.EmbeddingDimensions,
		"MAX_RESULTS":           c.MaxResults,
		"FAMILY_CANDIDATES":     c.FamilyCandidates,
		"RRF_K":                 c.RRFK,
		"MAX_INPUT_LENGTH":      c.MaxInputLength,
		"BATCH_CONCURRENCY":     c.BatchConcurrency,
		"EMBEDDING_CONCURRENCY": c.EmbeddingConcurrency,
		"EMBEDDING_BATCH_SIZE":  c.EmbeddingBatchSize,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %d", name, v))
		}
	}
	return errors.Join(errs...)
}

// SearchConfig projects the search settings onto the orchestrator config.
func (c *Config) SearchConfig() service.OrchestratorConfig {
	mode, err := domain.ParseSearchMode(c.SearchMode)
	if err != nil {
		mode = domain.SearchModeFamilyFirst
	}
	return service.OrchestratorConfig{
		DefaultMode:         mode,
		SemanticEnabled:     c.SemanticEnabled,
		MaxInputLength:      c.MaxInputLength,
		BatchConcurrency:    c.BatchConcurrency,
		EmbeddingDimensions: c.EmbeddingDimensions,
		FamilyFirst: service.FamilyFirstConfig{
			RRFK:             c.RRFK,
			FullTextWeight:   c.FullTextWeight,
			VectorWeight:     c.VectorWeight,
			FamilyCandidates: c.FamilyCandidates,
			MaxResults:       c.MaxResults,
		},
		ProductFirst: service.ProductFirstConfig{
			MinSimilarity:             c.MinSimilarity,
			MaxResults:                c.MaxResults,
			FilterByInterpretedFamily: c.FilterByFamily,
			CandidateMultiplier:       3,
		},
		ReRank: rerank.Config{
			Enabled: c.ReRankEnabled,
			Alpha:   c.ReRankAlpha,
			Beta:    c.ReRankBeta,
		},
	}
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return len(c.RedisAddrs) > 0
}

// UseLocalEmbeddings reports whether embeddings come from the local
// OpenAI-compatible server.
func (c *Config) UseLocalEmbeddings() bool {
	return strings.EqualFold(c.EmbeddingProvider, ProviderLocal)
}
