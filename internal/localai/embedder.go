// Package localai adapts OpenAI-compatible local model servers (Ollama,
// llama.cpp, vLLM) to the embedding and interpreter interfaces via langchaingo.
package localai

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// ErrWrongDimensions is returned when the server produces vectors of an
// unexpected length.
var ErrWrongDimensions = errors.New("embedding has wrong dimensions")

// Config points at a local OpenAI-compatible server.
type Config struct {
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	Dimensions     int
	// Token is sent as bearer auth; local servers usually ignore it.
	Token string
}

func (c Config) token() string {
	if c.Token == "" {
		return "none"
	}
	return c.Token
}

// Embedder implements the embedding interface over langchaingo.
type Embedder struct {
	embedder   embeddings.Embedder
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewEmbedder connects to the server described by cfg.
func NewEmbedder(cfg Config, logger *zap.Logger) (*Embedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("local embedding base URL is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("local embedding dimensions must be positive")
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.token()),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create local embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create local embedder: %w", err)
	}
	return NewEmbedderWith(embedder, cfg.EmbeddingModel, cfg.Dimensions, logger), nil
}

// NewEmbedderWith wraps an existing langchaingo embedder.
func NewEmbedderWith(e embeddings.Embedder, model string, dimensions int, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		embedder:   e,
		model:      model,
		dimensions: dimensions,
		logger:     logger.With(zap.String("component", "local-embedder")),
	}
}

// Dimension returns the configured vector length.
func (e *Embedder) Dimension() int {
	return e.dimensions
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// GenerateEmbedding embeds a single text.
func (e *Embedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// GenerateEmbeddings embeds texts in one request.
func (e *Embedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("generating embeddings", zap.Int("count", len(texts)))

	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("local embedding request: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("local embedding returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for _, v := range vecs {
		if len(v) != e.dimensions {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, e.dimensions, len(v))
		}
	}
	return vecs, nil
}
