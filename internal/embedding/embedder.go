// Package embedding provides decorators around text embedding providers:
// a result cache and a concurrency-gated batcher with rate-limit retries.
package embedding

import (
	"context"
	"errors"
)

// ErrRateLimited marks a provider error that may succeed after backing off.
// Providers wrap it so that GatedEmbedder knows when to retry.
var ErrRateLimited = errors.New("embedding provider rate limited")

// Embedder generates vector embeddings for text.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
