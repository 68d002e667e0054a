package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultConcurrency = 4
	DefaultBatchSize   = 64
	DefaultMaxRetries  = 5
)

// GateConfig bounds provider load.
type GateConfig struct {
	// Concurrency is the number of provider calls allowed in flight.
	Concurrency int
	// BatchSize is the maximum number of texts per provider call.
	BatchSize       int
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (c GateConfig) withDefaults() GateConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 10 * time.Second
	}
	return c
}

// GatedEmbedder limits concurrent provider calls with a weighted semaphore,
// splits large batches and retries rate-limited calls with exponential backoff.
type GatedEmbedder struct {
	inner    Embedder
	sem      *semaphore.Weighted
	cfg      GateConfig
	provider string
	requests *prometheus.CounterVec
	logger   *zap.Logger
}

// NewGatedEmbedder wraps inner. requests, when set, is a counter vec with
// labels "provider" and "status".
func NewGatedEmbedder(inner Embedder, cfg GateConfig, provider string, requests *prometheus.CounterVec, logger *zap.Logger) *GatedEmbedder {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatedEmbedder{
		inner:    inner,
		sem:      semaphore.NewWeighted(int64(cfg.Concurrency)),
		cfg:      cfg,
		provider: provider,
		requests: requests,
		logger:   logger,
	}
}

// Dimension returns the dimension of the wrapped embedder.
func (g *GatedEmbedder) Dimension() int {
	return g.inner.Dimension()
}

// GenerateEmbedding embeds a single text.
func (g *GatedEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := g.call(ctx, func() error {
		v, err := g.inner.GenerateEmbedding(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// GenerateEmbeddings embeds texts in sub-batches of BatchSize. Sub-batches run
// concurrently up to the gate's limit; output order matches texts.
func (g *GatedEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for start := 0; start < len(texts); start += g.cfg.BatchSize {
		end := min(start+g.cfg.BatchSize, len(texts))
		eg.Go(func() error {
			chunk := texts[start:end]
			return g.call(egCtx, func() error {
				vecs, err := g.inner.GenerateEmbeddings(egCtx, chunk)
				if err != nil {
					return err
				}
				if len(vecs) != len(chunk) {
					return fmt.Errorf("provider returned %d embeddings for %d texts", len(vecs), len(chunk))
				}
				copy(out[start:end], vecs)
				return nil
			})
		})
	}
	if err := eg.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return out, nil
}

// call runs fn under the semaphore, retrying only on ErrRateLimited.
func (g *GatedEmbedder) call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = g.cfg.InitialInterval
	exp.MaxInterval = g.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, g.cfg.MaxRetries), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		switch {
		case err == nil:
			g.count("ok")
			return nil
		case errors.Is(err, ErrRateLimited):
			g.count("rate_limited")
			g.logger.Warn("Embedding provider rate limited, backing off",
				zap.String("provider", g.provider),
				zap.Int("attempt", attempt),
			)
			return err
		default:
			g.count("error")
			return backoff.Permanent(err)
		}
	}, policy)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (g *GatedEmbedder) count(status string) {
	if g.requests != nil {
		g.requests.WithLabelValues(g.provider, status).Inc()
	}
}
