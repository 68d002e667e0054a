package jobs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

const (
	// MaxRetries is the number of failed attempts after which a row is
	// skipped until the worker restarts.
	MaxRetries = 3

	DefaultBatchSize = 100
)

// EmbeddingService defines the backfill operations the worker drives.
type EmbeddingService interface {
	Pending(ctx context.Context, kind domain.EmbeddingTargetKind, limit int, exclude []string) ([]domain.EmbeddingTarget, error)
	Embed(ctx context.Context, targets []domain.EmbeddingTarget) error
}

// EmbeddingWorker fills in missing family and product embeddings.
type EmbeddingWorker struct {
	service   EmbeddingService
	batchSize int
	logger    *zap.Logger

	failures  map[domain.EmbeddingTargetKind]map[string]int
	exhausted map[domain.EmbeddingTargetKind][]string
}

// NewEmbeddingWorker creates a new EmbeddingWorker instance
func NewEmbeddingWorker(service EmbeddingService, batchSize int, logger *zap.Logger) *EmbeddingWorker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingWorker{
		service:   service,
		batchSize: batchSize,
		logger:    logger,
		failures:  make(map[domain.EmbeddingTargetKind]map[string]int),
		exhausted: make(map[domain.EmbeddingTargetKind][]string),
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	_, err := w.processOnce(ctx)
	return err
}

// Drain processes batches until no pending rows remain and returns the
// number of rows embedded.
func (w *EmbeddingWorker) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := w.processOnce(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 && !w.hasRetryable() {
			return total, nil
		}
	}
}

// processOnce embeds one batch per kind. It returns the number of rows
// stored.
func (w *EmbeddingWorker) processOnce(ctx context.Context) (int, error) {
	stored := 0
	for _, kind := range domain.EmbeddingTargetKinds {
		targets, err := w.service.Pending(ctx, kind, w.batchSize, w.exhausted[kind])
		if err != nil {
			return stored, fmt.Errorf("failed to fetch pending %s embeddings: %w", kind, err)
		}
		if len(targets) == 0 {
			continue
		}

		w.logger.Info("processing pending embeddings", zap.String("kind", string(kind)), zap.Int("count", len(targets)))

		err = w.service.Embed(ctx, targets)
		if err == nil {
			stored += len(targets)
			w.clearFailures(targets)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stored, ctxErr
		}
		if len(targets) == 1 {
			w.handleFailure(targets[0], err)
			continue
		}

		// One bad row must not hold back the rest of the batch.
		w.logger.Warn("batch embedding failed, retrying rows individually",
			zap.String("kind", string(kind)), zap.Error(err))
		for _, t := range targets {
			if err := w.service.Embed(ctx, []domain.EmbeddingTarget{t}); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return stored, err
				}
				w.handleFailure(t, err)
				continue
			}
			stored++
			w.clearFailures([]domain.EmbeddingTarget{t})
		}
	}
	return stored, nil
}

func (w *EmbeddingWorker) handleFailure(t domain.EmbeddingTarget, err error) {
	counts := w.failures[t.Kind]
	if counts == nil {
		counts = make(map[string]int)
		w.failures[t.Kind] = counts
	}
	counts[t.ID]++

	if counts[t.ID] >= MaxRetries {
		w.logger.Error("embedding exceeded max retries, skipping",
			zap.String("kind", string(t.Kind)), zap.String("id", t.ID), zap.Int("max_retries", MaxRetries), zap.Error(err))
		delete(counts, t.ID)
		w.exhausted[t.Kind] = append(w.exhausted[t.Kind], t.ID)
		return
	}
	w.logger.Warn("embedding failed, will retry",
		zap.String("kind", string(t.Kind)), zap.String("id", t.ID), zap.Int("attempt", counts[t.ID]), zap.Error(err))
}

func (w *EmbeddingWorker) clearFailures(targets []domain.EmbeddingTarget) {
	for _, t := range targets {
		delete(w.failures[t.Kind], t.ID)
	}
}

func (w *EmbeddingWorker) hasRetryable() bool {
	for _, counts := range w.failures {
		if len(counts) > 0 {
			return true
		}
	}
	return false
}

// Skipped returns the ids given up on, by kind.
func (w *EmbeddingWorker) Skipped() map[domain.EmbeddingTargetKind][]string {
	return w.exhausted
}
