package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

// EmbeddingBackfillRepository finds catalog rows without embeddings and
// stores generated vectors for them.
type EmbeddingBackfillRepository interface {
	PendingEmbeddings(ctx context.Context, kind domain.EmbeddingTargetKind, limit int, exclude []string) ([]domain.EmbeddingTarget, error)
	SaveEmbeddings(ctx context.Context, kind domain.EmbeddingTargetKind, ids []string, vectors [][]float32) error
}

// EmbeddingService generates embeddings for catalog rows that lack one.
// It is driven by the background worker and the backfill command.
type EmbeddingService struct {
	repo     EmbeddingBackfillRepository
	embedder Embedder
	logger   *zap.Logger
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(repo EmbeddingBackfillRepository, embedder Embedder, logger *zap.Logger) *EmbeddingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingService{repo: repo, embedder: embedder, logger: logger}
}

// Pending returns up to limit rows of kind without embeddings, skipping the
// ids in exclude.
func (s *EmbeddingService) Pending(ctx context.Context, kind domain.EmbeddingTargetKind, limit int, exclude []string) ([]domain.EmbeddingTarget, error) {
	return s.repo.PendingEmbeddings(ctx, kind, limit, exclude)
}

// Embed generates vectors for targets in one provider call and stores them
// together. Targets must share a kind.
func (s *EmbeddingService) Embed(ctx context.Context, targets []domain.EmbeddingTarget) error {
	if len(targets) == 0 {
		return nil
	}
	if s.embedder == nil {
		return domain.ErrEmbedderUnavailable
	}

	kind := targets[0].Kind
	ids := make([]string, len(targets))
	texts := make([]string, len(targets))
	for i, t := range targets {
		if err := domain.ValidateEmbeddingTarget(t); err != nil {
			return err
		}
		if t.Kind != kind {
			return fmt.Errorf("mixed embedding target kinds %q and %q", kind, t.Kind)
		}
		ids[i] = t.ID
		texts[i] = t.Text
	}

	vectors, err := s.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return domain.Wrap(domain.ErrEmbeddingProvider, err)
	}
	if len(vectors) != len(targets) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(targets))
	}
	for i, v := range vectors {
		if len(v) != s.embedder.Dimension() {
			return domain.Wrap(domain.ErrDimensionMismatch,
				fmt.Errorf("vector for %s has %d dimensions, want %d", ids[i], len(v), s.embedder.Dimension()))
		}
	}

	if err := s.repo.SaveEmbeddings(ctx, kind, ids, vectors); err != nil {
		return fmt.Errorf("save %s embeddings: %w", kind, err)
	}

	s.logger.Debug("stored embeddings", zap.String("kind", string(kind)), zap.Int("count", len(ids)))
	return nil
}
