package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/metrics"
	"github.com/cloo-solutions/bomsearch/internal/rerank"
)

const (
	defaultMinSimilarity       = 0.3
	defaultCandidateMultiplier = 3
)

// ProductFirstConfig tunes the product-first strategy.
type ProductFirstConfig struct {
	MinSimilarity             float64
	MaxResults                int
	FilterByInterpretedFamily bool
	// CandidateMultiplier widens the vector search when re-ranking can
	// reorder the candidates.
	CandidateMultiplier int
}

// DefaultProductFirstConfig returns the default product-first tuning.
func DefaultProductFirstConfig() ProductFirstConfig {
	return ProductFirstConfig{
		MinSimilarity:       defaultMinSimilarity,
		MaxResults:          defaultMaxResults,
		CandidateMultiplier: defaultCandidateMultiplier,
	}
}

func (c ProductFirstConfig) withDefaults() ProductFirstConfig {
	if c.MinSimilarity < 0 {
		c.MinSimilarity = 0
	}
	if c.MaxResults <= 0 {
		c.MaxResults = defaultMaxResults
	}
	if c.CandidateMultiplier <= 0 {
		c.CandidateMultiplier = 1
	}
	return c
}

// ProductFirst searches product embeddings directly and derives the family
// from the hits.
type ProductFirst struct {
	semantic    SemanticProductRepository
	embedder    Embedder
	interpreter QueryInterpreter
	reranker    *rerank.ReRanker
	enricher    *Enricher
	cfg         ProductFirstConfig
	logger      *zap.Logger
}

// NewProductFirst creates a ProductFirst strategy. The interpreter and
// reranker are optional.
func NewProductFirst(
	semantic SemanticProductRepository,
	embedder Embedder,
	interpreter QueryInterpreter,
	reranker *rerank.ReRanker,
	enricher *Enricher,
	cfg ProductFirstConfig,
	logger *zap.Logger,
) *ProductFirst {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductFirst{
		semantic:    semantic,
		embedder:    embedder,
		interpreter: interpreter,
		reranker:    reranker,
		enricher:    enricher,
		cfg:         cfg.withDefaults(),
		logger:      logger,
	}
}

// Execute runs the strategy for one line item.
func (s *ProductFirst) Execute(ctx context.Context, bomText string, _ domain.NormalizedItem) (*domain.SearchStrategyResult, error) {
	result := &domain.SearchStrategyResult{}

	query, warning, err := s.interpret(ctx, bomText)
	if err != nil {
		return nil, err
	}
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}

	if s.embedder == nil {
		return nil, domain.ErrEmbedderUnavailable
	}
	vec, err := s.embedder.GenerateEmbedding(ctx, query.SearchText)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.Wrap(domain.ErrEmbeddingProvider, err)
	}

	reranking := s.reranker.Enabled() && query.HasSpecs()
	limit := s.cfg.MaxResults
	if reranking {
		limit *= s.cfg.CandidateMultiplier
	}
	filter := SemanticFilter{MinSimilarity: s.cfg.MinSimilarity, Limit: limit}
	if s.cfg.FilterByInterpretedFamily {
		filter.FamilyLabel = query.MaterialFamily
	}

	hits, err := s.semantic.SearchSimilar(ctx, vec, filter)
	if err != nil {
		return nil, fmt.Errorf("semantic product search: %w", err)
	}
	if len(hits) == 0 {
		result.Warnings = append(result.Warnings, "no products above the similarity threshold")
		return result, nil
	}

	result.FamilyLabel, result.CSICode = classify(hits)

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ProductID
	}
	enrichments, warning, err := s.enricher.fetchOrWarn(ctx, ids)
	if err != nil {
		return nil, err
	}
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}
	for i := range hits {
		if len(hits[i].SpecPayload) > 0 {
			continue
		}
		if row, ok := enrichments[hits[i].ProductID]; ok && len(row.TechnicalSpecs) > 0 {
			hits[i].SpecPayload = row.TechnicalSpecs
		}
	}

	if reranking {
		hits = s.reranker.ReRank(hits, query.TechnicalSpecs)
	}

	result.Matches = make([]domain.ProductMatch, 0, min(len(hits), s.cfg.MaxResults))
	for _, h := range hits {
		if h.EffectiveScore() < s.cfg.MinSimilarity {
			continue
		}
		if len(result.Matches) == s.cfg.MaxResults {
			break
		}
		result.Matches = append(result.Matches, assembleSemantic(h, enrichments))
	}
	if len(result.Matches) == 0 {
		result.Warnings = append(result.Warnings, "no products above the similarity threshold after spec re-ranking")
	}
	return result, nil
}

// interpret runs the query interpreter. Any failure degrades to the raw
// text with a warning; only cancellation is returned as an error.
func (s *ProductFirst) interpret(ctx context.Context, text string) (*domain.ParsedBomQuery, string, error) {
	if s.interpreter == nil || !s.interpreter.IsAvailable() {
		return domain.FailedParse(text, "interpreter not configured"), "", nil
	}

	parsed, err := s.interpreter.Parse(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		err = domain.Wrap(domain.ErrInterpreterProvider, err)
		return s.degrade(text, err.Error()), "query interpretation failed, searching with raw text: " + err.Error(), nil
	}
	if parsed == nil || !parsed.Success {
		reason := "no result"
		if parsed != nil && parsed.Error != "" {
			reason = parsed.Error
		}
		return s.degrade(text, reason), "query interpretation failed, searching with raw text: " + reason, nil
	}
	if strings.TrimSpace(parsed.SearchText) == "" {
		return s.degrade(text, "empty search text"), "query interpretation returned no search text, searching with raw text", nil
	}
	return parsed, "", nil
}

func (s *ProductFirst) degrade(text, reason string) *domain.ParsedBomQuery {
	s.logger.Warn("Query interpretation failed, using raw text", zap.String("reason", reason))
	metrics.Fallback("interpreter")
	return domain.FailedParse(text, reason)
}

// classify picks the plurality family label, ties going to the first seen,
// and the first non-empty CSI code.
func classify(hits []domain.SemanticProductMatch) (family, code string) {
	counts := make(map[string]int)
	var order []string
	for _, h := range hits {
		if code == "" && h.CSICode != "" {
			code = h.CSICode
		}
		if h.FamilyLabel == "" {
			continue
		}
		if counts[h.FamilyLabel] == 0 {
			order = append(order, h.FamilyLabel)
		}
		counts[h.FamilyLabel]++
	}
	best := 0
	for _, label := range order {
		if counts[label] > best {
			best = counts[label]
			family = label
		}
	}
	return family, code
}
