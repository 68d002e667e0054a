package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/metrics"
	"github.com/cloo-solutions/bomsearch/internal/rank"
)

const (
	defaultFamilyCandidates = 10
	defaultMaxResults       = 10
)

// FamilyFirstConfig tunes the family-first strategy.
type FamilyFirstConfig struct {
	RRFK             int
	FullTextWeight   float64
	VectorWeight     float64
	FamilyCandidates int
	MaxResults       int
	// KeywordOnly skips the full-text and vector family search.
	KeywordOnly bool
}

// DefaultFamilyFirstConfig returns the default family-first tuning.
func DefaultFamilyFirstConfig() FamilyFirstConfig {
	return FamilyFirstConfig{
		RRFK:             rank.DefaultK,
		FullTextWeight:   1.0,
		VectorWeight:     1.0,
		FamilyCandidates: defaultFamilyCandidates,
		MaxResults:       defaultMaxResults,
	}
}

func (c FamilyFirstConfig) withDefaults() FamilyFirstConfig {
	d := DefaultFamilyFirstConfig()
	if c.RRFK <= 0 {
		c.RRFK = d.RRFK
	}
	if c.FullTextWeight <= 0 && c.VectorWeight <= 0 {
		c.FullTextWeight, c.VectorWeight = d.FullTextWeight, d.VectorWeight
	}
	if c.FamilyCandidates <= 0 {
		c.FamilyCandidates = d.FamilyCandidates
	}
	if c.MaxResults <= 0 {
		c.MaxResults = d.MaxResults
	}
	return c
}

// fallbackStep is one link of an ordered fallback chain. A step that fails
// or finds nothing hands over to the next one.
type fallbackStep struct {
	name string
	run  func(ctx context.Context, bomText string, item domain.NormalizedItem) ([]domain.RankedMaterialFamily, error)
}

var errEmbedderMissing = errors.New("embedder not configured")

// FamilyFirst resolves a material family first, then looks up products
// within it. It never calls the query interpreter.
type FamilyFirst struct {
	families FamilyRepository
	products ProductRepository
	embedder Embedder
	enricher *Enricher
	cfg      FamilyFirstConfig
	steps    []fallbackStep
	logger   *zap.Logger
}

// NewFamilyFirst creates a FamilyFirst strategy. A nil embedder makes the
// strategy keyword-only.
func NewFamilyFirst(
	families FamilyRepository,
	products ProductRepository,
	embedder Embedder,
	enricher *Enricher,
	cfg FamilyFirstConfig,
	logger *zap.Logger,
) *FamilyFirst {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FamilyFirst{
		families: families,
		products: products,
		embedder: embedder,
		enricher: enricher,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
	if !s.cfg.KeywordOnly {
		s.steps = append(s.steps, fallbackStep{name: "hybrid", run: s.hybridFamilies})
	}
	s.steps = append(s.steps, fallbackStep{name: "keyword", run: s.keywordFamilies})
	return s
}

// Execute runs the strategy for one line item.
func (s *FamilyFirst) Execute(ctx context.Context, bomText string, item domain.NormalizedItem) (*domain.SearchStrategyResult, error) {
	result := &domain.SearchStrategyResult{}

	family, warnings, err := s.resolveFamily(ctx, bomText, item)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)

	filter := ProductFilter{
		SizePatterns: item.SizePatterns,
		Keywords:     item.Keywords,
		Limit:        s.cfg.MaxResults,
	}
	if family != nil {
		filter.FamilyLabel = family.Label
		filter.CSIPrefix = family.CSIPrefix
		result.FamilyLabel = family.Label
		result.CSICode = family.CSIPrefix
	} else {
		result.Warnings = append(result.Warnings, "no material family resolved; using keyword-only product lookup")
		metrics.Fallback("family_none")
		filter.SizePatterns = nil
		filter.Keywords = item.SearchTerms()
	}

	products, err := s.products.FindProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	if len(products) == 0 {
		return result, nil
	}

	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	enrichments, warning, err := s.enricher.fetchOrWarn(ctx, ids)
	if err != nil {
		return nil, err
	}
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}

	result.Matches = make([]domain.ProductMatch, len(products))
	for i, p := range products {
		result.Matches[i] = assembleCatalog(p, enrichments)
	}
	return result, nil
}

// resolveFamily walks the fallback chain and returns the top family, or nil
// when every step came back empty.
func (s *FamilyFirst) resolveFamily(ctx context.Context, bomText string, item domain.NormalizedItem) (*domain.RankedMaterialFamily, []string, error) {
	var warnings []string
	for i, step := range s.steps {
		families, err := step.run(ctx, bomText, item)
		if err == nil && len(families) > 0 {
			top := families[0]
			return &top, warnings, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}

		last := i == len(s.steps)-1
		switch {
		case err != nil && last:
			s.logger.Warn("Family lookup failed", zap.String("step", step.name), zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("%s family lookup failed: %v", step.name, err))
		case err != nil:
			s.logger.Warn("Family search failed, falling back",
				zap.String("step", step.name),
				zap.String("next", s.steps[i+1].name),
				zap.Error(err),
			)
			warnings = append(warnings, fmt.Sprintf("%s family search failed, falling back to %s lookup: %v", step.name, s.steps[i+1].name, err))
			metrics.Fallback("family_" + step.name)
		case !last:
			s.logger.Debug("Family search found nothing, falling back",
				zap.String("step", step.name),
				zap.String("next", s.steps[i+1].name),
			)
			warnings = append(warnings, fmt.Sprintf("%s family search found no candidates, falling back to %s lookup", step.name, s.steps[i+1].name))
			metrics.Fallback("family_" + step.name)
		}
	}
	return nil, warnings, nil
}

// hybridFamilies runs full-text and vector family search concurrently and
// fuses the two rankings.
func (s *FamilyFirst) hybridFamilies(ctx context.Context, bomText string, _ domain.NormalizedItem) ([]domain.RankedMaterialFamily, error) {
	if s.embedder == nil {
		return nil, errEmbedderMissing
	}

	var fullText, vector []domain.RankedMaterialFamily
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fullText, err = s.families.FullTextSearch(gctx, bomText, s.cfg.FamilyCandidates)
		if err != nil {
			return fmt.Errorf("full-text search: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		vec, err := s.embedder.GenerateEmbedding(gctx, bomText)
		if err != nil {
			return domain.Wrap(domain.ErrEmbeddingProvider, err)
		}
		vector, err = s.families.VectorSearch(gctx, vec, s.cfg.FamilyCandidates)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return rank.FuseFamilies(fullText, vector, s.cfg.FullTextWeight, s.cfg.VectorWeight, s.cfg.RRFK, s.cfg.FamilyCandidates), nil
}

func (s *FamilyFirst) keywordFamilies(ctx context.Context, _ string, item domain.NormalizedItem) ([]domain.RankedMaterialFamily, error) {
	terms := item.SearchTerms()
	if len(terms) == 0 {
		return nil, nil
	}
	families, err := s.families.FindByKeywords(ctx, terms, s.cfg.FamilyCandidates)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return families, nil
}
