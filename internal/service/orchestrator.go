package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/metrics"
	"github.com/cloo-solutions/bomsearch/internal/normalize"
	"github.com/cloo-solutions/bomsearch/internal/rerank"
	"github.com/cloo-solutions/bomsearch/internal/telemetry"
)

const (
	DefaultMaxInputLength   = 1000
	DefaultBatchConcurrency = 8
)

// OrchestratorConfig configures mode selection and the strategies.
type OrchestratorConfig struct {
	DefaultMode      domain.SearchMode
	SemanticEnabled  bool
	MaxInputLength   int
	BatchConcurrency int
	// EmbeddingDimensions is the vector size of the stored catalog
	// embeddings. Zero skips the dimension check.
	EmbeddingDimensions int
	FamilyFirst         FamilyFirstConfig
	ProductFirst        ProductFirstConfig
	ReRank              rerank.Config
}

// DefaultOrchestratorConfig returns the default configuration.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		DefaultMode:      domain.SearchModeHybrid,
		SemanticEnabled:  true,
		MaxInputLength:   DefaultMaxInputLength,
		BatchConcurrency: DefaultBatchConcurrency,
		FamilyFirst:      DefaultFamilyFirstConfig(),
		ProductFirst:     DefaultProductFirstConfig(),
		ReRank:           rerank.DefaultConfig(),
	}
}

// Dependencies are the collaborators NewOrchestrator wires strategies from.
// Families and Products are required; the rest enable more modes.
type Dependencies struct {
	Families    FamilyRepository
	Products    ProductRepository
	Semantic    SemanticProductRepository
	Enrichments EnrichmentRepository
	Embedder    Embedder
	Interpreter QueryInterpreter
	Normalizer  Normalizer
	Logger      *zap.Logger
}

// BatchRequest is a batch of line items searched with one mode.
type BatchRequest struct {
	Items []domain.BomLineItem
	// Mode overrides the configured default when set.
	Mode domain.SearchMode
	// Warnings from the upstream extraction step, reported first.
	Warnings []string
	TraceID  string
}

// Orchestrator validates input, picks a strategy and runs it.
type Orchestrator struct {
	cfg        OrchestratorConfig
	strategies map[domain.SearchMode]SearchStrategy
	normalizer Normalizer
	pool       *ants.Pool
	logger     *zap.Logger
}

// NewOrchestrator builds the strategies available for deps and returns an
// orchestrator over them. It fails when the embedder produces vectors of a
// different size than the catalog stores.
func NewOrchestrator(cfg OrchestratorConfig, deps Dependencies) (*Orchestrator, error) {
	if deps.Families == nil || deps.Products == nil {
		return nil, errors.New("family and product repositories are required")
	}
	if deps.Embedder != nil && cfg.EmbeddingDimensions > 0 && deps.Embedder.Dimension() != cfg.EmbeddingDimensions {
		return nil, domain.Wrap(domain.ErrDimensionMismatch,
			fmt.Errorf("embedder produces %d dimensions, catalog stores %d", deps.Embedder.Dimension(), cfg.EmbeddingDimensions))
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	enricher := NewEnricher(deps.Enrichments, logger)

	keywordCfg := cfg.FamilyFirst
	keywordCfg.KeywordOnly = true
	familyCfg := cfg.FamilyFirst
	familyCfg.KeywordOnly = deps.Embedder == nil

	strategies := map[domain.SearchMode]SearchStrategy{
		domain.SearchModeOff:         NewFamilyFirst(deps.Families, deps.Products, nil, enricher, keywordCfg, logger),
		domain.SearchModeFamilyFirst: NewFamilyFirst(deps.Families, deps.Products, deps.Embedder, enricher, familyCfg, logger),
	}
	if deps.Embedder != nil && deps.Semantic != nil {
		productFirst := NewProductFirst(deps.Semantic, deps.Embedder, deps.Interpreter,
			rerank.New(cfg.ReRank, logger), enricher, cfg.ProductFirst, logger)
		strategies[domain.SearchModeProductFirst] = productFirst
		strategies[domain.SearchModeHybrid] = NewHybrid(productFirst, strategies[domain.SearchModeFamilyFirst],
			cfg.ProductFirst.withDefaults().MaxResults, logger)
	}

	normalizer := deps.Normalizer
	if normalizer == nil {
		n, err := normalize.New()
		if err != nil {
			return nil, fmt.Errorf("create normalizer: %w", err)
		}
		normalizer = n
	}

	return NewOrchestratorWithStrategies(cfg, strategies, normalizer, logger)
}

// NewOrchestratorWithStrategies returns an orchestrator over an explicit
// strategy set.
func NewOrchestratorWithStrategies(
	cfg OrchestratorConfig,
	strategies map[domain.SearchMode]SearchStrategy,
	normalizer Normalizer,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if normalizer == nil {
		return nil, errors.New("normalizer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxInputLength <= 0 {
		cfg.MaxInputLength = DefaultMaxInputLength
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = domain.SearchModeFamilyFirst
	}

	pool, err := ants.NewPool(cfg.BatchConcurrency)
	if err != nil {
		return nil, fmt.Errorf("create batch pool: %w", err)
	}

	return &Orchestrator{
		cfg:        cfg,
		strategies: strategies,
		normalizer: normalizer,
		pool:       pool,
		logger:     logger,
	}, nil
}

// Close releases the batch worker pool.
func (o *Orchestrator) Close() {
	o.pool.Release()
}

// Modes returns the registered search modes in name order.
func (o *Orchestrator) Modes() []domain.SearchMode {
	modes := make([]domain.SearchMode, 0, len(o.strategies))
	for m := range o.strategies {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

// Search runs one line item. An empty mode selects the configured default.
func (o *Orchestrator) Search(ctx context.Context, item domain.BomLineItem, mode domain.SearchMode) (*domain.SearchResult, error) {
	return o.search(ctx, item, mode, 0)
}

func (o *Orchestrator) search(ctx context.Context, item domain.BomLineItem, requested domain.SearchMode, index int) (*domain.SearchResult, error) {
	start := time.Now()

	text := item.Text()
	if err := o.validate(text); err != nil {
		return nil, err
	}

	mode, strategy, warnings, err := o.selectStrategy(requested)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "search.item", telemetry.SpanAttributes{
		Mode:      string(mode),
		ItemIndex: index,
		Operation: "search",
	})
	defer span.End()

	normalized := o.normalizer.Normalize(text)
	res, err := strategy.Execute(ctx, text, normalized)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.StrategyErrorsTotal.WithLabelValues(string(mode)).Inc()
		span.SetError(err)
		o.logger.Error("Search strategy failed", zap.String("mode", string(mode)), zap.Error(err))
		return nil, fmt.Errorf("%s search: %w", mode, err)
	}

	result := &domain.SearchResult{
		Item:          item,
		Mode:          mode,
		Matches:       res.Matches,
		FamilyLabel:   res.FamilyLabel,
		CSICode:       res.CSICode,
		Warnings:      append(warnings, res.Warnings...),
		ExecutionTime: time.Since(start),
	}
	if result.Matches == nil {
		result.Matches = []domain.ProductMatch{}
	}

	metrics.SearchDuration.WithLabelValues(string(mode)).Observe(result.ExecutionTime.Seconds())
	metrics.SearchMatches.WithLabelValues(string(mode)).Observe(float64(len(result.Matches)))
	span.SetStatus(sentry.SpanStatusOK)

	o.logger.Debug("Line item searched",
		zap.String("mode", string(mode)),
		zap.Int("matches", len(result.Matches)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("elapsed", result.ExecutionTime),
	)
	return result, nil
}

func (o *Orchestrator) validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.ErrEmptyQuery
	}
	if utf8.RuneCountInString(text) > o.cfg.MaxInputLength {
		return domain.ErrQueryTooLong
	}
	return nil
}

// effectiveMode applies the default and the semantic kill switch.
func (o *Orchestrator) effectiveMode(requested domain.SearchMode) domain.SearchMode {
	if !o.cfg.SemanticEnabled {
		return domain.SearchModeOff
	}
	if requested == "" {
		return o.cfg.DefaultMode
	}
	return requested
}

func (o *Orchestrator) selectStrategy(requested domain.SearchMode) (domain.SearchMode, SearchStrategy, []string, error) {
	mode := o.effectiveMode(requested)
	if s, ok := o.strategies[mode]; ok {
		return mode, s, nil, nil
	}

	s, ok := o.strategies[domain.SearchModeFamilyFirst]
	if !ok {
		return "", nil, nil, domain.ErrStrategyUnavailable
	}
	o.logger.Warn("Search mode unavailable, using family_first", zap.String("requested", string(mode)))
	metrics.Fallback("mode")
	warning := fmt.Sprintf("search mode %q unavailable, using %s", mode, domain.SearchModeFamilyFirst)
	return domain.SearchModeFamilyFirst, s, []string{warning}, nil
}

// SearchBatch searches every item of req concurrently on the shared pool.
// Results keep the input order. A failing item yields an empty result and a
// batch warning; cancellation of ctx aborts the whole batch.
func (o *Orchestrator) SearchBatch(ctx context.Context, req BatchRequest) (*domain.SourcingResult, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	start := time.Now()
	batchID := uuid.NewString()

	ctx, span := telemetry.StartSpan(ctx, "search.batch", telemetry.SpanAttributes{
		BatchID:   batchID,
		Mode:      string(o.effectiveMode(req.Mode)),
		ItemCount: len(req.Items),
		Operation: "batch",
	})
	defer span.End()

	results := make([]domain.SearchResult, len(req.Items))
	failures := make([]error, len(req.Items))

	var wg sync.WaitGroup
	for i, item := range req.Items {
		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			res, err := o.search(ctx, item, req.Mode, i+1)
			if err != nil {
				failures[i] = err
				return
			}
			results[i] = *res
		})
		if err != nil {
			wg.Done()
			failures[i] = fmt.Errorf("schedule item: %w", err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(sentry.SpanStatusCanceled)
		return nil, err
	}

	out := &domain.SourcingResult{
		BatchID:  batchID,
		TraceID:  req.TraceID,
		Results:  results,
		Warnings: append([]string(nil), req.Warnings...),
	}
	if out.TraceID == "" {
		out.TraceID = span.TraceID()
	}

	for i, err := range failures {
		if err == nil {
			metrics.BatchItemsTotal.WithLabelValues("ok").Inc()
			continue
		}
		metrics.BatchItemsTotal.WithLabelValues("error").Inc()
		o.logger.Warn("Batch item failed",
			zap.String("batch_id", batchID),
			zap.Int("item", i+1),
			zap.Error(err),
		)
		out.Warnings = append(out.Warnings, fmt.Sprintf("item %d: %v", i+1, err))
		results[i] = domain.SearchResult{
			Item:     req.Items[i],
			Mode:     o.effectiveMode(req.Mode),
			Matches:  []domain.ProductMatch{},
			Warnings: []string{err.Error()},
		}
	}

	out.TotalTime = time.Since(start)
	span.SetStatus(sentry.SpanStatusOK)

	o.logger.Info("Batch searched",
		zap.String("batch_id", batchID),
		zap.Int("items", len(req.Items)),
		zap.Int("matches", out.MatchCount()),
		zap.Duration("elapsed", out.TotalTime),
	)
	return out, nil
}
