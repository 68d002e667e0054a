package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/metrics"
)

// Hybrid runs product-first and family-first side by side and interleaves
// their matches.
type Hybrid struct {
	productFirst SearchStrategy
	familyFirst  SearchStrategy
	maxResults   int
	logger       *zap.Logger
}

// NewHybrid creates a Hybrid strategy.
func NewHybrid(productFirst, familyFirst SearchStrategy, maxResults int, logger *zap.Logger) *Hybrid {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hybrid{
		productFirst: productFirst,
		familyFirst:  familyFirst,
		maxResults:   maxResults,
		logger:       logger,
	}
}

// Execute runs both strategies concurrently. A failed branch becomes a
// warning; the call fails only when both branches fail.
func (h *Hybrid) Execute(ctx context.Context, bomText string, item domain.NormalizedItem) (*domain.SearchStrategyResult, error) {
	var (
		pf, ff       *domain.SearchStrategyResult
		pfErr, ffErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		pf, pfErr = h.productFirst.Execute(ctx, bomText, item)
		return nil
	})
	g.Go(func() error {
		ff, ffErr = h.familyFirst.Execute(ctx, bomText, item)
		return nil
	})
	_ = g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if pfErr != nil && ffErr != nil {
		return nil, fmt.Errorf("hybrid search: %w", errors.Join(pfErr, ffErr))
	}

	result := &domain.SearchStrategyResult{}
	if pfErr != nil {
		h.branchFailed(string(domain.SearchModeProductFirst), pfErr)
		result.Warnings = append(result.Warnings, "product-first search failed: "+pfErr.Error())
		pf = &domain.SearchStrategyResult{}
	}
	if ffErr != nil {
		h.branchFailed(string(domain.SearchModeFamilyFirst), ffErr)
		result.Warnings = append(result.Warnings, "family-first search failed: "+ffErr.Error())
		ff = &domain.SearchStrategyResult{}
	}

	result.Matches = interleave(pf.Matches, ff.Matches, h.maxResults)
	result.Warnings = append(result.Warnings, pf.Warnings...)
	result.Warnings = append(result.Warnings, ff.Warnings...)

	result.FamilyLabel, result.CSICode = ff.FamilyLabel, ff.CSICode
	if result.FamilyLabel == "" {
		result.FamilyLabel = pf.FamilyLabel
	}
	if result.CSICode == "" {
		result.CSICode = pf.CSICode
	}
	return result, nil
}

func (h *Hybrid) branchFailed(mode string, err error) {
	h.logger.Warn("Hybrid branch failed", zap.String("branch", mode), zap.Error(err))
	metrics.StrategyErrorsTotal.WithLabelValues(mode).Inc()
	metrics.Fallback("hybrid_branch")
}

// interleave merges a and b round-robin, a first in each round, keeping one
// entry per product. When both lists hold a product, a's version is placed
// at the first position either list reaches it. The rounds stop as soon as
// either list is exhausted or limit is reached. An empty list has nothing to
// alternate with, so the other list is returned on its own.
func interleave(a, b []domain.ProductMatch, limit int) []domain.ProductMatch {
	out := make([]domain.ProductMatch, 0, min(len(a)+len(b), limit))
	preferred := make(map[string]domain.ProductMatch, len(a))
	for _, m := range a {
		if _, ok := preferred[m.IdentityKey()]; !ok {
			preferred[m.IdentityKey()] = m
		}
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	take := func(m domain.ProductMatch) {
		key := m.IdentityKey()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		if p, ok := preferred[key]; ok {
			m = p
		}
		out = append(out, m)
	}

	rounds := min(len(a), len(b))
	if rounds == 0 {
		rounds = max(len(a), len(b))
	}
	for i := 0; i < rounds && len(out) < limit; i++ {
		if i < len(a) {
			take(a[i])
		}
		if i < len(b) && len(out) < limit {
			take(b[i])
		}
	}
	return out
}
