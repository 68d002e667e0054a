package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/metrics"
)

// Enricher attaches vendor-specific details to matched products.
type Enricher struct {
	repo   EnrichmentRepository
	logger *zap.Logger
}

// NewEnricher creates an Enricher. A nil repo yields base fields only.
func NewEnricher(repo EnrichmentRepository, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{repo: repo, logger: logger}
}

// Fetch loads enrichment rows for ids in one repository call, keyed by
// product ID. When a product has rows in several vendor schemas the first
// row wins.
func (e *Enricher) Fetch(ctx context.Context, ids []string) (map[string]domain.ProductEnrichment, error) {
	out := make(map[string]domain.ProductEnrichment, len(ids))
	if e == nil || e.repo == nil || len(ids) == 0 {
		return out, nil
	}

	rows, err := e.repo.GetEnrichments(ctx, ids)
	if err != nil {
		return out, fmt.Errorf("get enrichments: %w", err)
	}
	for _, row := range rows {
		if _, ok := out[row.ProductID]; ok {
			continue
		}
		out[row.ProductID] = row
	}
	return out, nil
}

// fetchOrWarn wraps Fetch for strategies: a failed lookup becomes a warning
// and the matches keep their base fields.
func (e *Enricher) fetchOrWarn(ctx context.Context, ids []string) (map[string]domain.ProductEnrichment, string, error) {
	rows, err := e.Fetch(ctx, ids)
	if err == nil {
		return rows, "", nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, "", ctxErr
	}
	e.logger.Warn("Enrichment lookup failed, returning base product fields", zap.Error(err))
	metrics.Fallback("enrichment")
	return rows, "product details unavailable: " + err.Error(), nil
}

// assembleCatalog builds a public match from a catalog row.
func assembleCatalog(p domain.CatalogProduct, enrichments map[string]domain.ProductEnrichment) domain.ProductMatch {
	m := domain.ProductMatch{
		ProductID:   p.ID,
		Vendor:      p.Vendor,
		Model:       p.Model,
		FamilyLabel: p.FamilyLabel,
		CSICode:     p.CSICode,
	}
	applyEnrichment(&m, enrichments)
	return m
}

// assembleSemantic builds a public match from a vector hit. The score is the
// effective score of the hit.
func assembleSemantic(s domain.SemanticProductMatch, enrichments map[string]domain.ProductEnrichment) domain.ProductMatch {
	score := s.EffectiveScore()
	m := domain.ProductMatch{
		ProductID:   s.ProductID,
		Vendor:      s.Vendor,
		Model:       s.Model,
		FamilyLabel: s.FamilyLabel,
		CSICode:     s.CSICode,
		Score:       &score,
	}
	applyEnrichment(&m, enrichments)
	return m
}

func applyEnrichment(m *domain.ProductMatch, enrichments map[string]domain.ProductEnrichment) {
	row, ok := enrichments[m.ProductID]
	if !ok {
		return
	}
	m.VendorSchema = row.VendorSchema
	m.Usage = row.Usage
	m.Features = row.Features
	m.TechnicalSpecs = decodeObject(row.TechnicalSpecs)
	m.PerformanceData = decodeObject(row.PerformanceData)
}

// decodeObject decodes a JSON object, returning nil for anything else.
func decodeObject(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}
