package domain

import (
	"encoding/json"
	"strings"
)

// MaterialFamily is a coarse classification node of the catalog.
type MaterialFamily struct {
	Label        string   `json:"label"`
	Name         string   `json:"name"`
	CSIPrefix    string   `json:"csi_prefix,omitempty"`
	LeadTimeDays *int     `json:"lead_time_days,omitempty"`
	Synonyms     []string `json:"synonyms,omitempty"`
}

// RankedMaterialFamily is a family positioned within one ranked list.
type RankedMaterialFamily struct {
	MaterialFamily
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

// CatalogProduct is an active product row from the catalog.
type CatalogProduct struct {
	ID          string `json:"id"`
	Vendor      string `json:"vendor"`
	Model       string `json:"model"`
	FamilyLabel string `json:"family_label,omitempty"`
	CSICode     string `json:"csi_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// SemanticProductMatch is one vector-search hit over product embeddings.
// FinalScore is set only after spec re-ranking ran.
type SemanticProductMatch struct {
	ProductID   string          `json:"product_id"`
	Vendor      string          `json:"vendor"`
	Model       string          `json:"model"`
	FamilyLabel string          `json:"family_label,omitempty"`
	CSICode     string          `json:"csi_code,omitempty"`
	Similarity  float64         `json:"similarity"`
	SpecPayload json.RawMessage `json:"spec_payload,omitempty"`
	FinalScore  *float64        `json:"final_score,omitempty"`
}

// EffectiveScore is the score used for thresholds and ordering: the blended
// score when re-ranking ran, the raw similarity otherwise.
func (m SemanticProductMatch) EffectiveScore() float64 {
	if m.FinalScore != nil {
		return *m.FinalScore
	}
	return m.Similarity
}

// ProductEnrichment is one vendor-specific enrichment row.
type ProductEnrichment struct {
	ProductID       string          `json:"product_id"`
	VendorSchema    string          `json:"vendor_schema"`
	Usage           string          `json:"usage,omitempty"`
	Features        []string        `json:"features,omitempty"`
	TechnicalSpecs  json.RawMessage `json:"technical_specs,omitempty"`
	PerformanceData json.RawMessage `json:"performance_data,omitempty"`
}

// ProductMatch is the public-facing match assembled from a catalog or
// semantic hit plus vendor enrichment.
type ProductMatch struct {
	ProductID       string         `json:"product_id"`
	Vendor          string         `json:"vendor"`
	Model           string         `json:"model"`
	FamilyLabel     string         `json:"family_label,omitempty"`
	CSICode         string         `json:"csi_code,omitempty"`
	Usage           string         `json:"usage,omitempty"`
	Features        []string       `json:"features,omitempty"`
	TechnicalSpecs  map[string]any `json:"technical_specs,omitempty"`
	PerformanceData map[string]any `json:"performance_data,omitempty"`
	VendorSchema    string         `json:"vendor_schema,omitempty"`
	Score           *float64       `json:"score,omitempty"`
}

// IdentityKey identifies a product across strategies by vendor and model.
func (p ProductMatch) IdentityKey() string {
	return strings.ToLower(strings.TrimSpace(p.Vendor)) + "|" + strings.ToLower(strings.TrimSpace(p.Model))
}
