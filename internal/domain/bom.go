package domain

import "strings"

// BomLineItem is one row of a procurement bill of materials.
type BomLineItem struct {
	Item     string  `json:"item"`
	Spec     string  `json:"spec,omitempty"`
	Quantity float64 `json:"quantity,omitempty"`
}

// Text returns the searchable text of the line item: label followed by spec.
func (b BomLineItem) Text() string {
	item := strings.TrimSpace(b.Item)
	spec := strings.TrimSpace(b.Spec)
	switch {
	case item == "":
		return spec
	case spec == "":
		return item
	default:
		return item + " " + spec
	}
}

// ParsedBomQuery is the structured interpretation of a line item.
// MaterialFamily is empty when the interpreter could not guess one.
type ParsedBomQuery struct {
	MaterialFamily string            `json:"material_family,omitempty"`
	TechnicalSpecs map[string]string `json:"technical_specs,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	SearchText     string            `json:"search_text"`
	Confidence     float64           `json:"confidence"`
	Success        bool              `json:"success"`
	Error          string            `json:"error,omitempty"`
}

// FailedParse builds the fallback result returned when interpretation fails.
// The search text is always the original input.
func FailedParse(text string, reason string) *ParsedBomQuery {
	return &ParsedBomQuery{
		SearchText: text,
		Success:    false,
		Error:      reason,
	}
}

// HasSpecs reports whether the query carries any structured technical specs.
func (q *ParsedBomQuery) HasSpecs() bool {
	return q != nil && len(q.TechnicalSpecs) > 0
}

// NormalizedItem is the keyword-level view of a line item produced by the
// input normalizer.
type NormalizedItem struct {
	Text         string   `json:"text"`
	Keywords     []string `json:"keywords,omitempty"`
	SizeVariants []string `json:"size_variants,omitempty"`
	SizePatterns []string `json:"size_patterns,omitempty"`
	Synonyms     []string `json:"synonyms,omitempty"`
}

// SearchTerms returns keywords followed by synonyms, without duplicates.
func (n NormalizedItem) SearchTerms() []string {
	seen := make(map[string]struct{}, len(n.Keywords)+len(n.Synonyms))
	terms := make([]string, 0, len(n.Keywords)+len(n.Synonyms))
	for _, list := range [][]string{n.Keywords, n.Synonyms} {
		for _, t := range list {
			if _, ok := seen[t]; ok || t == "" {
				continue
			}
			seen[t] = struct{}{}
			terms = append(terms, t)
		}
	}
	return terms
}
