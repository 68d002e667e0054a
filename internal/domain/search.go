package domain

import (
	"fmt"
	"strings"
	"time"
)

// SearchMode selects the retrieval strategy for a line item.
type SearchMode string

const (
	SearchModeOff          SearchMode = "off"
	SearchModeFamilyFirst  SearchMode = "family_first"
	SearchModeProductFirst SearchMode = "product_first"
	SearchModeHybrid       SearchMode = "hybrid"
)

// ParseSearchMode parses a user-supplied mode name. Dashes are accepted in
// place of underscores.
func ParseSearchMode(s string) (SearchMode, error) {
	mode := SearchMode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !IsValidSearchMode(mode) {
		return "", Wrap(ErrInvalidSearchMode, fmt.Errorf("unknown search mode %q", s))
	}
	return mode, nil
}

// IsValidSearchMode reports whether mode is one of the known modes.
func IsValidSearchMode(mode SearchMode) bool {
	switch mode {
	case SearchModeOff, SearchModeFamilyFirst, SearchModeProductFirst, SearchModeHybrid:
		return true
	}
	return false
}

// SearchStrategyResult is the raw output of one strategy execution.
type SearchStrategyResult struct {
	Matches     []ProductMatch
	Warnings    []string
	FamilyLabel string
	CSICode     string
}

// SearchResult is the final result for one line item.
type SearchResult struct {
	Item          BomLineItem    `json:"item"`
	Mode          SearchMode     `json:"mode"`
	Matches       []ProductMatch `json:"matches"`
	FamilyLabel   string         `json:"family_label,omitempty"`
	CSICode       string         `json:"csi_code,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time_ns"`
}

// SourcingResult aggregates the results of a batch of line items.
type SourcingResult struct {
	BatchID   string         `json:"batch_id"`
	TraceID   string         `json:"trace_id,omitempty"`
	Results   []SearchResult `json:"results"`
	Warnings  []string       `json:"warnings,omitempty"`
	TotalTime time.Duration  `json:"total_time_ns"`
}

// MatchCount returns the number of matches across all results.
func (r *SourcingResult) MatchCount() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Matches)
	}
	return n
}

// SearchLog summarises one search request for offline evaluation.
type SearchLog struct {
	BatchID      string
	TraceID      string
	Source       string
	Mode         SearchMode
	ItemCount    int
	MatchCount   int
	WarningCount int
	Duration     time.Duration
}

// NewSearchLog summarises a sourcing result.
func NewSearchLog(source string, mode SearchMode, result *SourcingResult) SearchLog {
	warnings := len(result.Warnings)
	for _, r := range result.Results {
		warnings += len(r.Warnings)
	}
	return SearchLog{
		BatchID:      result.BatchID,
		TraceID:      result.TraceID,
		Source:       source,
		Mode:         mode,
		ItemCount:    len(result.Results),
		MatchCount:   result.MatchCount(),
		WarningCount: warnings,
		Duration:     result.TotalTime,
	}
}
