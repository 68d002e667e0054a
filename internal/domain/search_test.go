package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchMode(t *testing.T) {
	tests := []struct {
		input    string
		expected SearchMode
		wantErr  bool
	}{
		{"off", SearchModeOff, false},
		{"family_first", SearchModeFamilyFirst, false},
		{"Family-First", SearchModeFamilyFirst, false},
		{" product_first ", SearchModeProductFirst, false},
		{"HYBRID", SearchModeHybrid, false},
		{"semantic", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseSearchMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
				assert.ErrorIs(t, err, ErrInvalidSearchMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}

func TestBomLineItem_Text(t *testing.T) {
	assert.Equal(t, "CMU block 8 in gray", BomLineItem{Item: " CMU block ", Spec: "8 in gray"}.Text())
	assert.Equal(t, "CMU block", BomLineItem{Item: "CMU block"}.Text())
	assert.Equal(t, "8 in", BomLineItem{Spec: "8 in"}.Text())
	assert.Equal(t, "", BomLineItem{}.Text())
}

func TestNormalizedItem_SearchTerms(t *testing.T) {
	item := NormalizedItem{
		Keywords: []string{"cmu", "gray", ""},
		Synonyms: []string{"concrete block", "cmu"},
	}
	assert.Equal(t, []string{"cmu", "gray", "concrete block"}, item.SearchTerms())
}

func TestSemanticProductMatch_EffectiveScore(t *testing.T) {
	m := SemanticProductMatch{Similarity: 0.8}
	assert.Equal(t, 0.8, m.EffectiveScore())

	final := 0.4
	m.FinalScore = &final
	assert.Equal(t, 0.4, m.EffectiveScore())
}

func TestProductMatch_IdentityKey(t *testing.T) {
	a := ProductMatch{Vendor: "Acme ", Model: "CMU-8"}
	b := ProductMatch{Vendor: "acme", Model: "cmu-8"}
	assert.Equal(t, a.IdentityKey(), b.IdentityKey())
}

func TestDomainError_IsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("item 3: %w", ErrEmptyQuery)

	assert.True(t, errors.Is(wrapped, ErrEmptyQuery))
	assert.False(t, errors.Is(wrapped, ErrQueryTooLong))
	assert.True(t, IsValidationError(wrapped))
	assert.False(t, IsValidationError(ErrStrategyUnavailable))
	assert.Equal(t, "[VALIDATION_ERROR] search text cannot be empty", ErrEmptyQuery.Error())
}

func TestFailedParse(t *testing.T) {
	q := FailedParse("8 in cmu", "timeout")
	assert.False(t, q.Success)
	assert.Equal(t, "8 in cmu", q.SearchText)
	assert.Equal(t, "timeout", q.Error)
	assert.False(t, q.HasSpecs())
}

func TestNewSearchLog(t *testing.T) {
	result := &SourcingResult{
		BatchID:  "b1",
		Warnings: []string{"extraction skipped 1 row"},
		Results: []SearchResult{
			{Matches: []ProductMatch{{ProductID: "p1"}, {ProductID: "p2"}}, Warnings: []string{"fallback"}},
			{},
		},
	}

	log := NewSearchLog("api", SearchModeHybrid, result)
	assert.Equal(t, "b1", log.BatchID)
	assert.Equal(t, "api", log.Source)
	assert.Equal(t, 2, log.ItemCount)
	assert.Equal(t, 2, log.MatchCount)
	assert.Equal(t, 2, log.WarningCount)
}
