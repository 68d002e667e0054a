package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New()
	require.NoError(t, err)
	return n
}

func TestNormalize_KeywordsSkipNumbersUnitsAndStopwords(t *testing.T) {
	item := newNormalizer(t).Normalize("8 inch CMU block, gray, for the north wall")

	assert.Equal(t, "8 inch CMU block, gray, for the north wall", item.Text)
	assert.Equal(t, []string{"cmu", "block", "gray", "north", "wall"}, item.Keywords)
}

func TestNormalize_SizeVariants(t *testing.T) {
	item := newNormalizer(t).Normalize("8 inch CMU block")

	assert.Equal(t, []string{"8 in", "8in", `8"`, "8 inch", "8-inch", "203.2 mm", "203.2mm"}, item.SizeVariants)
	require.Len(t, item.SizePatterns, len(item.SizeVariants))
	assert.Equal(t, "%8 in%", item.SizePatterns[0])
}

func TestNormalize_MetricSizeVariants(t *testing.T) {
	item := newNormalizer(t).Normalize("block 190mm")
	assert.Equal(t, []string{"190 mm", "190mm", "7.48 in", "7.48in"}, item.SizeVariants)
}

func TestNormalize_GridSizes(t *testing.T) {
	item := newNormalizer(t).Normalize("CMU 8x8x16")
	assert.Equal(t, []string{"8x8x16", "8 x 8 x 16"}, item.SizeVariants)
	assert.Equal(t, []string{"cmu"}, item.Keywords)
}

func TestNormalize_TypographicMarks(t *testing.T) {
	n := newNormalizer(t)

	item := n.Normalize("stud 3⅝″")
	require.NotEmpty(t, item.SizeVariants)
	assert.Equal(t, "3.63 in", item.SizeVariants[0])

	item = n.Normalize("door 7½ ft")
	require.NotEmpty(t, item.SizeVariants)
	assert.Equal(t, "7.5 ft", item.SizeVariants[0])
}

func TestNormalize_Synonyms(t *testing.T) {
	item := newNormalizer(t).Normalize("8 inch CMU block gray")

	assert.Equal(t, []string{"concrete masonry unit", "concrete block", "cinder block", "grey"}, item.Synonyms)
	assert.Equal(t,
		[]string{"cmu", "block", "gray", "concrete masonry unit", "concrete block", "cinder block", "grey"},
		item.SearchTerms(),
	)
}

func TestNormalize_MultiWordSynonymMatch(t *testing.T) {
	item := newNormalizer(t).Normalize("5/8 in Gypsum Board type X")
	assert.Contains(t, item.Synonyms, "drywall")
	assert.NotContains(t, item.Synonyms, "gypsum board")
}

func TestNormalize_NoMatches(t *testing.T) {
	item := newNormalizer(t).Normalize("   ")
	assert.Empty(t, item.Text)
	assert.Empty(t, item.Keywords)
	assert.Empty(t, item.SizeVariants)
	assert.Empty(t, item.Synonyms)
}

func TestNewWithSynonyms_DropsDegenerateGroups(t *testing.T) {
	n := NewWithSynonyms([][]string{{"Solo"}, {"Foo", " BAR "}})
	item := n.Normalize("foo widget")
	assert.Equal(t, []string{"bar"}, item.Synonyms)
}

func TestParseSynonyms(t *testing.T) {
	groups, err := ParseSynonyms([]byte("groups:\n  - [a, b]\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, groups)

	_, err = ParseSynonyms([]byte("groups: [unterminated"))
	assert.Error(t, err)
}
