package repository

import (
	"context"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

const familyColumns = `label, name, coalesce(csi_prefix, ''), lead_time_days, synonyms`

// familyDocument is the text indexed for full-text family search.
const familyDocument = `to_tsvector('english',
	replace(label, '_', ' ') || ' ' || name || ' ' || description || ' ' || array_to_string(synonyms, ' '))`

var lexemePattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// FamilyRepository implements material family lookups.
type FamilyRepository struct {
	db dbtx
}

func NewFamilyRepository(pool *pgxpool.Pool) *FamilyRepository {
	return &FamilyRepository{db: pool}
}

// FindByKeywords scores each family by how many terms appear in its label,
// name, description or synonyms.
func (r *FamilyRepository) FindByKeywords(ctx context.Context, terms []string, limit int) ([]domain.RankedMaterialFamily, error) {
	patterns := containsPatterns(terms)
	if len(patterns) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+familyColumns+`, score
		FROM (
			SELECT f.*, (
				SELECT count(*) FROM unnest($1::text[]) AS t(pattern)
				WHERE f.label ILIKE t.pattern
				   OR f.name ILIKE t.pattern
				   OR f.description ILIKE t.pattern
				   OR EXISTS (SELECT 1 FROM unnest(f.synonyms) AS s(term) WHERE s.term ILIKE t.pattern)
			)::float8 AS score
			FROM material_families f
		) scored
		WHERE score > 0
		ORDER BY score DESC, label
		LIMIT $2`,
		patterns, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanRankedFamilies(rows)
}

// FullTextSearch matches families containing any of the query's words.
func (r *FamilyRepository) FullTextSearch(ctx context.Context, query string, limit int) ([]domain.RankedMaterialFamily, error) {
	tsquery := anyWordQuery(query)
	if tsquery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+familyColumns+`, ts_rank(doc, q)::float8 AS score
		FROM material_families,
		     to_tsquery('english', $1) AS q,
		     LATERAL (SELECT `+familyDocument+`) AS d(doc)
		WHERE doc @@ q
		ORDER BY score DESC, label
		LIMIT $2`,
		tsquery, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanRankedFamilies(rows)
}

// VectorSearch ranks families by cosine similarity to the embedding.
func (r *FamilyRepository) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]domain.RankedMaterialFamily, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+familyColumns+`, (1 - (embedding <=> $1))::float8 AS score
		FROM material_families
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	return scanRankedFamilies(rows)
}

func (r *FamilyRepository) ListAll(ctx context.Context) ([]domain.MaterialFamily, error) {
	rows, err := r.db.Query(ctx, `SELECT `+familyColumns+` FROM material_families ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var families []domain.MaterialFamily
	for rows.Next() {
		var f domain.MaterialFamily
		if err := rows.Scan(&f.Label, &f.Name, &f.CSIPrefix, &f.LeadTimeDays, &f.Synonyms); err != nil {
			return nil, err
		}
		families = append(families, f)
	}
	return families, rows.Err()
}

// scanRankedFamilies assigns 1-indexed ranks in row order.
func scanRankedFamilies(rows pgx.Rows) ([]domain.RankedMaterialFamily, error) {
	defer rows.Close()

	var out []domain.RankedMaterialFamily
	for rows.Next() {
		var f domain.RankedMaterialFamily
		if err := rows.Scan(&f.Label, &f.Name, &f.CSIPrefix, &f.LeadTimeDays, &f.Synonyms, &f.Score); err != nil {
			return nil, err
		}
		f.Rank = len(out) + 1
		out = append(out, f)
	}
	return out, rows.Err()
}

// anyWordQuery builds an OR tsquery from the words of text. Only letters and
// digits survive, so the result is always valid tsquery syntax.
func anyWordQuery(text string) string {
	words := lexemePattern.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(words))
	var terms []string
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return strings.Join(terms, " | ")
}
