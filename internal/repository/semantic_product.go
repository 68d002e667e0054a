package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/service"
)

// SemanticProductRepository implements vector search over product embeddings.
type SemanticProductRepository struct {
	db dbtx
}

func NewSemanticProductRepository(pool *pgxpool.Pool) *SemanticProductRepository {
	return &SemanticProductRepository{db: pool}
}

func (r *SemanticProductRepository) SearchSimilar(ctx context.Context, embedding []float32, filter service.SemanticFilter) ([]domain.SemanticProductMatch, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultProductLimit
	}

	query := `
		SELECT id, vendor, model, family_label, csi_code, spec_payload,
		       (1 - (embedding <=> $1))::float8 AS similarity
		FROM catalog_products
		WHERE active AND embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $2`
	args := []any{pgvector.NewVector(embedding), filter.MinSimilarity}

	if filter.FamilyLabel != "" {
		args = append(args, filter.FamilyLabel)
		query += fmt.Sprintf(" AND family_label = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.SemanticProductMatch
	for rows.Next() {
		var m domain.SemanticProductMatch
		var family, csi *string
		var payload []byte
		if err := rows.Scan(&m.ProductID, &m.Vendor, &m.Model, &family, &csi, &payload, &m.Similarity); err != nil {
			return nil, err
		}
		m.FamilyLabel = deref(family)
		m.CSICode = deref(csi)
		if len(payload) > 0 {
			m.SpecPayload = payload
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
