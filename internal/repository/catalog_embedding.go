package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

// CatalogEmbeddingRepository finds and fills missing catalog embeddings.
type CatalogEmbeddingRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogEmbeddingRepository(pool *pgxpool.Pool) *CatalogEmbeddingRepository {
	return &CatalogEmbeddingRepository{pool: pool}
}

func (r *CatalogEmbeddingRepository) PendingEmbeddings(ctx context.Context, kind domain.EmbeddingTargetKind, limit int, exclude []string) ([]domain.EmbeddingTarget, error) {
	if exclude == nil {
		exclude = []string{}
	}

	var query string
	switch kind {
	case domain.EmbeddingTargetFamily:
		query = `
			SELECT label, concat_ws(' ', name, replace(label, '_', ' '), array_to_string(synonyms, ' '), description)
			FROM material_families
			WHERE embedding IS NULL AND NOT (label = ANY($2))
			ORDER BY label
			LIMIT $1`
	case domain.EmbeddingTargetProduct:
		query = `
			SELECT p.id::text, concat_ws(' ', p.vendor, p.model, f.name, p.csi_code, p.description)
			FROM catalog_products p
			LEFT JOIN material_families f ON f.label = p.family_label
			WHERE p.active AND p.embedding IS NULL AND NOT (p.id::text = ANY($2))
			ORDER BY p.created_at
			LIMIT $1`
	default:
		return nil, fmt.Errorf("unknown embedding target kind %q", kind)
	}

	rows, err := r.pool.Query(ctx, query, limit, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []domain.EmbeddingTarget
	for rows.Next() {
		t := domain.EmbeddingTarget{Kind: kind}
		if err := rows.Scan(&t.ID, &t.Text); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// SaveEmbeddings writes all vectors in a single transaction.
func (r *CatalogEmbeddingRepository) SaveEmbeddings(ctx context.Context, kind domain.EmbeddingTargetKind, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("got %d ids and %d vectors", len(ids), len(vectors))
	}

	var stmt string
	switch kind {
	case domain.EmbeddingTargetFamily:
		stmt = `UPDATE material_families SET embedding = $1, updated_at = now() WHERE label = $2`
	case domain.EmbeddingTargetProduct:
		stmt = `UPDATE catalog_products SET embedding = $1, updated_at = now() WHERE id::text = $2`
	default:
		return fmt.Errorf("unknown embedding target kind %q", kind)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for i, id := range ids {
			if _, err := tx.Exec(ctx, stmt, pgvector.NewVector(vectors[i]), id); err != nil {
				return fmt.Errorf("update %s %s: %w", kind, id, err)
			}
		}
		return nil
	})
}
