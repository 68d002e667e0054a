package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/service"
)

const defaultProductLimit = 10

// ProductRepository implements catalog product lookups.
type ProductRepository struct {
	db dbtx
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: pool}
}

// FindProducts returns active products. A family label or CSI prefix
// restricts the candidate set; size patterns and keywords order it. Without
// either restriction a product must match at least one keyword or size.
func (r *ProductRepository) FindProducts(ctx context.Context, filter service.ProductFilter) ([]domain.CatalogProduct, error) {
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sizeScore, keywordScore := "0", "0"
	if len(filter.SizePatterns) > 0 {
		sizeScore = fmt.Sprintf(`(SELECT count(*) FROM unnest(%s::text[]) AS s(pattern)
			WHERE p.model ILIKE s.pattern OR p.description ILIKE s.pattern)`, arg(filter.SizePatterns))
	}
	if kw := containsPatterns(filter.Keywords); len(kw) > 0 {
		keywordScore = fmt.Sprintf(`(SELECT count(*) FROM unnest(%s::text[]) AS k(pattern)
			WHERE p.vendor ILIKE k.pattern OR p.model ILIKE k.pattern OR p.description ILIKE k.pattern)`, arg(kw))
	}

	var where []string
	switch {
	case filter.FamilyLabel != "" && filter.CSIPrefix != "":
		where = append(where, fmt.Sprintf("(p.family_label = %s OR p.csi_code LIKE %s)",
			arg(filter.FamilyLabel), arg(likeEscaper.Replace(filter.CSIPrefix)+"%")))
	case filter.FamilyLabel != "":
		where = append(where, "p.family_label = "+arg(filter.FamilyLabel))
	case filter.CSIPrefix != "":
		where = append(where, "p.csi_code LIKE "+arg(likeEscaper.Replace(filter.CSIPrefix)+"%"))
	default:
		where = append(where, "size_hits + keyword_hits > 0")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultProductLimit
	}

	query := fmt.Sprintf(`
		SELECT id, vendor, model, family_label, csi_code, description
		FROM (
			SELECT p.*, %s AS size_hits, %s AS keyword_hits
			FROM catalog_products p
			WHERE p.active
		) p
		WHERE %s
		ORDER BY size_hits * 2 + keyword_hits DESC, vendor, model
		LIMIT %s`,
		sizeScore, keywordScore, strings.Join(where, " AND "), arg(limit))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.CatalogProduct
	for rows.Next() {
		var p domain.CatalogProduct
		var family, csi *string
		if err := rows.Scan(&p.ID, &p.Vendor, &p.Model, &family, &csi, &p.Description); err != nil {
			return nil, err
		}
		p.FamilyLabel = deref(family)
		p.CSICode = deref(csi)
		products = append(products, p)
	}
	return products, rows.Err()
}
