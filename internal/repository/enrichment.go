package repository

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

const maxConcurrentPartitions = 4

var vendorSchemaPattern = regexp.MustCompile(`^vendor_[a-z0-9_]{1,48}$`)

// ValidateVendorSchema rejects schema names outside the vendor allow-list.
func ValidateVendorSchema(name string) error {
	if !vendorSchemaPattern.MatchString(name) {
		return domain.Wrap(domain.ErrInvalidPartitionName, fmt.Errorf("schema %q", name))
	}
	return nil
}

// EnrichmentRepository reads product details from the per-vendor schemas.
// Each schema holds a product_details table.
type EnrichmentRepository struct {
	db     dbtx
	logger *zap.Logger
}

func NewEnrichmentRepository(pool *pgxpool.Pool, logger *zap.Logger) *EnrichmentRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrichmentRepository{db: pool, logger: logger}
}

// VendorSchemas lists the vendor partitions that pass validation.
func (r *EnrichmentRepository) VendorSchemas(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT schema_name FROM information_schema.schemata
		WHERE schema_name LIKE 'vendor\_%'
		ORDER BY schema_name`)
	if err != nil {
		return nil, fmt.Errorf("list vendor schemas: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list vendor schemas: %w", err)
	}

	valid := names[:0]
	for _, name := range names {
		if err := ValidateVendorSchema(name); err != nil {
			r.logger.Warn("skipping vendor schema", zap.String("schema", name), zap.Error(err))
			continue
		}
		valid = append(valid, name)
	}
	return valid, nil
}

// GetEnrichments queries every vendor partition for the given products.
// A failing partition is logged and skipped. Rows come back in schema name
// order.
func (r *EnrichmentRepository) GetEnrichments(ctx context.Context, productIDs []string) ([]domain.ProductEnrichment, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	schemas, err := r.VendorSchemas(ctx)
	if err != nil {
		return nil, err
	}

	perSchema := make([][]domain.ProductEnrichment, len(schemas))
	var g errgroup.Group
	g.SetLimit(maxConcurrentPartitions)
	for i, schema := range schemas {
		g.Go(func() error {
			rows, err := r.fromSchema(ctx, schema, productIDs)
			if err != nil {
				r.logger.Warn("vendor partition unavailable", zap.String("schema", schema), zap.Error(err))
				return nil
			}
			perSchema[i] = rows
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []domain.ProductEnrichment
	for _, rows := range perSchema {
		out = append(out, rows...)
	}
	return out, nil
}

func (r *EnrichmentRepository) fromSchema(ctx context.Context, schema string, productIDs []string) ([]domain.ProductEnrichment, error) {
	table := pgx.Identifier{schema, "product_details"}.Sanitize()
	rows, err := r.db.Query(ctx, `
		SELECT product_id::text, coalesce(usage, ''), coalesce(features, '{}'), technical_specs, performance_data
		FROM `+table+`
		WHERE product_id::text = ANY($1)`,
		productIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProductEnrichment
	for rows.Next() {
		e := domain.ProductEnrichment{VendorSchema: schema}
		var specs, performance []byte
		if err := rows.Scan(&e.ProductID, &e.Usage, &e.Features, &specs, &performance); err != nil {
			return nil, err
		}
		if len(specs) > 0 {
			e.TechnicalSpecs = specs
		}
		if len(performance) > 0 {
			e.PerformanceData = performance
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
