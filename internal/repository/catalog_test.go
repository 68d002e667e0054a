//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/service"
	"github.com/cloo-solutions/bomsearch/internal/testutil"
)

const testDimensions = 1536

func axis(i int) []float32 {
	v := make([]float32, testDimensions)
	v[i] = 1
	return v
}

func blend(i, j int, wi, wj float32) []float32 {
	v := make([]float32, testDimensions)
	v[i], v[j] = wi, wj
	return v
}

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pc)
	t.Cleanup(pool.Close)
	return pool
}

func insertFamily(ctx context.Context, t *testing.T, pool *pgxpool.Pool, label, name, csi, description string, synonyms []string, embedding []float32) {
	if synonyms == nil {
		synonyms = []string{}
	}
	var vec any
	if embedding != nil {
		vec = pgvector.NewVector(embedding)
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO material_families (label, name, csi_prefix, synonyms, description, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		label, name, nullableString(csi), synonyms, description, vec)
	require.NoError(t, err)
}

func insertProduct(ctx context.Context, t *testing.T, pool *pgxpool.Pool, vendor, model, family, csi, description string, specs string, embedding []float32, active bool) string {
	id := uuid.NewString()
	var vec any
	if embedding != nil {
		vec = pgvector.NewVector(embedding)
	}
	var payload any
	if specs != "" {
		payload = specs
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO catalog_products (id, vendor, model, family_label, csi_code, description, spec_payload, active, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, vendor, model, nullableString(family), nullableString(csi), description, payload, active, vec)
	require.NoError(t, err)
	return id
}

func seedCatalog(ctx context.Context, t *testing.T, pool *pgxpool.Pool) map[string]string {
	insertFamily(ctx, t, pool, "concrete_block", "Concrete Masonry Unit", "04 22 00",
		"hollow load bearing concrete block", []string{"cmu", "cinder block"}, axis(0))
	insertFamily(ctx, t, pool, "window", "Windows", "08 50 00",
		"aluminum and vinyl framed windows", []string{"glazing"}, axis(1))
	insertFamily(ctx, t, pool, "door", "Doors", "08 10 00",
		"hollow metal and wood doors", nil, nil)

	return map[string]string{
		"cmu8":   insertProduct(ctx, t, pool, "Blockco", "CMU-8", "concrete_block", "04 22 00", `8" normal weight block`, `{"width_in": 7.625}`, blend(0, 2, 0.9, 0.1), true),
		"cmu12":  insertProduct(ctx, t, pool, "Blockco", "CMU-12", "concrete_block", "04 22 00", `12" normal weight block`, `{"width_in": 11.625}`, blend(0, 2, 0.8, 0.2), true),
		"legacy": insertProduct(ctx, t, pool, "Blockco", "CMU-OLD", "concrete_block", "04 22 10", `8" discontinued block`, "", axis(0), false),
		"win":    insertProduct(ctx, t, pool, "Acme", "W-100", "window", "08 51 13", "aluminum casement window", "", axis(1), true),
		"nofam":  insertProduct(ctx, t, pool, "Misc", "Anchor 8in", "", "", "masonry anchor", "", nil, true),
	}
}

func TestFamilyRepository(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	seedCatalog(ctx, t, pool)
	repo := NewFamilyRepository(pool)

	t.Run("keywords score by matched terms", func(t *testing.T) {
		got, err := repo.FindByKeywords(ctx, []string{"cmu", "block", "glazing"}, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "concrete_block", got[0].Label)
		assert.Equal(t, 1, got[0].Rank)
		assert.Equal(t, 2.0, got[0].Score)
		assert.Equal(t, "window", got[1].Label)
		assert.Equal(t, 2, got[1].Rank)
	})

	t.Run("keywords escape like wildcards", func(t *testing.T) {
		got, err := repo.FindByKeywords(ctx, []string{"%"}, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("full text matches any word", func(t *testing.T) {
		got, err := repo.FullTextSearch(ctx, "8in aluminum window!", 10)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, "window", got[0].Label)
	})

	t.Run("full text with no words", func(t *testing.T) {
		got, err := repo.FullTextSearch(ctx, "  !! ", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("vector search skips missing embeddings", func(t *testing.T) {
		got, err := repo.VectorSearch(ctx, axis(1), 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "window", got[0].Label)
		assert.InDelta(t, 1.0, got[0].Score, 1e-6)
		assert.Equal(t, "08 50 00", got[0].CSIPrefix)
	})

	t.Run("list all", func(t *testing.T) {
		got, err := repo.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "concrete_block", got[0].Label)
		assert.Equal(t, []string{"cmu", "cinder block"}, got[0].Synonyms)
		assert.Equal(t, "door", got[1].Label)
		assert.Equal(t, "08 10 00", got[1].CSIPrefix)
	})
}

func TestProductRepository_FindProducts(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	ids := seedCatalog(ctx, t, pool)
	repo := NewProductRepository(pool)

	t.Run("family filter ranks size matches first", func(t *testing.T) {
		got, err := repo.FindProducts(ctx, service.ProductFilter{
			FamilyLabel:  "concrete_block",
			SizePatterns: []string{`%12"%`},
			Limit:        10,
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, ids["cmu12"], got[0].ID)
		assert.Equal(t, ids["cmu8"], got[1].ID)
	})

	t.Run("csi prefix", func(t *testing.T) {
		got, err := repo.FindProducts(ctx, service.ProductFilter{CSIPrefix: "08 5", Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "W-100", got[0].Model)
		assert.Equal(t, "window", got[0].FamilyLabel)
	})

	t.Run("keyword only requires a hit", func(t *testing.T) {
		got, err := repo.FindProducts(ctx, service.ProductFilter{Keywords: []string{"anchor"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, ids["nofam"], got[0].ID)
		assert.Empty(t, got[0].FamilyLabel)
	})

	t.Run("inactive products are excluded", func(t *testing.T) {
		got, err := repo.FindProducts(ctx, service.ProductFilter{Keywords: []string{"discontinued"}})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestSemanticProductRepository_SearchSimilar(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	ids := seedCatalog(ctx, t, pool)
	repo := NewSemanticProductRepository(pool)

	got, err := repo.SearchSimilar(ctx, axis(0), service.SemanticFilter{MinSimilarity: 0.5, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids["cmu8"], got[0].ProductID)
	assert.Equal(t, ids["cmu12"], got[1].ProductID)
	assert.Greater(t, got[0].Similarity, got[1].Similarity)
	assert.JSONEq(t, `{"width_in": 7.625}`, string(got[0].SpecPayload))
	assert.Nil(t, got[0].FinalScore)

	got, err = repo.SearchSimilar(ctx, axis(0), service.SemanticFilter{MinSimilarity: 0.0, Limit: 10, FamilyLabel: "window"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ids["win"], got[0].ProductID)
	assert.Nil(t, got[0].SpecPayload)
}

func TestEnrichmentRepository_GetEnrichments(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	ids := seedCatalog(ctx, t, pool)

	for _, schema := range []string{"vendor_acme", "vendor_blockco", "vendor_Bad-Name"} {
		require.NoError(t, testutil.CreateVendorSchema(ctx, pool, schema))
	}
	_, err := pool.Exec(ctx, `CREATE SCHEMA vendor_broken`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`INSERT INTO vendor_blockco.product_details (product_id, usage, features, technical_specs)
		 VALUES ($1, 'load bearing walls', '{"fire rated"}', '{"width_in": 7.625}')`, ids["cmu8"])
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`INSERT INTO vendor_acme.product_details (product_id, performance_data) VALUES ($1, '{"u_factor": 0.27}')`, ids["win"])
	require.NoError(t, err)

	repo := NewEnrichmentRepository(pool, nil)

	schemas, err := repo.VendorSchemas(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor_acme", "vendor_blockco", "vendor_broken"}, schemas)

	got, err := repo.GetEnrichments(ctx, []string{ids["cmu8"], ids["win"], ids["cmu12"]})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "vendor_acme", got[0].VendorSchema)
	assert.Equal(t, ids["win"], got[0].ProductID)
	assert.JSONEq(t, `{"u_factor": 0.27}`, string(got[0].PerformanceData))
	assert.Nil(t, got[0].TechnicalSpecs)

	assert.Equal(t, "vendor_blockco", got[1].VendorSchema)
	assert.Equal(t, "load bearing walls", got[1].Usage)
	assert.Equal(t, []string{"fire rated"}, got[1].Features)
}

func TestValidateVendorSchema(t *testing.T) {
	assert.NoError(t, ValidateVendorSchema("vendor_acme_2"))
	for _, name := range []string{"vendor_", "vendor_Acme", `vendor_a"; DROP TABLE x; --`, "public"} {
		assert.ErrorIs(t, ValidateVendorSchema(name), domain.ErrInvalidPartitionName, name)
	}
}

func TestSearchLogRepository_Create(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	repo := NewSearchLogRepository(pool)

	id, err := repo.CreateSearchLog(ctx, domain.SearchLog{
		BatchID:      "batch-1",
		Source:       "api",
		Mode:         domain.SearchModeHybrid,
		ItemCount:    2,
		MatchCount:   5,
		WarningCount: 1,
		Duration:     1500 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	var traceID *string
	var durationMs int
	require.NoError(t, pool.QueryRow(ctx, `SELECT trace_id, duration_ms FROM search_logs WHERE id = $1`, id).Scan(&traceID, &durationMs))
	assert.Nil(t, traceID)
	assert.Equal(t, 1500, durationMs)
}

func TestCatalogEmbeddingRepository(t *testing.T) {
	ctx := context.Background()
	pool := setupPool(ctx, t)
	ids := seedCatalog(ctx, t, pool)
	repo := NewCatalogEmbeddingRepository(pool)

	families, err := repo.PendingEmbeddings(ctx, domain.EmbeddingTargetFamily, 10, nil)
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "door", families[0].ID)
	assert.Contains(t, families[0].Text, "hollow metal")

	products, err := repo.PendingEmbeddings(ctx, domain.EmbeddingTargetProduct, 10, nil)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, ids["nofam"], products[0].ID)

	excluded, err := repo.PendingEmbeddings(ctx, domain.EmbeddingTargetProduct, 10, []string{ids["nofam"]})
	require.NoError(t, err)
	assert.Empty(t, excluded)

	require.NoError(t, repo.SaveEmbeddings(ctx, domain.EmbeddingTargetFamily, []string{"door"}, [][]float32{axis(3)}))
	require.NoError(t, repo.SaveEmbeddings(ctx, domain.EmbeddingTargetProduct, []string{ids["nofam"]}, [][]float32{axis(4)}))

	families, err = repo.PendingEmbeddings(ctx, domain.EmbeddingTargetFamily, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, families)

	hits, err := NewFamilyRepository(pool).VectorSearch(ctx, axis(3), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "door", hits[0].Label)

	err = repo.SaveEmbeddings(ctx, domain.EmbeddingTargetProduct, []string{"a"}, nil)
	assert.Error(t, err)
}
