package service

import (
	"context"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

// FamilyRepository looks up material families.
type FamilyRepository interface {
	FindByKeywords(ctx context.Context, terms []string, limit int) ([]domain.RankedMaterialFamily, error)
	FullTextSearch(ctx context.Context, query string, limit int) ([]domain.RankedMaterialFamily, error)
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]domain.RankedMaterialFamily, error)
	ListAll(ctx context.Context) ([]domain.MaterialFamily, error)
}

// ProductFilter narrows a catalog product lookup. Empty fields are ignored.
type ProductFilter struct {
	FamilyLabel  string
	CSIPrefix    string
	SizePatterns []string
	Keywords     []string
	Limit        int
}

// ProductRepository looks up active catalog products.
type ProductRepository interface {
	FindProducts(ctx context.Context, filter ProductFilter) ([]domain.CatalogProduct, error)
}

// SemanticFilter bounds a vector search over product embeddings.
type SemanticFilter struct {
	MinSimilarity float64
	Limit         int
	FamilyLabel   string
}

// SemanticProductRepository runs vector similarity search over products.
type SemanticProductRepository interface {
	SearchSimilar(ctx context.Context, embedding []float32, filter SemanticFilter) ([]domain.SemanticProductMatch, error)
}

// EnrichmentRepository loads vendor-specific product details.
type EnrichmentRepository interface {
	GetEnrichments(ctx context.Context, productIDs []string) ([]domain.ProductEnrichment, error)
}

// Embedder generates vector embeddings for text.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// QueryInterpreter turns free text into a structured query. Malformed
// provider output yields a failed result, not an error.
type QueryInterpreter interface {
	Parse(ctx context.Context, text string) (*domain.ParsedBomQuery, error)
	IsAvailable() bool
}

// Normalizer produces the keyword-level view of a line item.
type Normalizer interface {
	Normalize(text string) domain.NormalizedItem
}

// SearchStrategy executes one retrieval approach for a line item.
type SearchStrategy interface {
	Execute(ctx context.Context, bomText string, item domain.NormalizedItem) (*domain.SearchStrategyResult, error)
}
