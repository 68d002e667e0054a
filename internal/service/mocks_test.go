package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

// MockFamilyRepository is a mock implementation of FamilyRepository
type MockFamilyRepository struct {
	mock.Mock
}

func (m *MockFamilyRepository) FindByKeywords(ctx context.Context, terms []string, limit int) ([]domain.RankedMaterialFamily, error) {
	args := m.Called(ctx, terms, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RankedMaterialFamily), args.Error(1)
}

func (m *MockFamilyRepository) FullTextSearch(ctx context.Context, query string, limit int) ([]domain.RankedMaterialFamily, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RankedMaterialFamily), args.Error(1)
}

func (m *MockFamilyRepository) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]domain.RankedMaterialFamily, error) {
	args := m.Called(ctx, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RankedMaterialFamily), args.Error(1)
}

func (m *MockFamilyRepository) ListAll(ctx context.Context) ([]domain.MaterialFamily, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MaterialFamily), args.Error(1)
}

// MockProductRepository is a mock implementation of ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindProducts(ctx context.Context, filter ProductFilter) ([]domain.CatalogProduct, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CatalogProduct), args.Error(1)
}

// MockSemanticProductRepository is a mock implementation of SemanticProductRepository
type MockSemanticProductRepository struct {
	mock.Mock
}

func (m *MockSemanticProductRepository) SearchSimilar(ctx context.Context, embedding []float32, filter SemanticFilter) ([]domain.SemanticProductMatch, error) {
	args := m.Called(ctx, embedding, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SemanticProductMatch), args.Error(1)
}

// MockEnrichmentRepository is a mock implementation of EnrichmentRepository
type MockEnrichmentRepository struct {
	mock.Mock
}

func (m *MockEnrichmentRepository) GetEnrichments(ctx context.Context, productIDs []string) ([]domain.ProductEnrichment, error) {
	args := m.Called(ctx, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProductEnrichment), args.Error(1)
}

// MockEmbedder is a mock implementation of Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockEmbedder) Dimension() int {
	args := m.Called()
	return args.Int(0)
}

// MockQueryInterpreter is a mock implementation of QueryInterpreter
type MockQueryInterpreter struct {
	mock.Mock
}

func (m *MockQueryInterpreter) Parse(ctx context.Context, text string) (*domain.ParsedBomQuery, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ParsedBomQuery), args.Error(1)
}

func (m *MockQueryInterpreter) IsAvailable() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockSearchLogRepository is a mock implementation of SearchLogRepository
type MockSearchLogRepository struct {
	mock.Mock
}

func (m *MockSearchLogRepository) CreateSearchLog(ctx context.Context, entry domain.SearchLog) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

type strategyFunc func(ctx context.Context, bomText string, item domain.NormalizedItem) (*domain.SearchStrategyResult, error)

func (f strategyFunc) Execute(ctx context.Context, bomText string, item domain.NormalizedItem) (*domain.SearchStrategyResult, error) {
	return f(ctx, bomText, item)
}

func staticStrategy(res *domain.SearchStrategyResult, err error) strategyFunc {
	return func(context.Context, string, domain.NormalizedItem) (*domain.SearchStrategyResult, error) {
		return res, err
	}
}

func family(label, csi string, rank int) domain.RankedMaterialFamily {
	return domain.RankedMaterialFamily{
		MaterialFamily: domain.MaterialFamily{Label: label, Name: label, CSIPrefix: csi},
		Rank:           rank,
	}
}

func match(vendor, model string) domain.ProductMatch {
	return domain.ProductMatch{ProductID: vendor + "-" + model, Vendor: vendor, Model: model}
}
