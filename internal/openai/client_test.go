package openai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/bomsearch/internal/embedding"
)

// MockEmbeddingAPI is a mock for the OpenAI embeddings endpoint
type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func vector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.001
	}
	return v
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := NewClientWithAPI(mockAPI, "text-embedding-3-small", 1536)

	ctx := context.Background()
	text := "8 inch concrete masonry unit"
	expected := vector(1536, 0)

	mockAPI.On("CreateEmbeddings", ctx, []string{text}).Return([][]float32{expected}, nil)

	vec, err := client.GenerateEmbedding(ctx, text)

	require.NoError(t, err)
	assert.Equal(t, expected, vec)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbeddings_Batch(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := NewClientWithAPI(mockAPI, "m", 4)

	ctx := context.Background()
	texts := []string{"brick", "block"}
	expected := [][]float32{vector(4, 1), vector(4, 2)}
	mockAPI.On("CreateEmbeddings", ctx, texts).Return(expected, nil)

	vecs, err := client.GenerateEmbeddings(ctx, texts)

	require.NoError(t, err)
	assert.Equal(t, expected, vecs)
	assert.Equal(t, 4, client.Dimension())
	assert.Equal(t, "m", client.Model())
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	vec, err := client.GenerateEmbedding(context.Background(), "")

	assert.Nil(t, vec)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbeddings_Empty(t *testing.T) {
	client := NewClient("")
	vecs, err := client.GenerateEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := NewClientWithAPI(mockAPI, "m", 1536)

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, []string{"Test text"}).Return(nil, errors.New("boom"))

	vec, err := client.GenerateEmbedding(ctx, "Test text")

	assert.Nil(t, vec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create embedding")
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockEmbeddingAPI)
	client := NewClientWithAPI(mockAPI, "m", 1536)

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, []string{"Test text"}).Return([][]float32{vector(512, 0)}, nil)

	vec, err := client.GenerateEmbedding(ctx, "Test text")

	assert.Nil(t, vec)
	assert.ErrorIs(t, err, ErrWrongDimensions)
}

func TestClassifyError_RateLimit(t *testing.T) {
	err := classifyError(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"})
	assert.ErrorIs(t, err, embedding.ErrRateLimited)

	err = classifyError(&openai.RequestError{HTTPStatusCode: http.StatusTooManyRequests, Err: errors.New("429")})
	assert.ErrorIs(t, err, embedding.ErrRateLimited)

	err = classifyError(&openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"})
	assert.NotErrorIs(t, err, embedding.ErrRateLimited)
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key")

	assert.NotNil(t, client.api)
	assert.Equal(t, DefaultEmbeddingDimensions, client.Dimension())
	assert.Equal(t, string(DefaultEmbeddingModel), client.Model())
}

func TestNewClientFromEnv_NoAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	client, err := NewClientFromEnv()

	assert.Nil(t, client)
	assert.Equal(t, ErrNoAPIKey, err)
}

func TestNewClientFromEnv_WithAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-api-key")

	client, err := NewClientFromEnv()

	assert.NotNil(t, client)
	assert.NoError(t, err)
}
