package localai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeLangchainEmbedder struct {
	dim   int
	short bool
	err   error
}

func (f *fakeLangchainEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, f.dim)
		out[i][0] = float32(i)
	}
	return out, nil
}

func (f *fakeLangchainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func TestEmbedder_GenerateEmbeddings(t *testing.T) {
	e := NewEmbedderWith(&fakeLangchainEmbedder{dim: 3}, "nomic-embed-text", 3, nil)

	vecs, err := e.GenerateEmbeddings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(1), vecs[1][0])
	assert.Equal(t, 3, e.Dimension())
	assert.Equal(t, "nomic-embed-text", e.Model())

	vec, err := e.GenerateEmbedding(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestEmbedder_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewEmbedderWith(&fakeLangchainEmbedder{dim: 4}, "m", 3, nil).GenerateEmbedding(ctx, "a")
	assert.ErrorIs(t, err, ErrWrongDimensions)

	_, err = NewEmbedderWith(&fakeLangchainEmbedder{dim: 3, short: true}, "m", 3, nil).GenerateEmbeddings(ctx, []string{"a", "b"})
	assert.Error(t, err)

	_, err = NewEmbedderWith(&fakeLangchainEmbedder{err: errors.New("connection refused")}, "m", 3, nil).GenerateEmbedding(ctx, "a")
	assert.ErrorContains(t, err, "connection refused")
}

func TestNewEmbedder_Validation(t *testing.T) {
	_, err := NewEmbedder(Config{Dimensions: 3}, nil)
	assert.Error(t, err)

	_, err = NewEmbedder(Config{BaseURL: "http://localhost:11434/v1"}, nil)
	assert.Error(t, err)
}

type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestChat_Complete(t *testing.T) {
	model := &fakeModel{reply: `{"search_text":"brick"}`}
	chat := NewChatWith(model)

	reply, err := chat.Complete(context.Background(), "system prompt", "face brick")
	require.NoError(t, err)
	assert.Equal(t, `{"search_text":"brick"}`, reply)
	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)

	_, err = NewChatWith(&fakeModel{err: errors.New("model not loaded")}).Complete(context.Background(), "s", "u")
	assert.ErrorContains(t, err, "model not loaded")
}
