package localai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Chat sends interpreter prompts to a local model in JSON mode.
type Chat struct {
	model llms.Model
}

// NewChat connects to the chat model described by cfg.
func NewChat(cfg Config) (*Chat, error) {
	if cfg.BaseURL == "" || cfg.ChatModel == "" {
		return nil, fmt.Errorf("local chat base URL and model are required")
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.token()),
		openai.WithModel(cfg.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create local chat client: %w", err)
	}
	return &Chat{model: client}, nil
}

// NewChatWith wraps an existing langchaingo model.
func NewChatWith(model llms.Model) *Chat {
	return &Chat{model: model}
}

// Complete returns the model's reply to one system+user exchange.
func (c *Chat) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}, llms.WithTemperature(0), llms.WithJSONMode())
	if err != nil {
		return "", fmt.Errorf("local chat request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Content, nil
}
