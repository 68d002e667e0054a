package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/domain"
)

const (
	DefaultChatModel          = openai.GPT4oMini
	DefaultInterpreterTimeout = 15 * time.Second
)

const interpreterPrompt = `You interpret construction bill-of-materials line items.
Reply with a single JSON object and nothing else:
{
  "material_family": string or null,   // short snake_case family label, e.g. "cmu", "window", "gypsum_board"
  "technical_specs": object,           // measurable specs; put units in the key (width_in, height_mm) or in the value ("8 in")
  "attributes": object,                // non-measurable attributes such as color or finish
  "search_text": string,               // concise product description for semantic search
  "confidence": number                 // 0..1
}
Performance ratings (u_factor, shgc, stc, r_value, fire_rating) go in technical_specs without units.`

// ChatAPI sends one system+user exchange and returns the assistant reply.
type ChatAPI interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatAdapter implements ChatAPI over the go-openai client in JSON mode.
type ChatAdapter struct {
	client *openai.Client
	model  string
}

// NewChatAdapter creates a ChatAdapter. An empty model selects DefaultChatModel.
func NewChatAdapter(client *openai.Client, model string) *ChatAdapter {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatAdapter{client: client, model: model}
}

// Complete calls the chat completions endpoint.
func (a *ChatAdapter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature:    0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// InterpreterConfig tunes the interpreter.
type InterpreterConfig struct {
	Timeout time.Duration
}

// Interpreter turns a BOM line into a structured query with an LLM.
type Interpreter struct {
	chat    ChatAPI
	timeout time.Duration
	logger  *zap.Logger
}

// NewInterpreter creates an Interpreter. A nil chat makes it unavailable.
func NewInterpreter(chat ChatAPI, cfg InterpreterConfig, logger *zap.Logger) *Interpreter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultInterpreterTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{chat: chat, timeout: cfg.Timeout, logger: logger}
}

// IsAvailable reports whether a chat backend is configured.
func (i *Interpreter) IsAvailable() bool {
	return i != nil && i.chat != nil
}

// Parse interprets text. Provider failures and malformed output produce a
// failed result carrying the original text; only cancellation of ctx is
// returned as an error.
func (i *Interpreter) Parse(ctx context.Context, text string) (*domain.ParsedBomQuery, error) {
	if strings.TrimSpace(text) == "" {
		return domain.FailedParse(text, "empty input"), nil
	}
	if !i.IsAvailable() {
		return domain.FailedParse(text, "interpreter not configured"), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	reply, err := i.chat.Complete(callCtx, interpreterPrompt, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		i.logger.Warn("Query interpreter call failed", zap.Error(err))
		return domain.FailedParse(text, err.Error()), nil
	}

	parsed, err := decodeReply(reply)
	if err != nil {
		i.logger.Warn("Query interpreter returned malformed output",
			zap.Error(err),
			zap.Int("reply_len", len(reply)),
		)
		return domain.FailedParse(text, err.Error()), nil
	}
	return parsed, nil
}

type interpreterReply struct {
	MaterialFamily *string        `json:"material_family"`
	TechnicalSpecs map[string]any `json:"technical_specs"`
	Attributes     map[string]any `json:"attributes"`
	SearchText     string         `json:"search_text"`
	Confidence     any            `json:"confidence"`
}

var (
	fencePattern         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

func decodeReply(reply string) (*domain.ParsedBomQuery, error) {
	body := extractJSON(reply)
	if body == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var r interpreterReply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		repaired := trailingCommaPattern.ReplaceAllString(body, "$1")
		if err2 := json.Unmarshal([]byte(repaired), &r); err2 != nil {
			return nil, fmt.Errorf("decode reply: %w", err)
		}
	}

	q := &domain.ParsedBomQuery{
		TechnicalSpecs: stringify(r.TechnicalSpecs),
		Attributes:     stringify(r.Attributes),
		SearchText:     strings.TrimSpace(r.SearchText),
		Confidence:     confidence(r.Confidence),
		Success:        true,
	}
	if r.MaterialFamily != nil {
		family := strings.TrimSpace(*r.MaterialFamily)
		if !strings.EqualFold(family, "null") && !strings.EqualFold(family, "unknown") {
			q.MaterialFamily = family
		}
	}
	return q, nil
}

func extractJSON(reply string) string {
	reply = strings.TrimSpace(reply)
	if m := fencePattern.FindStringSubmatch(reply); m != nil {
		reply = m[1]
	}
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return ""
	}
	return reply[start : end+1]
}

func stringify(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		key := strings.TrimSpace(k)
		if key == "" || v == nil {
			continue
		}
		if s := valueString(v); s != "" {
			out[key] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func valueString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := valueString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := valueString(val[k]); s != "" {
				parts = append(parts, k+"="+s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func confidence(v any) float64 {
	var c float64
	switch val := v.(type) {
	case float64:
		c = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		c = parsed
	default:
		return 0
	}
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(0, math.Min(1, c))
}
