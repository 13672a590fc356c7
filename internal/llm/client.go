// Package llm is the OpenAI-compatible completion client. It talks to Groq
// by default and implements assistant.Completer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/roach88/guildkeeper/internal/assistant"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1/"

// Rate-limit response headers reported by the provider.
const (
	HeaderRemainingTokens   = "x-ratelimit-remaining-tokens"
	HeaderRemainingRequests = "x-ratelimit-remaining-requests"
)

// ErrNoChoices is returned when the provider answers without a choice.
var ErrNoChoices = errors.New("completion has no choices")

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	// Timeout bounds one request. Zero means 60s.
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// Client wraps the openai-go client.
type Client struct {
	api     openai.Client
	timeout time.Duration
}

// New creates a Client. An empty BaseURL means DefaultBaseURL.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		api:     openai.NewClient(opts...),
		timeout: cfg.Timeout,
	}, nil
}

// Complete implements assistant.Completer.
func (c *Client) Complete(ctx context.Context, req assistant.Request) (assistant.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var raw *http.Response
	resp, err := c.api.Chat.Completions.New(ctx, params(req), option.WithResponseInto(&raw))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return assistant.Completion{}, fmt.Errorf("llm: %s returned %d: %w", req.Model, apiErr.StatusCode, err)
		}
		return assistant.Completion{}, fmt.Errorf("llm: %w", err)
	}
	if len(resp.Choices) == 0 {
		return assistant.Completion{}, ErrNoChoices
	}

	out := assistant.Completion{Text: resp.Choices[0].Message.Content}
	if raw != nil {
		out.RateLimit = assistant.RateLimit{
			RemainingTokens:   raw.Header.Get(HeaderRemainingTokens),
			RemainingRequests: raw.Header.Get(HeaderRemainingRequests),
		}
	}
	return out, nil
}

func params(req assistant.Request) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, t := range req.History {
		switch t.Role {
		case assistant.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		case assistant.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	p := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		p.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return p
}
