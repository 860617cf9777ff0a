package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI defaults.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// OpenAI is a Provider backed by the chat completions endpoint.
//
// Thread-safety: OpenAI is immutable after construction and safe for
// concurrent use.
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	httpc   *http.Client
	client  *openai.Client
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*OpenAI)

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(u string) OpenAIOption {
	return func(o *OpenAI) {
		o.baseURL = strings.TrimRight(u, "/")
	}
}

// WithModel sets the model name.
func WithModel(m string) OpenAIOption {
	return func(o *OpenAI) {
		o.model = m
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(o *OpenAI) {
		o.httpc = c
	}
}

// NewOpenAI returns a provider using apiKey.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = o.baseURL
	cfg.HTTPClient = o.httpc
	o.client = openai.NewClientWithConfig(cfg)
	return o
}

func (o *OpenAI) Model() string {
	return o.model
}

// Complete sends one chat completion and returns the first choice's content.
// Calls fail fast: there is no retry. API failures wrap *openai.APIError.
func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	if o.apiKey == "" {
		return "", errors.New("openai: missing api key")
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.8,
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
