// Package openai implements the llm.Provider interface for
// OpenAI-compatible APIs (OpenAI, Azure, gateways, local models).
package openai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"exogram/pkg/llm"
)

// Provider implements llm.Provider over the OpenAI chat completions
// API.
type Provider struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider, *[]option.RequestOption)

// WithModel sets the model used for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider, _ *[]option.RequestOption) {
		p.model = model
	}
}

// WithBaseURL points the provider at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) ProviderOption {
	return func(_ *Provider, reqOpts *[]option.RequestOption) {
		if baseURL != "" {
			*reqOpts = append(*reqOpts, option.WithBaseURL(baseURL))
		}
	}
}

// WithTimeout bounds each request. The caller still owns overall
// deadline policy through ctx.
func WithTimeout(d time.Duration) ProviderOption {
	return func(_ *Provider, reqOpts *[]option.RequestOption) {
		if d > 0 {
			*reqOpts = append(*reqOpts, option.WithRequestTimeout(d))
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ProviderOption {
	return func(p *Provider, _ *[]option.RequestOption) {
		p.temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) ProviderOption {
	return func(p *Provider, _ *[]option.RequestOption) {
		p.maxTokens = n
	}
}

// NewProvider creates a provider. If apiKey is empty the
// OPENAI_API_KEY environment variable is used.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key is required (parameter or OPENAI_API_KEY)")
	}

	p := &Provider{
		model:       "gpt-4o",
		temperature: 0,
		maxTokens:   4096,
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, opt := range opts {
		opt(p, &reqOpts)
	}
	p.client = openai.NewClient(reqOpts...)
	return p, nil
}

// Complete sends messages and returns the assistant's full response.
func (p *Provider) Complete(ctx context.Context, messages []*llm.Message) (*llm.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    convertMessages(messages),
		Temperature: openai.Float(p.temperature),
		MaxTokens:   openai.Int(p.maxTokens),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: completion returned no choices")
	}
	return llm.NewAssistantMessage(resp.Choices[0].Message.Content), nil
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

func convertMessages(messages []*llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
