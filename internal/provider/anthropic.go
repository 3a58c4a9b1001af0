package provider

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentmesh/core/pkg/types"
)

// AnthropicConfig configures the Anthropic adapter.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// AnthropicProvider adapts Anthropic's Messages API to the Provider
// contract. Grounded on the teacher's providers.AnthropicProvider
// client construction (anthropic.NewClient with option.WithAPIKey/
// WithBaseURL); simplified here to a single non-streaming Generate call
// since the chain contract (spec §4.4) is request/response, not
// streaming.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	health       healthState
}

// NewAnthropicProvider constructs an adapter. DefaultModel falls back
// to a current Claude model if unset.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: model,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (types.ProviderResult, error) {
	start := time.Now()
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.defaultModel),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if len(opts.Stop) > 0 {
		params.StopSequences = opts.Stop
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		p.health.recordFailure()
		return types.ProviderResult{}, classifyAnthropicError(err)
	}
	p.health.recordSuccess()

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return types.ProviderResult{
		Text:     text,
		Provider: p.Name(),
		Model:    string(msg.Model),
		Usage: types.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		LatencyMs:    time.Since(start).Milliseconds(),
		FinishReason: string(msg.StopReason),
	}, nil
}

func (p *AnthropicProvider) ThermalStatus() types.ThermalStatus { return p.health.thermal() }
func (p *AnthropicProvider) MemoryStatus() types.MemoryStatus   { return p.health.memory() }

func (p *AnthropicProvider) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{SupportsTools: true, SupportsVision: true, MaxContext: 200000}
}

// classifyAnthropicError maps the SDK's error into the shared
// CoreError taxonomy. The SDK surfaces an *anthropic.Error carrying an
// HTTP status code on API failures; anything else (network, context
// cancellation) is classified as provider_unavailable.
func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if asAPIError(err, &apiErr) {
		return types.NewCoreError(classifyStatus(apiErr.StatusCode), "anthropic request failed", err)
	}
	return types.NewCoreError(types.ErrProviderUnavailable, "anthropic request failed", err)
}
