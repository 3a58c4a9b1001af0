package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/agentmesh/core/pkg/types"
)

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// OpenAIProvider adapts the Chat Completions API to the Provider
// contract, grounded on the teacher's providers.OpenAIProvider client
// construction, simplified to a single non-streaming call.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	health       healthState
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: model,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (types.ProviderResult, error) {
	start := time.Now()
	req := openai.ChatCompletionRequest{
		Model: p.defaultModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		Stop:        opts.Stop,
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		p.health.recordFailure()
		return types.ProviderResult{}, classifyOpenAIError(err)
	}
	p.health.recordSuccess()

	var text, finish string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
		finish = string(resp.Choices[0].FinishReason)
	}

	return types.ProviderResult{
		Text:     text,
		Provider: p.Name(),
		Model:    resp.Model,
		Usage: types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		LatencyMs:    time.Since(start).Milliseconds(),
		FinishReason: finish,
	}, nil
}

func (p *OpenAIProvider) ThermalStatus() types.ThermalStatus { return p.health.thermal() }
func (p *OpenAIProvider) MemoryStatus() types.MemoryStatus   { return p.health.memory() }

func (p *OpenAIProvider) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{SupportsTools: true, SupportsVision: true, MaxContext: 128000}
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if asAPIError(err, &apiErr) {
		status := apiErr.HTTPStatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return types.NewCoreError(classifyStatus(status), "openai request failed", err)
	}
	var reqErr *openai.RequestError
	if asAPIError(err, &reqErr) {
		return types.NewCoreError(classifyStatus(reqErr.HTTPStatusCode), "openai request failed", err)
	}
	return types.NewCoreError(types.ErrProviderUnavailable, "openai request failed", err)
}
