package provider

import (
	"context"
	"time"

	"google.golang.org/genai"

	"github.com/agentmesh/core/pkg/types"
)

// GoogleConfig configures the Gemini adapter.
type GoogleConfig struct {
	APIKey       string
	DefaultModel string
}

// GoogleProvider adapts the Gemini API to the Provider contract,
// grounded on the teacher's providers.GoogleProvider client
// construction (genai.NewClient with BackendGeminiAPI), simplified to
// GenerateContent rather than the streaming iterator variant.
type GoogleProvider struct {
	client       *genai.Client
	defaultModel string
	health       healthState
}

func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GoogleProvider{client: client, defaultModel: model}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (types.ProviderResult, error) {
	start := time.Now()
	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{genai.NewPartFromText(prompt)}},
	}
	cfg := &genai.GenerateContentConfig{}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature > 0 {
		t := float32(opts.Temperature)
		cfg.Temperature = &t
	}
	if len(opts.Stop) > 0 {
		cfg.StopSequences = opts.Stop
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.defaultModel, contents, cfg)
	if err != nil {
		p.health.recordFailure()
		return types.ProviderResult{}, types.NewCoreError(types.ErrProviderUnavailable, "google request failed", err)
	}
	p.health.recordSuccess()

	text := resp.Text()
	var usage types.TokenUsage
	var finish string
	if resp.UsageMetadata != nil {
		usage = types.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	if len(resp.Candidates) > 0 {
		finish = string(resp.Candidates[0].FinishReason)
	}

	return types.ProviderResult{
		Text:         text,
		Provider:     p.Name(),
		Model:        p.defaultModel,
		Usage:        usage,
		LatencyMs:    time.Since(start).Milliseconds(),
		FinishReason: finish,
	}, nil
}

func (p *GoogleProvider) ThermalStatus() types.ThermalStatus { return p.health.thermal() }
func (p *GoogleProvider) MemoryStatus() types.MemoryStatus   { return p.health.memory() }

func (p *GoogleProvider) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{SupportsTools: true, SupportsVision: true, MaxContext: 1000000}
}
