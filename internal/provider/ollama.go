package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentmesh/core/pkg/types"
)

// OllamaConfig configures the local Ollama adapter.
type OllamaConfig struct {
	BaseURL      string
	DefaultModel string
	HTTPClient   *http.Client
}

// OllamaProvider adapts a local Ollama server's /api/chat endpoint to
// the Provider contract, grounded directly on the teacher's plain
// net/http OllamaProvider (no SDK exists for this backend, matching
// the teacher's own choice).
type OllamaProvider struct {
	baseURL      string
	defaultModel string
	httpClient   *http.Client
	health       healthState
}

func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "llama3"
	}
	return &OllamaProvider{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		defaultModel: model,
		httpClient:   client,
	}
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64  `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaChatResponse struct {
	Model           string            `json:"model"`
	Message         ollamaChatMessage `json:"message"`
	Done            bool              `json:"done"`
	DoneReason      string            `json:"done_reason"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
	Error           string            `json:"error"`
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (types.ProviderResult, error) {
	start := time.Now()
	payload := ollamaChatRequest{
		Model:    p.defaultModel,
		Messages: []ollamaChatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options: ollamaOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
			Stop:        opts.Stop,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return types.ProviderResult{}, types.NewCoreError(types.ErrInternal, "marshal ollama request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return types.ProviderResult{}, types.NewCoreError(types.ErrInternal, "build ollama request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.health.recordFailure()
		return types.ProviderResult{}, types.NewCoreError(types.ErrProviderUnavailable, "ollama request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		p.health.recordFailure()
		ce := types.NewCoreError(classifyStatus(resp.StatusCode), fmt.Sprintf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody))), nil)
		ce.Status = resp.StatusCode
		return types.ProviderResult{}, ce
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		p.health.recordFailure()
		return types.ProviderResult{}, types.NewCoreError(types.ErrProviderUnavailable, "decode ollama response", err)
	}
	if out.Error != "" {
		p.health.recordFailure()
		return types.ProviderResult{}, types.NewCoreError(types.ErrProviderUnavailable, out.Error, nil)
	}
	p.health.recordSuccess()

	return types.ProviderResult{
		Text:     out.Message.Content,
		Provider: p.Name(),
		Model:    out.Model,
		Usage: types.TokenUsage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
		LatencyMs:    time.Since(start).Milliseconds(),
		FinishReason: out.DoneReason,
	}, nil
}

func (p *OllamaProvider) ThermalStatus() types.ThermalStatus { return p.health.thermal() }
func (p *OllamaProvider) MemoryStatus() types.MemoryStatus   { return p.health.memory() }

func (p *OllamaProvider) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{SupportsTools: false, SupportsVision: false, MaxContext: 8192}
}
