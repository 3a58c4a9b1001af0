package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/agentmesh/core/pkg/types"
)

// BedrockConfig configures the Bedrock adapter.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
}

// BedrockProvider adapts AWS Bedrock's Converse API to the Provider
// contract, grounded on the teacher's providers.BedrockProvider AWS
// config/client construction; uses the non-streaming Converse call
// rather than ConverseStream since the chain contract is request/response.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
	health       healthState
}

func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (types.ProviderResult, error) {
	start := time.Now()
	maxTokens := int32(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	out, err := p.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(p.defaultModel),
		Messages: []brtypes.Message{
			{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: prompt}},
			},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(float32(opts.Temperature)),
			StopSequences: opts.Stop,
		},
	})
	if err != nil {
		p.health.recordFailure()
		return types.ProviderResult{}, classifyBedrockError(err)
	}
	p.health.recordSuccess()

	var text string
	if msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msgOut.Value.Content {
			if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
				text += textBlock.Value
			}
		}
	}

	var usage types.TokenUsage
	if out.Usage != nil {
		usage = types.TokenUsage{
			PromptTokens:     int(aws.ToInt32(out.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}

	return types.ProviderResult{
		Text:         text,
		Provider:     p.Name(),
		Model:        p.defaultModel,
		Usage:        usage,
		LatencyMs:    time.Since(start).Milliseconds(),
		FinishReason: string(out.StopReason),
	}, nil
}

func (p *BedrockProvider) ThermalStatus() types.ThermalStatus { return p.health.thermal() }
func (p *BedrockProvider) MemoryStatus() types.MemoryStatus   { return p.health.memory() }

func (p *BedrockProvider) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{SupportsTools: true, SupportsVision: true, MaxContext: 200000}
}

func classifyBedrockError(err error) error {
	var throttling *brtypes.ThrottlingException
	if asAPIError(err, &throttling) {
		return types.NewCoreError(types.ErrRateLimited, "bedrock request throttled", err)
	}
	var timeoutErr *brtypes.ModelTimeoutException
	if asAPIError(err, &timeoutErr) {
		return types.NewCoreError(types.ErrTimeout, "bedrock request timed out", err)
	}
	var opErr *smithy.OperationError
	if asAPIError(err, &opErr) {
		return types.NewCoreError(types.ErrProviderUnavailable, "bedrock operation failed", err)
	}
	return types.NewCoreError(types.ErrProviderUnavailable, "bedrock request failed", err)
}
