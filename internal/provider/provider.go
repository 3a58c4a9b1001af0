// Package provider implements the provider abstraction and fallback
// chain (C4): a common LLMProvider-equivalent contract, and a Chain
// that tries providers in policy order with circuit gating, thermal
// gating, and exponential backoff. Adapted from the teacher's
// internal/agent.FailoverOrchestrator, replaced consecutive-failure
// circuit tracking with internal/circuit's windowed Breaker and its
// string-based error classification with pkg/types.ErrorKind.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/agentmesh/core/pkg/types"
)

// GenerateOptions bounds a single generate call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	TimeoutMs   int
	Stop        []string
}

// maxTokenCeiling is the safety ceiling spec §4.4 requires regardless
// of caller-supplied MaxTokens.
const maxTokenCeiling = 4096

// Clamp enforces the safety ceiling on MaxTokens.
func (o GenerateOptions) Clamp() GenerateOptions {
	if o.MaxTokens <= 0 || o.MaxTokens > maxTokenCeiling {
		o.MaxTokens = maxTokenCeiling
	}
	return o
}

// Provider is the contract every model backend implements.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (types.ProviderResult, error)
	ThermalStatus() types.ThermalStatus
	MemoryStatus() types.MemoryStatus
	Capabilities() types.ProviderCapabilities
}

// Health reports a provider's current gating status in one call.
func Health(p Provider) types.HealthReport {
	return types.HealthReport{Thermal: p.ThermalStatus(), Memory: p.MemoryStatus()}
}

// classify maps a raw error into the ErrorKind taxonomy used for
// retry/failover decisions, mirroring the teacher's
// providers.ClassifyError string-matching approach but collapsing onto
// the shared ErrorKind enum instead of a provider-package-local
// FailoverReason.
func classify(err error) types.ErrorKind {
	if err == nil {
		return types.ErrInternal
	}
	var ce *types.CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return types.ErrProviderUnavailable
}

// backoff computes the exponential, jittered, capped backoff for retry
// attempt n (0-indexed), matching spec §4.4's "base × 2^n, capped,
// jittered" and the teacher's FailoverOrchestrator.tryProvider loop.
func backoff(base, max time.Duration, attempt int, jitter func() float64) time.Duration {
	d := base << attempt
	if d > max || d <= 0 {
		d = max
	}
	j := jitter()
	if j < 0 {
		j = 0
	}
	if j > 1 {
		j = 1
	}
	return time.Duration(float64(d) * (0.5 + 0.5*j))
}
