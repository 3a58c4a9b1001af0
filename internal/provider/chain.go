package provider

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/agentmesh/core/internal/circuit"
	"github.com/agentmesh/core/pkg/types"
)

// ChainConfig configures a Chain.
type ChainConfig struct {
	RetryAttempts    int
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	PerProviderTimeout time.Duration
	Publish          func(types.Event)
	Logger           *slog.Logger
}

// Chain tries Providers in policy order, gating each by its circuit
// breaker and thermal/memory health, retrying retryable errors with
// capped exponential backoff before advancing to the next provider.
// Satisfies spec §4.4, including its invariants: at most one provider
// call in flight per invocation, no retry on a non-retryable error, and
// providers are never reordered within one invocation.
type Chain struct {
	providers []Provider
	breakers  *circuit.Registry
	cfg       ChainConfig
}

// NewChain builds a Chain over providers in the given (fixed) policy
// order.
func NewChain(providers []Provider, breakers *circuit.Registry, cfg ChainConfig) *Chain {
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.PerProviderTimeout <= 0 {
		cfg.PerProviderTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Chain{providers: providers, breakers: breakers, cfg: cfg}
}

// Generate runs the fallback chain for one prompt, returning the first
// provider's successful result or a types.ErrProviderUnavailable
// CoreError once every provider is exhausted.
func (c *Chain) Generate(ctx context.Context, prompt string, opts GenerateOptions) (types.ProviderResult, error) {
	opts = opts.Clamp()
	var lastErr error

	for i, p := range c.providers {
		breaker := c.breakers.Get(p.Name())
		if breaker.State() == circuit.StateOpen {
			ce := types.NewCoreError(types.ErrCircuitOpen, "provider circuit open", nil)
			ce.Provider = p.Name()
			lastErr = ce
			c.publishFallback(p.Name(), "circuit_open", c.nextName(i))
			continue
		}

		health := Health(p)
		if health.Critical() {
			ce := types.NewCoreError(types.ErrProviderUnavailable, "provider health critical", nil)
			ce.Provider = p.Name()
			lastErr = ce
			c.publishFallback(p.Name(), "health_critical", c.nextName(i))
			continue
		}

		result, err := c.callWithRetry(ctx, p, prompt, opts, breaker)
		if err == nil {
			c.publishSuccess(result)
			return result, nil
		}

		lastErr = err
		kind := classify(err)
		if kind.Retryable() || kind == types.ErrCircuitOpen {
			c.publishFallback(p.Name(), string(kind), c.nextName(i))
			continue
		}
		// Non-retryable: the chain does not advance past this
		// provider's error per spec §4.4's retry/advance rule only
		// covering retryable errors explicitly; a non-retryable
		// classification (e.g. validation) still fails the whole
		// chain rather than silently trying the next provider with a
		// request it would also reject identically.
		return types.ProviderResult{}, err
	}

	if lastErr == nil {
		return types.ProviderResult{}, types.NewCoreError(types.ErrProviderUnavailable, "no providers configured", types.ErrNoProviders)
	}
	return types.ProviderResult{}, types.NewCoreError(types.ErrProviderUnavailable, "all providers exhausted", lastErr)
}

func (c *Chain) nextName(i int) string {
	if i+1 < len(c.providers) {
		return c.providers[i+1].Name()
	}
	return ""
}

// callWithRetry retries a single provider up to RetryAttempts times on
// retryable errors, through its circuit breaker, honoring the
// per-provider timeout. At most one call to p is ever in flight at a
// time.
func (c *Chain) callWithRetry(ctx context.Context, p Provider, prompt string, opts GenerateOptions, breaker *circuit.Breaker) (types.ProviderResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.PerProviderTimeout)
		result, err := circuit.ExecuteWithResult(breaker, callCtx, func(ctx context.Context) (types.ProviderResult, error) {
			return p.Generate(ctx, prompt, opts)
		}, nil)
		cancel()

		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, circuit.ErrOpen) {
			return types.ProviderResult{}, types.NewCoreError(types.ErrCircuitOpen, "provider circuit open mid-retry", err)
		}
		if !classify(err).Retryable() {
			return types.ProviderResult{}, err
		}
		if attempt >= c.cfg.RetryAttempts {
			break
		}
		if ctx.Err() != nil {
			return types.ProviderResult{}, types.NewCoreError(types.ErrCancelled, "chain cancelled during retry", ctx.Err())
		}
		wait := backoff(c.cfg.BaseBackoff, c.cfg.MaxBackoff, attempt, rand.Float64)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return types.ProviderResult{}, types.NewCoreError(types.ErrCancelled, "chain cancelled during backoff", ctx.Err())
		}
	}
	return types.ProviderResult{}, lastErr
}

func (c *Chain) publishFallback(failed, reason, next string) {
	if c.cfg.Publish == nil {
		return
	}
	c.cfg.Publish(types.Event{
		SpecVersion: types.SpecVersion,
		Type:        types.EventProviderFallback,
		Source:      "provider.chain",
		Time:        time.Now(),
		Data: map[string]any{
			"failedProvider": failed,
			"reason":         reason,
			"nextProvider":   next,
		},
	})
}

func (c *Chain) publishSuccess(result types.ProviderResult) {
	if c.cfg.Publish == nil {
		return
	}
	c.cfg.Publish(types.Event{
		SpecVersion: types.SpecVersion,
		Type:        types.EventProviderSuccess,
		Source:      "provider.chain",
		Time:        time.Now(),
		Data: map[string]any{
			"provider": result.Provider,
			"model":    result.Model,
			"latencyMs": result.LatencyMs,
		},
	})
}
