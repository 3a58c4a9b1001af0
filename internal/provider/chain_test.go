package provider

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/core/internal/circuit"
	"github.com/agentmesh/core/pkg/types"
)

type fakeProvider struct {
	name    string
	calls   atomic.Int32
	result  types.ProviderResult
	err     error
	thermal types.ThermalStatus
	memory  types.MemoryStatus
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (types.ProviderResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return types.ProviderResult{}, f.err
	}
	r := f.result
	r.Provider = f.name
	return r, nil
}
func (f *fakeProvider) ThermalStatus() types.ThermalStatus { return f.thermal }
func (f *fakeProvider) MemoryStatus() types.MemoryStatus   { return f.memory }
func (f *fakeProvider) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{}
}

func newTestChain(providers []Provider, cfg ChainConfig) *Chain {
	return NewChain(providers, circuit.NewRegistry(circuit.Config{FailureThreshold: 100}), cfg)
}

func TestChain_FirstProviderSucceeds(t *testing.T) {
	a := &fakeProvider{name: "a", result: types.ProviderResult{Text: "hi"}}
	b := &fakeProvider{name: "b", result: types.ProviderResult{Text: "bye"}}
	c := newTestChain([]Provider{a, b}, ChainConfig{})

	res, err := c.Generate(context.Background(), "prompt", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Text)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(0), b.calls.Load())
}

func TestChain_FallsBackOnRetryableError(t *testing.T) {
	a := &fakeProvider{name: "a", err: types.NewCoreError(types.ErrProviderUnavailable, "down", nil)}
	b := &fakeProvider{name: "b", result: types.ProviderResult{Text: "bye"}}
	c := newTestChain([]Provider{a, b}, ChainConfig{RetryAttempts: 0})

	res, err := c.Generate(context.Background(), "prompt", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "bye", res.Text)
}

func TestChain_StopsOnNonRetryableError(t *testing.T) {
	a := &fakeProvider{name: "a", err: types.NewCoreError(types.ErrValidation, "bad request", nil)}
	b := &fakeProvider{name: "b", result: types.ProviderResult{Text: "bye"}}
	c := newTestChain([]Provider{a, b}, ChainConfig{})

	_, err := c.Generate(context.Background(), "prompt", GenerateOptions{})
	require.Error(t, err)
	assert.Equal(t, int32(0), b.calls.Load(), "non-retryable error must not advance to the next provider")
}

func TestChain_SkipsCriticalHealthProvider(t *testing.T) {
	a := &fakeProvider{name: "a", thermal: types.ThermalCritical, result: types.ProviderResult{Text: "should not see this"}}
	b := &fakeProvider{name: "b", result: types.ProviderResult{Text: "bye"}}
	c := newTestChain([]Provider{a, b}, ChainConfig{})

	res, err := c.Generate(context.Background(), "prompt", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "bye", res.Text)
	assert.Zero(t, a.calls.Load())
}

func TestChain_AllExhaustedFails(t *testing.T) {
	a := &fakeProvider{name: "a", err: types.NewCoreError(types.ErrProviderUnavailable, "down", nil)}
	b := &fakeProvider{name: "b", err: types.NewCoreError(types.ErrProviderUnavailable, "also down", nil)}
	c := newTestChain([]Provider{a, b}, ChainConfig{})

	_, err := c.Generate(context.Background(), "prompt", GenerateOptions{})
	assert.True(t, types.IsKind(err, types.ErrProviderUnavailable))
}

func TestChain_RetriesBeforeAdvancing(t *testing.T) {
	attempts := 0
	flaky := &flakyProvider{fakeProvider: &fakeProvider{name: "a"}, failUntil: 2, onAttempt: func() { attempts++ }}
	c := newTestChain([]Provider{flaky}, ChainConfig{RetryAttempts: 2, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})

	_, err := c.Generate(context.Background(), "prompt", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

type flakyProvider struct {
	*fakeProvider
	failUntil int
	attempt   int
	onAttempt func()
}

func (f *flakyProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (types.ProviderResult, error) {
	f.attempt++
	if f.onAttempt != nil {
		f.onAttempt()
	}
	if f.attempt <= f.failUntil {
		return types.ProviderResult{}, types.NewCoreError(types.ErrProviderUnavailable, "transient", nil)
	}
	return types.ProviderResult{Text: "ok", Provider: f.name}, nil
}

func TestChain_MaxTokensClampedToSafetyCeiling(t *testing.T) {
	var seen int
	a := &capturingProvider{onGenerate: func(opts GenerateOptions) { seen = opts.MaxTokens }}
	c := newTestChain([]Provider{a}, ChainConfig{})

	_, err := c.Generate(context.Background(), "prompt", GenerateOptions{MaxTokens: 999999})
	require.NoError(t, err)
	assert.Equal(t, maxTokenCeiling, seen)
}

type capturingProvider struct {
	onGenerate func(GenerateOptions)
}

func (c *capturingProvider) Name() string { return "cap" }
func (c *capturingProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (types.ProviderResult, error) {
	if c.onGenerate != nil {
		c.onGenerate(opts)
	}
	return types.ProviderResult{Text: "ok", Provider: "cap"}, nil
}
func (c *capturingProvider) ThermalStatus() types.ThermalStatus { return types.ThermalNominal }
func (c *capturingProvider) MemoryStatus() types.MemoryStatus   { return types.MemoryOK }
func (c *capturingProvider) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{}
}
