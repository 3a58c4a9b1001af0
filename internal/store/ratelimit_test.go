package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{WindowMs: 1000, MaxRequests: 3})
	base := time.Unix(0, 0)

	for i := 0; i < 3; i++ {
		assert.True(t, l.AllowAt("k", base), "request %d should be allowed", i)
	}
	assert.False(t, l.AllowAt("k", base), "fourth request within the window should be rejected")
}

func TestRateLimiter_IndependentKeys(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{WindowMs: 1000, MaxRequests: 1})
	base := time.Unix(0, 0)

	assert.True(t, l.AllowAt("a", base))
	assert.True(t, l.AllowAt("b", base), "separate key must have its own budget")
	assert.False(t, l.AllowAt("a", base))
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{WindowMs: 100, MaxRequests: 1})
	base := time.Unix(0, 0)

	assert.True(t, l.AllowAt("k", base))
	assert.False(t, l.AllowAt("k", base.Add(50*time.Millisecond)))
	assert.True(t, l.AllowAt("k", base.Add(101*time.Millisecond)), "hit should have aged out of the window")
}

func TestRateLimiter_RemainingConsistentWithAllow(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{WindowMs: 1000, MaxRequests: 2})
	base := time.Unix(0, 0)

	assert.Equal(t, 2, l.RemainingAt("k", base))
	l.AllowAt("k", base)
	assert.Equal(t, 1, l.RemainingAt("k", base))
	l.AllowAt("k", base)
	assert.Equal(t, 0, l.RemainingAt("k", base))
	assert.False(t, l.AllowAt("k", base))
}

func TestRateLimiter_MsUntilReset(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{WindowMs: 1000, MaxRequests: 1})
	base := time.Unix(0, 0)

	assert.Zero(t, l.MsUntilResetAt("k", base), "untouched key has nothing to reset")
	l.AllowAt("k", base)
	reset := l.MsUntilResetAt("k", base.Add(200*time.Millisecond))
	assert.Equal(t, int64(800), reset)
}

func TestRateLimiter_SweepsIdleKeys(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{WindowMs: 100, MaxRequests: 1})
	base := time.Unix(0, 0)

	l.AllowAt("k", base)
	l.Sweep(base.Add(200 * time.Millisecond))

	l.mu.Lock()
	_, present := l.windows["k"]
	l.mu.Unlock()
	assert.False(t, present, "idle key should be swept after one window")
}

func TestRateLimiter_DefaultsAppliedForZeroConfig(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{})
	assert.Equal(t, DefaultRateLimiterConfig().WindowMs, l.cfg.WindowMs)
	assert.Equal(t, DefaultRateLimiterConfig().MaxRequests, l.cfg.MaxRequests)
}
