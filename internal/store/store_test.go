package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGet(t *testing.T) {
	s := New(Config{MaxSize: 10})
	defer s.Close()

	s.Set("a", 1, 0)
	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStore_TTLExpiry(t *testing.T) {
	s := New(Config{MaxSize: 10})
	defer s.Close()

	s.Set("a", "v", 10*time.Millisecond)
	_, ok := s.Get("a")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = s.Get("a")
	assert.False(t, ok, "expired entry must not be returned")
}

func TestStore_Has_DoesNotTouchRecency(t *testing.T) {
	s := New(Config{MaxSize: 2, Policy: PolicyLRU})
	defer s.Close()

	s.Set("a", 1, 0)
	s.Set("b", 2, 0)
	s.Has("a") // must not refresh a's recency

	s.Set("c", 3, 0) // forces eviction; a is still least-recently-used
	assert.False(t, s.Has("a"), "Has must not protect an entry from LRU eviction")
	assert.True(t, s.Has("b"))
	assert.True(t, s.Has("c"))
}

func TestStore_LRUEviction(t *testing.T) {
	s := New(Config{MaxSize: 2, Policy: PolicyLRU})
	defer s.Close()

	s.Set("a", 1, 0)
	s.Set("b", 2, 0)
	s.Get("a") // touch a, making b the LRU victim
	s.Set("c", 3, 0)

	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("b"), "least recently used entry should be evicted")
	assert.True(t, s.Has("c"))
}

func TestStore_ImportancePolicy(t *testing.T) {
	s := New(Config{MaxSize: 2, Policy: PolicyImportance})
	defer s.Close()

	s.SetWithImportance("low", 1, 0, 1)
	s.SetWithImportance("high", 2, 0, 10)
	s.SetWithImportance("new", 3, 0, 5)

	assert.False(t, s.Has("low"), "lowest importance entry should be evicted first")
	assert.True(t, s.Has("high"))
	assert.True(t, s.Has("new"))
}

func TestStore_SizePolicy(t *testing.T) {
	s := New(Config{Policy: PolicySize, MaxBytes: 1})
	defer s.Close()

	s.Set("big", "a very long string value that exceeds one byte", 0)
	assert.LessOrEqual(t, s.Metrics().ApproxBytes, int64(1))
}

func TestStore_Cleanup_Idempotent(t *testing.T) {
	s := New(Config{MaxSize: 10})
	defer s.Close()

	s.Set("a", 1, 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	s.Cleanup()
	m1 := s.Metrics()
	s.Cleanup()
	m2 := s.Metrics()
	assert.Equal(t, m1.ExpiredCount, m2.ExpiredCount, "cleanup must not double-count on a second pass")
}

func TestStore_Destroy(t *testing.T) {
	s := New(Config{MaxSize: 10})

	s.Set("a", 1, 0)
	s.Destroy()

	s.Set("b", 2, 0) // must be a silent no-op
	_, ok := s.Get("a")
	assert.False(t, ok)
	_, ok = s.Get("b")
	assert.False(t, ok)
}

func TestStore_Keys_ExcludesExpired(t *testing.T) {
	s := New(Config{MaxSize: 10})
	defer s.Close()

	s.Set("a", 1, 5*time.Millisecond)
	s.Set("b", 2, 0)
	time.Sleep(10 * time.Millisecond)

	keys := s.Keys()
	assert.NotContains(t, keys, "a")
	assert.Contains(t, keys, "b")
}

func TestStore_BackgroundCleanup(t *testing.T) {
	s := New(Config{MaxSize: 10, CleanupTick: 5 * time.Millisecond})
	defer s.Close()

	s.Set("a", 1, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	assert.Zero(t, s.Metrics().Size)
	assert.GreaterOrEqual(t, s.Metrics().ExpiredCount, int64(1))
}
