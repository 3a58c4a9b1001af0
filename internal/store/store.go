// Package store implements a bounded, TTL-aware key/value store with
// pluggable eviction policies (C1), grounded on the single-writer,
// prune-on-touch idiom of the teacher's internal/cache.DedupeCache.
package store

import (
	"encoding/json"
	"sync"
	"time"
)

// EvictionPolicy selects how a Store sheds entries once it is at
// capacity. TTL expiry applies in addition to whichever policy is
// configured: an expired entry is absent on read even before it is
// swept by eviction.
type EvictionPolicy string

const (
	// PolicyLRU evicts the least-recently-used entry on overflow.
	PolicyLRU EvictionPolicy = "lru"
	// PolicyTTL evicts the entry with the earliest expiration first.
	PolicyTTL EvictionPolicy = "ttl"
	// PolicyImportance evicts the lowest Importance, breaking ties by
	// insertion order (oldest first).
	PolicyImportance EvictionPolicy = "importance"
	// PolicySize evicts the largest serialized value until the store is
	// back under its byte budget.
	PolicySize EvictionPolicy = "size"
)

// Metrics is a point-in-time snapshot of store occupancy.
type Metrics struct {
	Size          int
	MaxSize       int
	ApproxBytes   int64
	EvictionCount int64
	ExpiredCount  int64
}

type entry struct {
	key        string
	value      any
	importance int
	expiresAt  time.Time // zero means no TTL
	insertedAt time.Time
	lastUsed   time.Time
	size       int64
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Config configures a Store.
type Config struct {
	MaxSize     int
	MaxBytes    int64 // only enforced by PolicySize; 0 = unlimited
	Policy      EvictionPolicy
	DefaultTTL  time.Duration // zero = no default expiry
	CleanupTick time.Duration // zero disables the background sweeper
}

// Store is a bounded, TTL-capped key/value store with a single-writer
// mutation discipline: readers may observe stale-but-never-torn state
// (spec §5), writers hold the store mutex for the duration of a mutation.
type Store struct {
	mu        sync.Mutex
	cfg       Config
	entries   map[string]*entry
	order     []string // insertion/LRU order, pruned lazily
	destroyed bool

	evictions int64
	expired   int64

	stopCleanup chan struct{}
}

// New creates a Store. A zero-value Config is valid; MaxSize <= 0 means
// unbounded, and Policy defaults to PolicyLRU.
func New(cfg Config) *Store {
	if cfg.Policy == "" {
		cfg.Policy = PolicyLRU
	}
	s := &Store{
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
	if cfg.CleanupTick > 0 {
		s.stopCleanup = make(chan struct{})
		go s.cleanupLoop()
	}
	return s
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cfg.CleanupTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// Close stops the background cleanup goroutine, if one was started.
// Safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	ch := s.stopCleanup
	s.stopCleanup = nil
	s.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Set inserts or replaces a key. ttl of zero uses the store's
// DefaultTTL; a negative ttl means "no expiry" for this entry even if a
// DefaultTTL is configured. Set on a destroyed store is a silent no-op,
// matching spec §4.1 ("a destroyed store fails set").
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.SetWithImportance(key, value, ttl, 0)
}

// SetWithImportance is Set plus an importance score consulted only by
// PolicyImportance.
func (s *Store) SetWithImportance(key string, value any, ttl time.Duration, importance int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}

	now := time.Now()
	effTTL := ttl
	if effTTL == 0 {
		effTTL = s.cfg.DefaultTTL
	}
	var expiresAt time.Time
	if effTTL > 0 {
		expiresAt = now.Add(effTTL)
	}

	e := &entry{
		key:        key,
		value:      value,
		importance: importance,
		expiresAt:  expiresAt,
		insertedAt: now,
		lastUsed:   now,
		size:       approxSize(value),
	}

	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}
	s.entries[key] = e

	s.evictLocked()
}

// Get returns the value for key and whether it is present and
// unexpired. Reading touches the entry's LRU recency.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, false
	}
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	now := time.Now()
	if e.expired(now) {
		s.removeLocked(key)
		s.expired++
		return nil, false
	}
	e.lastUsed = now
	return e.value, true
}

// Has reports presence without mutating LRU recency.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return false
	}
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if e.expired(time.Now()) {
		s.removeLocked(key)
		s.expired++
		return false
	}
	return true
}

// Delete removes key unconditionally.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
}

// Keys returns all unexpired keys. Order is unspecified.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Size returns the number of unexpired entries currently stored.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Cleanup sweeps expired entries. Idempotent: calling it twice in a row
// with no intervening writes has no additional effect.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, e := range s.entries {
		if e.expired(now) {
			s.removeLocked(k)
			s.expired++
		}
	}
}

// Destroy marks the store permanently unusable: subsequent Set calls are
// no-ops and reads report absent.
func (s *Store) Destroy() {
	s.mu.Lock()
	s.destroyed = true
	s.entries = make(map[string]*entry)
	s.order = nil
	s.mu.Unlock()
	s.Close()
}

// Metrics returns a point-in-time occupancy snapshot.
func (s *Store) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	var bytes int64
	now := time.Now()
	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			bytes += e.size
			n++
		}
	}
	return Metrics{
		Size:          n,
		MaxSize:       s.cfg.MaxSize,
		ApproxBytes:   bytes,
		EvictionCount: s.evictions,
		ExpiredCount:  s.expired,
	}
}

func (s *Store) removeLocked(key string) {
	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// evictLocked enforces MaxSize/MaxBytes under s.mu, using the
// configured policy to pick victims. Approximate memory is monotone in
// size because we only ever remove entries here, never grow size
// estimates without a corresponding Set.
func (s *Store) evictLocked() {
	for s.cfg.MaxSize > 0 && len(s.entries) > s.cfg.MaxSize {
		victim := s.pickVictimLocked()
		if victim == "" {
			return
		}
		s.removeLocked(victim)
		s.evictions++
	}
	if s.cfg.Policy == PolicySize && s.cfg.MaxBytes > 0 {
		for s.totalBytesLocked() > s.cfg.MaxBytes && len(s.entries) > 0 {
			victim := s.largestLocked()
			if victim == "" {
				return
			}
			s.removeLocked(victim)
			s.evictions++
		}
	}
}

func (s *Store) totalBytesLocked() int64 {
	var total int64
	for _, e := range s.entries {
		total += e.size
	}
	return total
}

func (s *Store) pickVictimLocked() string {
	switch s.cfg.Policy {
	case PolicyTTL:
		return s.oldestExpiryLocked()
	case PolicyImportance:
		return s.lowestImportanceLocked()
	case PolicySize:
		return s.largestLocked()
	default: // PolicyLRU
		return s.leastRecentlyUsedLocked()
	}
}

func (s *Store) leastRecentlyUsedLocked() string {
	var victim string
	var oldest time.Time
	for k, e := range s.entries {
		if victim == "" || e.lastUsed.Before(oldest) {
			victim = k
			oldest = e.lastUsed
		}
	}
	return victim
}

func (s *Store) oldestExpiryLocked() string {
	var victim string
	var earliest time.Time
	for k, e := range s.entries {
		exp := e.expiresAt
		if exp.IsZero() {
			exp = e.insertedAt.Add(365 * 24 * time.Hour) // no TTL sorts last
		}
		if victim == "" || exp.Before(earliest) {
			victim = k
			earliest = exp
		}
	}
	return victim
}

func (s *Store) lowestImportanceLocked() string {
	var victim string
	var lowest int
	var oldest time.Time
	first := true
	for k, e := range s.entries {
		if first || e.importance < lowest || (e.importance == lowest && e.insertedAt.Before(oldest)) {
			victim = k
			lowest = e.importance
			oldest = e.insertedAt
			first = false
		}
	}
	return victim
}

func (s *Store) largestLocked() string {
	var victim string
	var largest int64
	for k, e := range s.entries {
		if victim == "" || e.size > largest {
			victim = k
			largest = e.size
		}
	}
	return victim
}

// approxSize estimates a value's serialized footprint. JSON-marshaling
// is a reasonable proxy for most cached payloads (strings, structs,
// maps); it never fails in a way that should abort a Set, so errors
// collapse to a small constant estimate.
func approxSize(v any) int64 {
	b, err := json.Marshal(v)
	if err != nil {
		return 64
	}
	return int64(len(b))
}
