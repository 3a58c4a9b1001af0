package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/core/pkg/types"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestBus_ExactMatch(t *testing.T) {
	b := New(Config{})
	defer b.Close()

	var mu sync.Mutex
	var got []types.Event
	b.Subscribe("agent.started", func(e types.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	b.Publish(types.Event{Type: types.EventAgentStarted, ID: "1"})
	b.Publish(types.Event{Type: types.EventAgentFailed, ID: "2"})

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	assert.Equal(t, "1", got[0].ID)
}

func TestBus_PrefixWildcard(t *testing.T) {
	b := New(Config{})
	defer b.Close()

	var mu sync.Mutex
	count := 0
	b.Subscribe("provider.*", func(e types.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Publish(types.Event{Type: types.EventProviderFallback, ID: "1"})
	b.Publish(types.Event{Type: types.EventProviderSuccess, ID: "2"})
	b.Publish(types.Event{Type: types.EventAgentStarted, ID: "3"})

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	})
}

func TestBus_CatchAll(t *testing.T) {
	b := New(Config{})
	defer b.Close()

	var mu sync.Mutex
	count := 0
	b.Subscribe("*", func(e types.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Publish(types.Event{Type: types.EventAgentStarted, ID: "1"})
	b.Publish(types.Event{Type: types.EventToolMappingStarted, ID: "2"})

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	})
}

func TestBus_DropOldestOnFullQueue(t *testing.T) {
	release := make(chan struct{})
	b := New(Config{QueueSize: 1, Workers: 1})
	defer b.Close()

	var mu sync.Mutex
	var got []string
	first := true
	sub := b.Subscribe("slow.*", func(e types.Event) {
		mu.Lock()
		wasFirst := first
		first = false
		mu.Unlock()
		if wasFirst {
			<-release // block the only worker so the queue backs up
		}
		mu.Lock()
		got = append(got, e.ID)
		mu.Unlock()
	})

	b.Publish(types.Event{Type: "slow.a", ID: "1"}) // picked up by worker immediately, blocks
	time.Sleep(20 * time.Millisecond)                // ensure handler has started and is blocked
	b.Publish(types.Event{Type: "slow.a", ID: "2"})  // queued
	b.Publish(types.Event{Type: "slow.a", ID: "3"})  // queue full (size 1): drops "2", queues "3"

	close(release)

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1", "3"}, got, "the dropped event must be the stale one, not the newest")
	assert.GreaterOrEqual(t, sub.Dropped(), int64(1))
}

func TestBus_HandlerPanicIsolated(t *testing.T) {
	b := New(Config{})
	defer b.Close()

	var mu sync.Mutex
	failureSeen := false
	b.Subscribe("bus.handler.failed", func(e types.Event) {
		mu.Lock()
		failureSeen = true
		mu.Unlock()
	})

	var goodSeen bool
	b.Subscribe("ok.*", func(e types.Event) {
		mu.Lock()
		goodSeen = true
		mu.Unlock()
	})

	b.Subscribe("panic.*", func(e types.Event) {
		panic("boom")
	})

	b.Publish(types.Event{Type: "panic.now", ID: "1"})
	b.Publish(types.Event{Type: "ok.now", ID: "2"})

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return failureSeen && goodSeen
	})
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New(Config{})
	defer b.Close()

	var mu sync.Mutex
	count := 0
	sub := b.Subscribe("x.*", func(e types.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Publish(types.Event{Type: "x.a", ID: "1"})
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	sub.Unsubscribe()
	b.Publish(types.Event{Type: "x.a", ID: "2"})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "no further delivery after Unsubscribe")
}
