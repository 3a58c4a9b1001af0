// Package eventbus implements the typed publish/subscribe bus (C2): a
// fan-out hub, grounded on the teacher's canvas.Hub broadcast idiom,
// generalized with topic-prefix subscriptions and bounded, drop-oldest
// per-subscriber queues delivered off a worker pool rather than on the
// publisher's goroutine.
package eventbus

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/agentmesh/core/pkg/types"
)

// Handler processes one delivered event. A handler that panics is
// isolated: the bus recovers, logs, and emits EventBusHandlerFailed
// rather than letting one subscriber's bug take down delivery for
// others.
type Handler func(types.Event)

// Subscription is returned by Subscribe; call Unsubscribe to stop
// delivery and release its queue.
type Subscription struct {
	id      uint64
	pattern string
	queue   chan types.Event
	dropped atomic.Int64
	bus     *Bus
}

// Dropped reports how many events were discarded because this
// subscriber's queue was full (drop-oldest semantics: the discarded
// event is the oldest queued one, making room for the newest).
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Unsubscribe stops delivery to this subscription and releases its
// queue. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s)
}

// Config configures a Bus.
type Config struct {
	// QueueSize bounds each subscriber's pending-event backlog. Zero
	// falls back to a sane default so Publish never blocks on a
	// misconfigured subscriber.
	QueueSize int
	// Workers is the size of the delivery worker pool shared across all
	// subscribers. Zero falls back to a default of 4.
	Workers int
	Logger  *slog.Logger
}

// Bus is a typed, topic-prefix-matched publish/subscribe event bus.
// Publish never blocks past each subscriber's queue capacity: a full
// queue drops its oldest pending event to make room, incrementing that
// subscriber's Dropped counter, matching spec §4.2's "publisher never
// blocks" / "producers never blocked by slow consumers" invariant.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64

	queueSize int
	work      chan delivery
	pumpWg    sync.WaitGroup
	workerWg  sync.WaitGroup
	closed    atomic.Bool
	logger    *slog.Logger
}

type delivery struct {
	sub   *Subscription
	event types.Event
	fn    Handler
}

// New creates a Bus and starts its delivery worker pool. Call Close to
// stop workers and release resources.
func New(cfg Config) *Bus {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	b := &Bus{
		subs:      make(map[uint64]*Subscription),
		queueSize: cfg.QueueSize,
		work:      make(chan delivery, cfg.Workers*cfg.QueueSize),
		logger:    cfg.Logger,
	}
	for i := 0; i < cfg.Workers; i++ {
		b.workerWg.Add(1)
		go b.deliverLoop()
	}
	return b
}

// Subscribe registers handler for every event whose Type matches
// pattern. A pattern ending in ".*" matches any type sharing that
// dotted prefix (e.g. "provider.*" matches "provider.fallback" and
// "provider.success"); an exact pattern matches only that literal type;
// "*" matches everything.
func (b *Bus) Subscribe(pattern string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{
		id:      b.nextID,
		pattern: pattern,
		queue:   make(chan types.Event, b.queueSize),
		bus:     b,
	}
	b.subs[sub.id] = sub
	b.pumpWg.Add(1)
	go b.pumpLoop(sub, handler)
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[sub.id]
	if ok {
		delete(b.subs, sub.id)
	}
	b.mu.Unlock()
	if ok {
		close(sub.queue)
	}
}

// Publish delivers event to every subscription whose pattern matches
// event.Type. Delivery is asynchronous: Publish enqueues onto each
// matching subscriber's queue (dropping the oldest pending event if
// full) and returns without waiting for handlers to run.
func (b *Bus) Publish(event types.Event) {
	if b.closed.Load() {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !matches(sub.pattern, string(event.Type)) {
			continue
		}
		enqueue(sub, event)
	}
}

// enqueue delivers onto sub's queue, dropping the oldest pending event
// on overflow so the newest event is never silently lost in favor of a
// stale one.
func enqueue(sub *Subscription, event types.Event) {
	select {
	case sub.queue <- event:
		return
	default:
	}
	select {
	case <-sub.queue:
		sub.dropped.Add(1)
	default:
	}
	select {
	case sub.queue <- event:
	default:
	}
}

// pumpLoop drains one subscriber's queue in FIFO order, handing each
// event to the shared delivery worker pool so a slow subscriber never
// blocks others' delivery, while preserving this subscriber's own
// per-topic ordering.
func (b *Bus) pumpLoop(sub *Subscription, handler Handler) {
	defer b.pumpWg.Done()
	for event := range sub.queue {
		done := make(chan struct{})
		b.work <- delivery{sub: sub, event: event, fn: func(e types.Event) {
			defer close(done)
			handler(e)
		}}
		<-done
	}
}

func (b *Bus) deliverLoop() {
	defer b.workerWg.Done()
	for d := range b.work {
		b.safeInvoke(d)
	}
}

func (b *Bus) safeInvoke(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event bus handler panicked",
				"event_type", d.event.Type,
				"panic", r,
			)
			b.Publish(types.Event{
				SpecVersion: types.SpecVersion,
				Type:        types.EventBusHandlerFailed,
				Source:      "eventbus",
				ID:          d.event.ID + ".handler-failed",
				Time:        d.event.Time,
				Data:        map[string]any{"originalType": string(d.event.Type)},
			})
		}
	}()
	d.fn(d.event)
}

// Close stops accepting new subscriptions' queues and shuts down the
// delivery worker pool once all subscriber queues have drained. Safe to
// call once.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[uint64]*Subscription)
	b.mu.Unlock()

	for _, s := range subs {
		close(s.queue)
	}
	b.pumpWg.Wait()
	close(b.work)
	b.workerWg.Wait()
}

func matches(pattern, topic string) bool {
	if pattern == "*" || pattern == topic {
		return true
	}
	prefix, ok := strings.CutSuffix(pattern, ".*")
	if !ok {
		return false
	}
	return topic == prefix || strings.HasPrefix(topic, prefix+".")
}
