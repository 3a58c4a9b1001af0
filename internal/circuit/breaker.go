// Package circuit implements the circuit breaker (C3): failure-rate
// windowed tripping, half-open probing, optional per-call timeout, and
// a fallback path whose result does not count against thresholds.
// Adapted from the teacher's internal/infra.CircuitBreaker, replacing
// its simple consecutive-failure counter with the spec's
// monitoring-period failure-rate window.
package circuit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agentmesh/core/pkg/types"
)

// State is one of the three circuit breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrOpen is returned when a call is rejected because the circuit is
// OPEN and no fallback was supplied.
var ErrOpen = errors.New("circuit breaker is open")

// Config configures a Breaker.
type Config struct {
	Name string

	// FailureThreshold is the number of failures within
	// MonitoringPeriod that trips CLOSED -> OPEN.
	FailureThreshold int
	// MonitoringPeriod is the rolling window over which failures are
	// counted; failures older than this do not count toward the
	// threshold. Resets are atomic with respect to counting (spec
	// §4.3 invariant): a tick that rolls the window and a concurrent
	// RecordResult never interleave torn.
	MonitoringPeriod time.Duration
	// ResetTimeout is how long the circuit stays OPEN before allowing
	// a single HALF_OPEN probe.
	ResetTimeout time.Duration
	// CallTimeout, if positive, bounds each wrapped call; an expired
	// call counts as a failure and emits EventCircuitTimeout.
	CallTimeout time.Duration

	OnStateChange func(from, to State)
	Publish       func(types.Event)
	Logger        *slog.Logger
}

// Metrics is the point-in-time snapshot described in spec §4.3.
type Metrics struct {
	Successes        int
	Failures         int
	TotalRequests    int
	FailureRate      float64
	State            State
	LastTransitionAt time.Time
}

// Breaker is one named circuit; failureTimes holds only the failure
// timestamps within the current monitoring window.
type Breaker struct {
	cfg Config

	mu               sync.Mutex
	state            State
	failureTimes     []time.Time
	successes        int
	failures         int
	totalRequests    int
	halfOpenInFlight bool
	lastTransitionAt time.Time
}

// New creates a Breaker. Unset thresholds/timeouts fall back to the
// teacher's own defaults (5 failures, 30s reset).
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MonitoringPeriod <= 0 {
		cfg.MonitoringPeriod = 60 * time.Second
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Breaker{
		cfg:              cfg,
		state:            StateClosed,
		lastTransitionAt: time.Now(),
	}
}

// Execute runs fn under circuit protection. If the circuit is OPEN and
// fallback is non-nil, fallback's result is returned directly and does
// not count against thresholds (spec §4.3). If fallback is nil and the
// circuit is OPEN, Execute returns ErrOpen without calling fn.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error, fallback func(context.Context) error) error {
	wrappedFn := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}
	var wrappedFallback func(context.Context) (struct{}, error)
	if fallback != nil {
		wrappedFallback = func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fallback(ctx)
		}
	}
	_, err := ExecuteWithResult(b, ctx, wrappedFn, wrappedFallback)
	return err
}

// ExecuteWithResult is Execute generalized over a return value.
func ExecuteWithResult[T any](b *Breaker, ctx context.Context, fn func(context.Context) (T, error), fallback func(context.Context) (T, error)) (T, error) {
	var zero T

	allowed, isProbe := b.admit()
	if !allowed {
		if fallback != nil {
			return fallback(ctx)
		}
		return zero, ErrOpen
	}

	result, err := callWithTimeout(b, ctx, fn)
	b.recordResult(err, isProbe)
	if err != nil {
		return zero, err
	}
	return result, nil
}

// callWithTimeout bounds fn by Config.CallTimeout when configured. An
// expired call counts as a failure and emits EventCircuitTimeout (spec
// §4.3's "timeout" clause); ctx cancellation still propagates to fn so
// well-behaved callers can abandon work promptly even though the
// goroutine running fn is not forcibly killed.
func callWithTimeout[T any](b *Breaker, ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if b.cfg.CallTimeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(callCtx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-callCtx.Done():
		if b.cfg.Publish != nil {
			go b.cfg.Publish(types.Event{
				SpecVersion: types.SpecVersion,
				Type:        types.EventCircuitTimeout,
				Source:      b.cfg.Name,
				Time:        time.Now(),
				Data:        map[string]any{"name": b.cfg.Name},
			})
		}
		return zero, types.NewCoreError(types.ErrTimeout, "circuit call timed out", callCtx.Err())
	}
}

func (b *Breaker) admit() (allowed bool, isProbe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if time.Since(b.lastTransitionAt) >= b.cfg.ResetTimeout {
			b.transitionLocked(StateHalfOpen)
			b.halfOpenInFlight = true
			return true, true
		}
		return false, false
	case StateHalfOpen:
		if b.halfOpenInFlight {
			return false, false
		}
		b.halfOpenInFlight = true
		return true, true
	default:
		return true, false
	}
}

func (b *Breaker) recordResult(err error, isProbe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if isProbe {
		b.halfOpenInFlight = false
	}

	b.totalRequests++
	now := time.Now()

	if err != nil {
		b.failures++
		b.failureTimes = append(b.failureTimes, now)
		b.pruneWindowLocked(now)

		switch b.state {
		case StateClosed:
			if len(b.failureTimes) >= b.cfg.FailureThreshold {
				b.transitionLocked(StateOpen)
			}
		case StateHalfOpen:
			b.transitionLocked(StateOpen)
		}
		return
	}

	b.successes++
	switch b.state {
	case StateHalfOpen:
		b.transitionLocked(StateClosed)
	}
}

// pruneWindowLocked drops failure timestamps older than
// MonitoringPeriod. Called with b.mu held so the prune is atomic with
// the append that triggered it, satisfying spec §4.3's "monitoring
// period resets are atomic with respect to counting".
func (b *Breaker) pruneWindowLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.MonitoringPeriod)
	i := 0
	for i < len(b.failureTimes) && b.failureTimes[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.failureTimes = append([]time.Time(nil), b.failureTimes[i:]...)
	}
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.lastTransitionAt = time.Now()
	if to == StateClosed {
		b.failureTimes = nil
	}
	if b.cfg.OnStateChange != nil {
		go b.cfg.OnStateChange(from, to)
	}
	if b.cfg.Publish != nil {
		go b.cfg.Publish(types.Event{
			SpecVersion: types.SpecVersion,
			Type:        types.EventCircuitStateChanged,
			Source:      b.cfg.Name,
			Time:        b.lastTransitionAt,
			Data: map[string]any{
				"from": string(from),
				"to":   string(to),
				"name": b.cfg.Name,
			},
		})
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Metrics returns a point-in-time snapshot.
func (b *Breaker) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	var rate float64
	if b.totalRequests > 0 {
		rate = float64(b.failures) / float64(b.totalRequests)
	}
	return Metrics{
		Successes:        b.successes,
		Failures:         b.failures,
		TotalRequests:    b.totalRequests,
		FailureRate:      rate,
		State:            b.state,
		LastTransitionAt: b.lastTransitionAt,
	}
}

// Reset forces the circuit back to CLOSED, clearing counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureTimes = nil
	b.successes = 0
	b.failures = 0
	b.totalRequests = 0
	b.halfOpenInFlight = false
	b.lastTransitionAt = time.Now()
}
