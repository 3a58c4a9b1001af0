package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/core/pkg/types"
)

var testErr = errors.New("boom")

func TestBreaker_InitialState(t *testing.T) {
	b := New(Config{})
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_StaysClosedOnSuccess(t *testing.T) {
	b := New(Config{FailureThreshold: 3})
	for i := 0; i < 10; i++ {
		err := b.Execute(context.Background(), func(context.Context) error { return nil }, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OpensAfterThresholdWithinWindow(t *testing.T) {
	b := New(Config{FailureThreshold: 3, MonitoringPeriod: time.Minute})
	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), func(context.Context) error { return testErr }, nil)
	}
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_FailuresOutsideWindowDoNotCount(t *testing.T) {
	b := New(Config{FailureThreshold: 2, MonitoringPeriod: 20 * time.Millisecond})

	_ = b.Execute(context.Background(), func(context.Context) error { return testErr }, nil)
	time.Sleep(30 * time.Millisecond) // first failure ages out of the window
	_ = b.Execute(context.Background(), func(context.Context) error { return testErr }, nil)

	assert.Equal(t, StateClosed, b.State(), "stale failure must not count toward the threshold")
}

func TestBreaker_RejectsWhenOpen(t *testing.T) {
	b := New(Config{FailureThreshold: 1, ResetTimeout: time.Hour})
	_ = b.Execute(context.Background(), func(context.Context) error { return testErr }, nil)
	require.Equal(t, StateOpen, b.State())

	err := b.Execute(context.Background(), func(context.Context) error {
		t.Fatal("wrapped operation must not run while OPEN")
		return nil
	}, nil)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_FallbackNotCountedAgainstThresholds(t *testing.T) {
	b := New(Config{FailureThreshold: 1, ResetTimeout: time.Hour})
	_ = b.Execute(context.Background(), func(context.Context) error { return testErr }, nil)
	require.Equal(t, StateOpen, b.State())

	fallbackCalls := 0
	err := b.Execute(context.Background(), func(context.Context) error {
		t.Fatal("wrapped operation must not run while OPEN even with a fallback")
		return nil
	}, func(context.Context) error {
		fallbackCalls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, fallbackCalls)

	m := b.Metrics()
	assert.Equal(t, 1, m.TotalRequests, "fallback call must not be counted against thresholds")
}

func TestBreaker_HalfOpenProbeClosesOnSuccess(t *testing.T) {
	b := New(Config{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	_ = b.Execute(context.Background(), func(context.Context) error { return testErr }, nil)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	err := b.Execute(context.Background(), func(context.Context) error { return nil }, nil)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenProbeReopensOnFailure(t *testing.T) {
	b := New(Config{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	_ = b.Execute(context.Background(), func(context.Context) error { return testErr }, nil)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	err := b.Execute(context.Background(), func(context.Context) error { return testErr }, nil)
	require.Error(t, err)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenAllowsOnlyOneProbe(t *testing.T) {
	b := New(Config{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	_ = b.Execute(context.Background(), func(context.Context) error { return testErr }, nil)
	time.Sleep(20 * time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		}, nil)
	}()
	<-started

	err := b.Execute(context.Background(), func(context.Context) error {
		t.Fatal("a second concurrent probe must not be admitted")
		return nil
	}, nil)
	assert.ErrorIs(t, err, ErrOpen)
	close(release)
}

func TestBreaker_TimeoutCountsAsFailure(t *testing.T) {
	b := New(Config{FailureThreshold: 1, CallTimeout: 10 * time.Millisecond})
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	require.Error(t, err)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_NoRetryableCallWhileOpen(t *testing.T) {
	b := New(Config{FailureThreshold: 1, ResetTimeout: time.Hour})
	_ = b.Execute(context.Background(), func(context.Context) error { return testErr }, nil)

	calls := 0
	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), func(context.Context) error {
			calls++
			return nil
		}, nil)
	}
	assert.Zero(t, calls, "no call should execute the wrapped operation while OPEN")
}

func TestBreaker_StateChangeEventPublished(t *testing.T) {
	published := make(chan types.Event, 4)
	b := New(Config{
		FailureThreshold: 1,
		Publish:          func(e types.Event) { published <- e },
	})

	_ = b.Execute(context.Background(), func(context.Context) error { return testErr }, nil)

	select {
	case e := <-published:
		assert.Equal(t, types.EventCircuitStateChanged, e.Type)
		assert.Equal(t, "closed", e.Data["from"])
		assert.Equal(t, "open", e.Data["to"])
	case <-time.After(time.Second):
		t.Fatal("expected a circuit.state.changed event")
	}
}
