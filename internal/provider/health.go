package provider

import (
	"sync"
	"time"

	"github.com/agentmesh/core/pkg/types"
)

// healthState derives a provider's thermal/memory gating signal from
// its recent failure streak. Real thermal/memory telemetry (e.g. local
// inference hardware) is out of scope for the hosted-API adapters in
// this package; streak-based degradation is the minimum spec §4.4
// needs to exercise the Chain's health-gating branch for any adapter
// that has no native signal to report.
type healthState struct {
	mu           sync.Mutex
	failStreak   int
	lastFailure  time.Time
	lastSuccess  time.Time
}

func (h *healthState) recordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failStreak++
	h.lastFailure = time.Now()
}

func (h *healthState) recordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failStreak = 0
	h.lastSuccess = time.Now()
}

func (h *healthState) thermal() types.ThermalStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.failStreak >= 10:
		return types.ThermalCritical
	case h.failStreak >= 5:
		return types.ThermalThrottled
	case h.failStreak >= 2:
		return types.ThermalWarm
	default:
		return types.ThermalNominal
	}
}

func (h *healthState) memory() types.MemoryStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failStreak >= 10 {
		return types.MemoryCritical
	}
	if h.failStreak >= 5 {
		return types.MemoryPressured
	}
	return types.MemoryOK
}
