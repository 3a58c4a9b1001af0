package types

// TokenUsage reports the token accounting for one provider call.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// ProviderResult is the uniform result of a provider.generate call (C4).
// Provider identifies the concrete fallback-chain position that produced
// it, so callers and audit records can tell which provider actually
// answered after retries/fallbacks.
type ProviderResult struct {
	Text         string     `json:"text"`
	Provider     string     `json:"provider"`
	Model        string     `json:"model"`
	Usage        TokenUsage `json:"usage"`
	LatencyMs    int64      `json:"latencyMs"`
	FinishReason string     `json:"finishReason"`
}

// ThermalStatus and MemoryStatus gate provider selection in the fallback
// chain (spec §4.4: "skip providers reporting critical"). Grounded on no
// single teacher file — the spec only names the gating behavior, not the
// enum — so these are a minimal, spec-literal enumeration (SPEC_FULL §12.1).
type ThermalStatus string

const (
	ThermalNominal    ThermalStatus = "nominal"
	ThermalWarm       ThermalStatus = "warm"
	ThermalThrottled  ThermalStatus = "throttled"
	ThermalCritical   ThermalStatus = "critical"
)

type MemoryStatus string

const (
	MemoryOK        MemoryStatus = "ok"
	MemoryPressured MemoryStatus = "pressured"
	MemoryCritical  MemoryStatus = "critical"
)

// HealthReport is a provider's self-reported resource status, consulted
// by the fallback chain before a provider is tried.
type HealthReport struct {
	Thermal ThermalStatus
	Memory  MemoryStatus
}

// Critical reports whether either axis of the report is in the critical
// band, disqualifying the provider for this chain invocation.
func (h HealthReport) Critical() bool {
	return h.Thermal == ThermalCritical || h.Memory == MemoryCritical
}

// ProviderCapabilities describes what a provider can do, used by routing
// and by the chain to decide whether a provider is eligible for a
// tool-bearing request.
type ProviderCapabilities struct {
	SupportsTools  bool
	SupportsVision bool
	MaxContext     int
}
