package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting runtime metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Provider fallback-chain request performance and token usage (C4)
//   - Tool execution and mapping outcomes (C5)
//   - Circuit breaker state and trip counts (C3)
//   - Dispatch decisions and coordination-session concurrency (C6, C10)
//   - Agent runtime iterations and orchestrator run outcomes (C7, C8)
//   - Audit artifact sealing (C9) and error rates by component
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.ProviderRequest("anthropic", "claude-3-opus", "success", 0.42)
type Metrics struct {
	// ProviderRequestDuration measures provider generate() latency in seconds.
	// Labels: provider, model
	ProviderRequestDuration *prometheus.HistogramVec

	// ProviderRequestCounter counts provider requests by provider, model, and status.
	// Labels: provider, model, status (success|error)
	ProviderRequestCounter *prometheus.CounterVec

	// ProviderFallbackCounter counts chain fallbacks to the next provider.
	// Labels: from_provider, to_provider
	ProviderFallbackCounter *prometheus.CounterVec

	// ProviderTokensUsed tracks token consumption by provider, model, and kind.
	// Labels: provider, model, kind (prompt|completion)
	ProviderTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by tool name and status.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ToolMappingCounter counts mapper resolutions by outcome.
	// Labels: outcome (resolved|fallback|failed), from_cache (true|false)
	ToolMappingCounter *prometheus.CounterVec

	// CircuitStateTransitions counts circuit breaker transitions.
	// Labels: resource, from, to
	CircuitStateTransitions *prometheus.CounterVec

	// CircuitOpenRejections counts calls fast-failed while a circuit is open.
	// Labels: resource
	CircuitOpenRejections *prometheus.CounterVec

	// DispatchDecisions counts dispatcher agent selections.
	// Labels: selected_agent
	DispatchDecisions *prometheus.CounterVec

	// SessionConcurrency is a gauge of in-flight task assignments per session.
	// Labels: session_id
	SessionConcurrency *prometheus.GaugeVec

	// SessionBusyRejections counts assignments refused at the concurrency cap.
	// Labels: session_id
	SessionBusyRejections *prometheus.CounterVec

	// RuntimeIterations measures how many plan/execute/evaluate iterations a
	// task ran before reaching a terminal phase.
	// Labels: outcome (done|failed|cancelled)
	RuntimeIterations *prometheus.HistogramVec

	// OrchestratorRunDuration measures end-to-end orchestrator run latency.
	// Labels: strategy
	OrchestratorRunDuration *prometheus.HistogramVec

	// OrchestratorRunCounter counts orchestrator runs by strategy and outcome.
	// Labels: strategy, outcome (ok|partial_failure|failed)
	OrchestratorRunCounter *prometheus.CounterVec

	// AuditArtifactsSealed counts finalized audit artifacts by digest algorithm.
	// Labels: algo
	AuditArtifactsSealed *prometheus.CounterVec

	// RateLimiterRejections counts requests refused by the sliding-window limiter.
	// Labels: key
	RateLimiterRejections *prometheus.CounterVec

	// EventBusDropped counts events dropped from a full subscriber queue.
	// Labels: topic
	EventBusDropped *prometheus.CounterVec

	// ErrorCounter tracks errors by component and error kind.
	// Labels: component, error_kind
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics with the default
// registry. Call once at process startup.
func NewMetrics() *Metrics {
	return &Metrics{
		ProviderRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_provider_request_duration_seconds",
				Help:    "Duration of provider generate() calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		ProviderRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_provider_requests_total",
				Help: "Total provider requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		ProviderFallbackCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_provider_fallbacks_total",
				Help: "Total fallback-chain advances to the next provider",
			},
			[]string{"from_provider", "to_provider"},
		),

		ProviderTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_provider_tokens_total",
				Help: "Total tokens used by provider, model, and kind",
			},
			[]string{"provider", "model", "kind"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_executions_total",
				Help: "Total tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ToolMappingCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_mappings_total",
				Help: "Total tool-mapper resolutions by outcome and cache hit",
			},
			[]string{"outcome", "from_cache"},
		),

		CircuitStateTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_circuit_state_transitions_total",
				Help: "Total circuit breaker state transitions",
			},
			[]string{"resource", "from", "to"},
		),

		CircuitOpenRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_circuit_open_rejections_total",
				Help: "Total calls fast-failed while a circuit was open",
			},
			[]string{"resource"},
		),

		DispatchDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_dispatch_decisions_total",
				Help: "Total dispatch decisions by selected agent",
			},
			[]string{"selected_agent"},
		),

		SessionConcurrency: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentcore_session_concurrency",
				Help: "Current in-flight task assignments per coordination session",
			},
			[]string{"session_id"},
		),

		SessionBusyRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_session_busy_rejections_total",
				Help: "Total task assignments refused at a session's concurrency cap",
			},
			[]string{"session_id"},
		),

		RuntimeIterations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_runtime_iterations",
				Help:    "Plan/execute/evaluate iterations run before a terminal phase",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
			[]string{"outcome"},
		),

		OrchestratorRunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_orchestrator_run_duration_seconds",
				Help:    "Duration of orchestrator runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"strategy"},
		),

		OrchestratorRunCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_orchestrator_runs_total",
				Help: "Total orchestrator runs by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),

		AuditArtifactsSealed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_audit_artifacts_sealed_total",
				Help: "Total audit artifacts finalized by digest algorithm",
			},
			[]string{"algo"},
		),

		RateLimiterRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_rate_limiter_rejections_total",
				Help: "Total requests refused by the sliding-window rate limiter",
			},
			[]string{"key"},
		),

		EventBusDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_event_bus_dropped_total",
				Help: "Total events dropped from a full subscriber queue",
			},
			[]string{"topic"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_errors_total",
				Help: "Total errors by component and error kind",
			},
			[]string{"component", "error_kind"},
		),
	}
}

// ProviderRequest records one provider call's outcome and latency.
func (m *Metrics) ProviderRequest(provider, model, status string, durationSeconds float64) {
	m.ProviderRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
}

// ProviderFallback records a chain advance from one provider to the next.
func (m *Metrics) ProviderFallback(from, to string) {
	m.ProviderFallbackCounter.WithLabelValues(from, to).Inc()
}

// ProviderTokens records prompt/completion token usage for one call.
func (m *Metrics) ProviderTokens(provider, model string, promptTokens, completionTokens int) {
	m.ProviderTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	m.ProviderTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// ToolExecution records one tool invocation's outcome and latency.
func (m *Metrics) ToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// ToolMapping records one mapper resolution's outcome.
func (m *Metrics) ToolMapping(outcome string, fromCache bool) {
	m.ToolMappingCounter.WithLabelValues(outcome, boolLabel(fromCache)).Inc()
}

// CircuitTransition records a circuit breaker state change.
func (m *Metrics) CircuitTransition(resource, from, to string) {
	m.CircuitStateTransitions.WithLabelValues(resource, from, to).Inc()
}

// CircuitOpenRejection records a call fast-failed by an open circuit.
func (m *Metrics) CircuitOpenRejection(resource string) {
	m.CircuitOpenRejections.WithLabelValues(resource).Inc()
}

// DispatchDecision records which agent a dispatch decision selected.
func (m *Metrics) DispatchDecision(selectedAgent string) {
	m.DispatchDecisions.WithLabelValues(selectedAgent).Inc()
}

// SetSessionConcurrency sets the current in-flight count for a session.
func (m *Metrics) SetSessionConcurrency(sessionID string, n int) {
	m.SessionConcurrency.WithLabelValues(sessionID).Set(float64(n))
}

// SessionBusyRejection records an assignment refused at the concurrency cap.
func (m *Metrics) SessionBusyRejection(sessionID string) {
	m.SessionBusyRejections.WithLabelValues(sessionID).Inc()
}

// RecordRuntimeIterations records how many iterations a task ran.
func (m *Metrics) RecordRuntimeIterations(outcome string, iterations int) {
	m.RuntimeIterations.WithLabelValues(outcome).Observe(float64(iterations))
}

// OrchestratorRun records one orchestrator run's strategy, outcome, and duration.
func (m *Metrics) OrchestratorRun(strategy, outcome string, durationSeconds float64) {
	m.OrchestratorRunCounter.WithLabelValues(strategy, outcome).Inc()
	m.OrchestratorRunDuration.WithLabelValues(strategy).Observe(durationSeconds)
}

// AuditArtifactSealed records one Finalize call by digest algorithm.
func (m *Metrics) AuditArtifactSealed(algo string) {
	m.AuditArtifactsSealed.WithLabelValues(algo).Inc()
}

// RateLimiterRejection records one rate-limited request.
func (m *Metrics) RateLimiterRejection(key string) {
	m.RateLimiterRejections.WithLabelValues(key).Inc()
}

// EventDropped records one event dropped from a full subscriber queue.
func (m *Metrics) EventDropped(topic string) {
	m.EventBusDropped.WithLabelValues(topic).Inc()
}

// RecordError records an error by owning component and classified kind.
func (m *Metrics) RecordError(component, errorKind string) {
	m.ErrorCounter.WithLabelValues(component, errorKind).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
