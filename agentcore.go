// Package agentcore is the programmatic surface of the agent runtime:
// CreateAgent builds a single-agent executor over a provider, event bus
// and tool registry (C4/C2/C5), Agent.Execute runs one task through the
// C7 plan/execute/evaluate/iterate/reflect state machine with schema
// validation at the boundary, and Orchestrator composes sub-agents per
// C8's strategies. Grounded on the teacher's top-level wiring in
// cmd/nexus — a CLI that assembles the same packages this file
// assembles programmatically, minus the CLI.
package agentcore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/agentmesh/core/internal/circuit"
	"github.com/agentmesh/core/internal/dispatch"
	"github.com/agentmesh/core/internal/eventbus"
	"github.com/agentmesh/core/internal/orchestrator"
	"github.com/agentmesh/core/internal/provider"
	"github.com/agentmesh/core/internal/runtime"
	"github.com/agentmesh/core/internal/toolkit"
	"github.com/agentmesh/core/pkg/types"
)

// AgentConfig is the construction contract for CreateAgent. Per spec
// §6, a missing Provider is a construction error; EventBus and Tools
// are required the same way since every lifecycle event and tool step
// routes through them.
type AgentConfig struct {
	Provider  provider.Provider
	Providers []provider.Provider // optional extra fallbacks appended after Provider
	Breakers  *circuit.Registry
	EventBus  *eventbus.Bus
	Tools     *toolkit.Registry
	Mapper    *toolkit.Mapper

	InputSchema  json.RawMessage
	OutputSchema json.RawMessage

	ChainConfig    provider.ChainConfig
	MaxIterations  int
	MaxStepRetries int
	Logger         *slog.Logger
}

// Agent is a schema-validated, single-task executor over the C7
// runtime. It is safe for concurrent use: each Execute call runs the
// runtime's own Run, which confines one task's mutable state to the
// calling goroutine.
type Agent struct {
	runtime      *runtime.Runtime
	inputSchema  json.RawMessage
	outputSchema json.RawMessage
}

// CreateAgent validates cfg and assembles an Agent. A nil Provider,
// EventBus, or Tools registry is a construction error, matching spec
// §6's "missing provider is a construction error" made uniform across
// the three required collaborators.
func CreateAgent(cfg AgentConfig) (*Agent, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("agentcore: CreateAgent requires a Provider")
	}
	if cfg.EventBus == nil {
		return nil, fmt.Errorf("agentcore: CreateAgent requires an EventBus")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("agentcore: CreateAgent requires a Tools registry")
	}
	breakers := cfg.Breakers
	if breakers == nil {
		breakers = circuit.NewRegistry(circuit.Config{})
	}

	providers := append([]provider.Provider{cfg.Provider}, cfg.Providers...)
	chain := provider.NewChain(providers, breakers, cfg.ChainConfig)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rt := runtime.New(runtime.Config{
		Chain:          chain,
		Tools:          cfg.Tools,
		Mapper:         cfg.Mapper,
		MaxIterations:  cfg.MaxIterations,
		MaxStepRetries: cfg.MaxStepRetries,
		Publish:        cfg.EventBus.Publish,
		Logger:         logger,
	})

	return &Agent{
		runtime:      rt,
		inputSchema:  cfg.InputSchema,
		outputSchema: cfg.OutputSchema,
	}, nil
}

// Execute validates task.Input against the agent's declared input
// schema, runs the task to a terminal TaskState, validates the result
// payload against the declared output schema on success, and returns
// the terminal state. A schema-validation failure never reaches the
// runtime: it is reported immediately as a validation CoreError, per
// spec §7's "validation ... propagate immediately".
func (a *Agent) Execute(ctx context.Context, task types.Task) (*types.TaskState, error) {
	if err := validateAgainst(a.inputSchema, task.Input); err != nil {
		return nil, types.NewCoreError(types.ErrValidation, "task input failed schema validation", err)
	}

	state := a.runtime.Run(ctx, task)

	if state.Phase == types.PhaseDone {
		if err := validateAgainst(a.outputSchema, state.ResultPayload); err != nil {
			return state, types.NewCoreError(types.ErrValidation, "task output failed schema validation", err)
		}
		return state, nil
	}

	if state.Error != nil {
		return state, state.Error
	}
	return state, types.NewCoreError(types.ErrInternal, fmt.Sprintf("task ended in non-terminal phase %q", state.Phase), nil)
}

func validateAgainst(schema json.RawMessage, value any) error {
	if len(schema) == 0 {
		return nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for schema validation: %w", err)
	}
	return toolkit.ValidateAgainstSchema(schema, encoded)
}

// OrchestratorConfig mirrors orchestrator.Config, re-exported here so
// callers assemble the whole programmatic surface from one package.
type OrchestratorConfig = orchestrator.Config

// Node mirrors orchestrator.Node.
type Node = orchestrator.Node

// Strategy mirrors orchestrator.Strategy.
type Strategy = orchestrator.Strategy

const (
	StrategySequential   = orchestrator.StrategySequential
	StrategyParallel     = orchestrator.StrategyParallel
	StrategyHierarchical = orchestrator.StrategyHierarchical
	StrategyAdaptive     = orchestrator.StrategyAdaptive
)

// Orchestrator composes sub-agents over C6's dispatcher and C7's
// runtime per C8's strategies. It is a thin re-export: the real
// implementation lives in internal/orchestrator, grounded there on the
// teacher's internal/multiagent.Orchestrator.
type Orchestrator = orchestrator.Orchestrator

// NewOrchestrator builds an Orchestrator. cfg.Dispatcher must route to
// agents registered under the same catalog the caller's Agents were
// built from.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return orchestrator.New(cfg)
}

// NewDispatcher re-exports dispatch.New so a caller can assemble C6
// without importing internal/dispatch directly.
func NewDispatcher(cfg dispatch.Config) *dispatch.Dispatcher {
	return dispatch.New(cfg)
}
