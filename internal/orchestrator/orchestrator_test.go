package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/core/internal/dispatch"
	"github.com/agentmesh/core/internal/provider"
	"github.com/agentmesh/core/internal/runtime"
	"github.com/agentmesh/core/pkg/types"
)

type scriptedProvider struct {
	name string
	fail map[string]bool
}

func (p *scriptedProvider) Name() string { return p.name }
func (p *scriptedProvider) Generate(ctx context.Context, prompt string, opts provider.GenerateOptions) (types.ProviderResult, error) {
	if p.fail[prompt] {
		return types.ProviderResult{}, types.NewCoreError(types.ErrValidation, "scripted failure for "+prompt, nil)
	}
	return types.ProviderResult{Text: "ok:" + prompt}, nil
}
func (p *scriptedProvider) ThermalStatus() types.ThermalStatus { return types.ThermalNominal }
func (p *scriptedProvider) MemoryStatus() types.MemoryStatus   { return types.MemoryOK }
func (p *scriptedProvider) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{}
}

func newTestOrchestrator(t *testing.T, fail map[string]bool, replan Replanner) *Orchestrator {
	t.Helper()
	chain := newTestChain(&scriptedProvider{name: "fake", fail: fail})
	rt := runtime.New(runtime.Config{Chain: chain})
	d := dispatch.New(dispatch.Config{Agents: []types.AgentSpec{{ID: "a1", Capabilities: []string{"x"}, TrustLevel: 5}}})
	return New(Config{Dispatcher: d, Runtime: rt, Replan: replan})
}

func planNode(id string, deps ...string) Node {
	return Node{ID: id, Task: types.Task{ID: id, Input: id, RequiredCapabilities: []string{"x"}}, Dependencies: deps}
}

func TestOrchestrator_SequentialAbortsOnFirstFailure(t *testing.T) {
	o := newTestOrchestrator(t, map[string]bool{"b": true}, nil)
	plan := []Node{planNode("a"), planNode("b", "a"), planNode("c", "b")}

	result := o.Run(context.Background(), plan, StrategySequential)
	require.NotNil(t, result.Error)
	assert.Equal(t, types.PhaseDone, result.NodeStates["a"].Phase)
	assert.Equal(t, types.PhaseFailed, result.NodeStates["b"].Phase)
	_, ranC := result.NodeStates["c"]
	assert.False(t, ranC)
}

func TestOrchestrator_ParallelCollectsAllResultsOnPartialFailure(t *testing.T) {
	o := newTestOrchestrator(t, map[string]bool{"b": true}, nil)
	plan := []Node{planNode("a"), planNode("b"), planNode("c")}

	result := o.Run(context.Background(), plan, StrategyParallel)
	assert.True(t, result.PartialFailure)
	require.Len(t, result.NodeStates, 3)
	assert.Equal(t, types.PhaseDone, result.NodeStates["a"].Phase)
	assert.Equal(t, types.PhaseFailed, result.NodeStates["b"].Phase)
	assert.Equal(t, types.PhaseDone, result.NodeStates["c"].Phase)
}

func TestOrchestrator_HierarchicalEscalatesToCompensator(t *testing.T) {
	o := newTestOrchestrator(t, map[string]bool{"b": true}, nil)
	plan := []Node{
		planNode("a"),
		{ID: "b", Task: types.Task{ID: "b", Input: "b", RequiredCapabilities: []string{"x"}}, Dependencies: []string{"a"}, Compensator: "fallback"},
		{ID: "fallback", Task: types.Task{ID: "fallback", Input: "fallback", RequiredCapabilities: []string{"x"}}},
	}

	result := o.Run(context.Background(), plan, StrategyHierarchical)
	assert.Nil(t, result.Error)
	assert.Equal(t, types.PhaseDone, result.NodeStates["fallback"].Phase)
}

func TestOrchestrator_HierarchicalAbortsWithoutCompensator(t *testing.T) {
	o := newTestOrchestrator(t, map[string]bool{"b": true}, nil)
	plan := []Node{planNode("a"), planNode("b", "a")}

	result := o.Run(context.Background(), plan, StrategyHierarchical)
	require.NotNil(t, result.Error)
}

func TestOrchestrator_AdaptiveReplansOnceAfterFailure(t *testing.T) {
	replanCalls := 0
	replan := func(failed Node, remaining []Node) []Node {
		replanCalls++
		return []Node{planNode("recovery")}
	}
	o := newTestOrchestrator(t, map[string]bool{"b": true}, replan)
	plan := []Node{planNode("a"), planNode("b", "a"), planNode("c", "b")}

	result := o.Run(context.Background(), plan, StrategyAdaptive)
	assert.Nil(t, result.Error)
	assert.Equal(t, 1, replanCalls)
	assert.Equal(t, types.PhaseDone, result.NodeStates["recovery"].Phase)
}

func TestOrchestrator_InvalidPlanCycleRejected(t *testing.T) {
	o := newTestOrchestrator(t, nil, nil)
	plan := []Node{
		{ID: "a", Task: types.Task{ID: "a", RequiredCapabilities: []string{"x"}}, Dependencies: []string{"b"}},
		{ID: "b", Task: types.Task{ID: "b", RequiredCapabilities: []string{"x"}}, Dependencies: []string{"a"}},
	}
	result := o.Run(context.Background(), plan, StrategySequential)
	require.NotNil(t, result.Error)
}
