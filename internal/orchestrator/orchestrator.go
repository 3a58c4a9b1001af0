// Package orchestrator implements the master orchestrator (C8): it owns
// a directed plan of sub-agent nodes, delegates each node's subtask to
// the C6 dispatcher and C7 runtime, and merges the returned per-node
// task states into one composite result. Grounded on the teacher's
// internal/multiagent.Orchestrator — agent registration plus a
// select/process/merge pipeline over sub-agent runtimes — generalized
// from "route one chat message to one specialist agent" to "execute a
// dependency-ordered plan of sub-agent tasks under one of four
// strategies".
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentmesh/core/internal/dispatch"
	"github.com/agentmesh/core/internal/runtime"
	"github.com/agentmesh/core/pkg/types"
)

// Strategy selects how the orchestrator reacts to a sub-agent's failure
// and how much concurrency it allows across the plan.
type Strategy string

const (
	StrategySequential  Strategy = "sequential"
	StrategyParallel    Strategy = "parallel"
	StrategyHierarchical Strategy = "hierarchical"
	StrategyAdaptive    Strategy = "adaptive"
)

// Node is one entry in the orchestrator's directed sub-agent plan.
type Node struct {
	ID           string
	Task         types.Task
	Dependencies []string
	// Compensator names another node to run instead of aborting when
	// this node fails, consulted only under StrategyHierarchical.
	Compensator string
}

// Replanner regenerates the remaining, not-yet-run nodes after a
// failure under StrategyAdaptive. Called at most once per Run.
type Replanner func(failed Node, remaining []Node) []Node

// Result is the merged outcome of one orchestrator Run.
type Result struct {
	NodeStates     map[string]*types.TaskState
	PartialFailure bool
	Error          *types.CoreError
}

// Config configures an Orchestrator.
type Config struct {
	Dispatcher *dispatch.Dispatcher
	Runtime    *runtime.Runtime
	Isolation  types.Isolation
	Replan     Replanner
	Publish    func(types.Event)
}

// Orchestrator executes a Node plan under one Strategy.
type Orchestrator struct {
	dispatcher *dispatch.Dispatcher
	rt         *runtime.Runtime
	isolation  types.Isolation
	replan     Replanner
	publish    func(types.Event)
}

// New builds an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Isolation == "" {
		cfg.Isolation = types.IsolationModerate
	}
	if cfg.Publish == nil {
		cfg.Publish = func(types.Event) {}
	}
	return &Orchestrator{
		dispatcher: cfg.Dispatcher,
		rt:         cfg.Runtime,
		isolation:  cfg.Isolation,
		replan:     cfg.Replan,
		publish:    cfg.Publish,
	}
}

// Run executes plan under strategy and returns the merged Result.
func (o *Orchestrator) Run(ctx context.Context, plan []Node, strategy Strategy) Result {
	switch strategy {
	case StrategyParallel:
		return o.runParallel(ctx, plan)
	case StrategyHierarchical:
		return o.runHierarchical(ctx, plan)
	case StrategyAdaptive:
		return o.runAdaptive(ctx, plan)
	default:
		return o.runSequential(ctx, plan)
	}
}

// runSequential runs nodes in topological order, aborting the whole
// plan with the first failure (spec §4.8: "sequential aborts with the
// failure").
func (o *Orchestrator) runSequential(ctx context.Context, plan []Node) Result {
	ordered, err := topoSort(plan)
	states := map[string]*types.TaskState{}
	if err != nil {
		return Result{NodeStates: states, Error: types.NewCoreError(types.ErrValidation, "invalid plan", err)}
	}
	for _, node := range ordered {
		state := o.runNode(ctx, node)
		states[node.ID] = state
		if state.Phase != types.PhaseDone {
			return Result{NodeStates: states, Error: state.Error}
		}
	}
	return Result{NodeStates: states}
}

// runParallel runs each dependency tier concurrently, collecting every
// node's result even after a failure (spec §4.8: "collects all results
// and reports partial failure").
func (o *Orchestrator) runParallel(ctx context.Context, plan []Node) Result {
	tiers, err := topoTiers(plan)
	states := map[string]*types.TaskState{}
	if err != nil {
		return Result{NodeStates: states, Error: types.NewCoreError(types.ErrValidation, "invalid plan", err)}
	}
	partial := false
	for _, tier := range tiers {
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, node := range tier {
			wg.Add(1)
			go func(n Node) {
				defer wg.Done()
				state := o.runNode(ctx, n)
				mu.Lock()
				states[n.ID] = state
				if state.Phase != types.PhaseDone {
					partial = true
				}
				mu.Unlock()
			}(node)
		}
		wg.Wait()
	}
	result := Result{NodeStates: states, PartialFailure: partial}
	if partial {
		result.Error = types.NewCoreError(types.ErrInternal, "one or more sub-agents failed", nil)
	}
	return result
}

// runHierarchical runs nodes sequentially; on a node's failure it
// escalates to that node's Compensator instead of aborting, matching
// spec §4.8: "escalates to the parent node's compensator".
func (o *Orchestrator) runHierarchical(ctx context.Context, plan []Node) Result {
	ordered, err := topoSort(plan)
	states := map[string]*types.TaskState{}
	if err != nil {
		return Result{NodeStates: states, Error: types.NewCoreError(types.ErrValidation, "invalid plan", err)}
	}
	byID := make(map[string]Node, len(plan))
	for _, n := range plan {
		byID[n.ID] = n
	}
	for _, node := range ordered {
		state := o.runNode(ctx, node)
		states[node.ID] = state
		if state.Phase != types.PhaseDone {
			comp, ok := byID[node.Compensator]
			if !ok {
				return Result{NodeStates: states, Error: state.Error}
			}
			compState := o.runNode(ctx, comp)
			states[comp.ID] = compState
			if compState.Phase != types.PhaseDone {
				return Result{NodeStates: states, Error: compState.Error}
			}
		}
	}
	return Result{NodeStates: states}
}

// runAdaptive behaves like runSequential but, on the first failure,
// consults Replan for a revised tail of the plan instead of aborting
// (spec §4.8: "adaptive may replan once").
func (o *Orchestrator) runAdaptive(ctx context.Context, plan []Node) Result {
	ordered, err := topoSort(plan)
	states := map[string]*types.TaskState{}
	if err != nil {
		return Result{NodeStates: states, Error: types.NewCoreError(types.ErrValidation, "invalid plan", err)}
	}
	replanned := false
	for i := 0; i < len(ordered); i++ {
		node := ordered[i]
		state := o.runNode(ctx, node)
		states[node.ID] = state
		if state.Phase != types.PhaseDone {
			if replanned || o.replan == nil {
				return Result{NodeStates: states, Error: state.Error}
			}
			remaining := ordered[i+1:]
			revised, rerr := topoSort(o.replan(node, remaining))
			if rerr != nil {
				return Result{NodeStates: states, Error: state.Error}
			}
			ordered = append(ordered[:i+1:i+1], revised...)
			replanned = true
		}
	}
	return Result{NodeStates: states}
}

// runNode dispatches an agent for node.Task and drives it through the
// runtime, returning its terminal TaskState. A node whose task already
// names an agent (via RequiredCapabilities resolving to exactly one
// dispatcher candidate) still goes through the dispatcher so decisions
// remain explainable via C6's Explain.
func (o *Orchestrator) runNode(ctx context.Context, node Node) *types.TaskState {
	if o.dispatcher != nil {
		if _, err := o.dispatcher.Select(node.ID, node.Task, o.isolation); err != nil {
			return &types.TaskState{
				TaskID:    node.Task.ID,
				Phase:     types.PhaseFailed,
				Error:     types.NewCoreError(types.ErrValidation, "dispatch failed", err),
				StartedAt: time.Now(),
			}
		}
	}
	if o.rt == nil {
		return &types.TaskState{
			TaskID:    node.Task.ID,
			Phase:     types.PhaseFailed,
			Error:     types.NewCoreError(types.ErrInternal, "no runtime configured", nil),
			StartedAt: time.Now(),
		}
	}
	return o.rt.Run(ctx, node.Task)
}

func topoSort(nodes []Node) ([]Node, error) {
	tiers, err := topoTiers(nodes)
	if err != nil {
		return nil, err
	}
	ordered := make([]Node, 0, len(nodes))
	for _, tier := range tiers {
		ordered = append(ordered, tier...)
	}
	return ordered, nil
}

// topoTiers groups nodes into dependency tiers: tier 0 has no
// dependencies, tier N depends only on nodes in tiers < N. Nodes within
// a tier are sorted by ID for deterministic ordering.
func topoTiers(nodes []Node) ([][]Node, error) {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		byID[n.ID] = n
	}
	for _, n := range nodes {
		for _, dep := range n.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("node %q depends on unknown node %q", n.ID, dep)
			}
		}
	}

	resolved := map[string]int{} // id -> tier
	var tiers [][]Node
	remaining := make([]Node, len(nodes))
	copy(remaining, nodes)

	for len(remaining) > 0 {
		var ready []Node
		var next []Node
		for _, n := range remaining {
			if allResolved(n.Dependencies, resolved) {
				ready = append(ready, n)
			} else {
				next = append(next, n)
			}
		}
		if len(ready) == 0 {
			return nil, fmt.Errorf("plan contains a dependency cycle")
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i].ID < ready[j].ID })
		tierIdx := len(tiers)
		for _, n := range ready {
			resolved[n.ID] = tierIdx
		}
		tiers = append(tiers, ready)
		remaining = next
	}
	return tiers, nil
}

func allResolved(deps []string, resolved map[string]int) bool {
	for _, d := range deps {
		if _, ok := resolved[d]; !ok {
			return false
		}
	}
	return true
}
