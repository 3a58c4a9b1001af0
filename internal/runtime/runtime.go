// Package runtime implements the agent runtime (C7): a bounded
// plan/execute/evaluate/iterate/reflect state machine that owns one
// task's mutable TaskState, routes each planned step through the C4
// provider chain or the C5 tool registry/mapper, and emits lifecycle
// events on C2. Grounded on the teacher's internal/agent.AgenticLoop: a
// channel-driven goroutine running an explicit phase state machine, a
// per-run mutable state struct, a wall-time-derived context, and a
// select-on-ctx.Done() cancellation check before every phase.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentmesh/core/internal/provider"
	"github.com/agentmesh/core/internal/toolkit"
	"github.com/agentmesh/core/pkg/types"
)

// Planner produces the ordered step plan for a task. The default
// ModelPlanner asks the provider chain for a plan; callers may supply a
// fixed or rule-based planner instead (e.g. in tests, or for task kinds
// with a predetermined recipe).
type Planner interface {
	Plan(ctx context.Context, task types.Task, state *types.TaskState) ([]types.PlannedStep, error)
}

// PlannerFunc adapts a function to a Planner.
type PlannerFunc func(ctx context.Context, task types.Task, state *types.TaskState) ([]types.PlannedStep, error)

func (f PlannerFunc) Plan(ctx context.Context, task types.Task, state *types.TaskState) ([]types.PlannedStep, error) {
	return f(ctx, task, state)
}

// Evaluator classifies the outcome of one executed step.
type Evaluator interface {
	Evaluate(step types.PlannedStep, record types.StepRecord) Verdict
}

// Verdict is the Evaluate phase's classification of a step's outcome.
type Verdict string

const (
	VerdictContinue Verdict = "continue"
	VerdictRetry    Verdict = "retry"
	VerdictReplan   Verdict = "replan"
	VerdictFail     Verdict = "fail"
)

// DefaultEvaluator continues on success, retries retryable failures up
// to the step's retry cap, and fails fast on everything else.
type DefaultEvaluator struct {
	MaxStepRetries int
}

func (e DefaultEvaluator) Evaluate(step types.PlannedStep, record types.StepRecord) Verdict {
	if record.Success {
		return VerdictContinue
	}
	if record.Error != nil && record.Error.Kind.Retryable() {
		return VerdictRetry
	}
	return VerdictFail
}

// Config configures a Runtime.
type Config struct {
	Chain          *provider.Chain
	Tools          *toolkit.Registry
	Mapper         *toolkit.Mapper
	Planner        Planner
	Evaluator      Evaluator
	MaxIterations  int
	MaxStepRetries int
	Publish        func(types.Event)
	Logger         *slog.Logger
}

// Runtime drives one task through the plan/execute/evaluate/iterate
// state machine. A Runtime is stateless across tasks; all mutable state
// lives in the TaskState returned by Run.
type Runtime struct {
	chain          *provider.Chain
	tools          *toolkit.Registry
	mapper         *toolkit.Mapper
	planner        Planner
	evaluator      Evaluator
	maxIterations  int
	maxStepRetries int
	publish        func(types.Event)
	logger         *slog.Logger
}

// New builds a Runtime. MaxIterations defaults to 25; MaxStepRetries
// defaults to 2.
func New(cfg Config) *Runtime {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 25
	}
	if cfg.MaxStepRetries < 0 {
		cfg.MaxStepRetries = 0
	}
	if cfg.Publish == nil {
		cfg.Publish = func(types.Event) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = DefaultEvaluator{MaxStepRetries: cfg.MaxStepRetries}
	}
	return &Runtime{
		chain:          cfg.Chain,
		tools:          cfg.Tools,
		mapper:         cfg.Mapper,
		planner:        cfg.Planner,
		evaluator:      cfg.Evaluator,
		maxIterations:  cfg.MaxIterations,
		maxStepRetries: cfg.MaxStepRetries,
		publish:        cfg.Publish,
		logger:         cfg.Logger,
	}
}

// Run drives task through analyze -> plan -> execute -> evaluate ->
// iterate -> done/failed/cancelled, returning the final TaskState. Run
// never returns an error itself; failures are recorded on
// TaskState.Error and reflected in TaskState.Phase, matching the
// teacher's pattern of reporting loop failures as a terminal channel
// value rather than a Go error from Run.
func (rt *Runtime) Run(ctx context.Context, task types.Task) *types.TaskState {
	state := &types.TaskState{
		TaskID:    task.ID,
		Phase:     types.PhaseAnalyze,
		StartedAt: time.Now(),
	}

	rt.publish(rt.event(types.EventAgentStarted, task, map[string]any{"taskId": task.ID}))

	for {
		if ctx.Err() != nil {
			state.Phase = types.PhaseCancelled
			state.Error = types.NewCoreError(types.ErrCancelled, "task cancelled", ctx.Err())
			rt.emitTerminal(task, state)
			return state
		}

		switch state.Phase {
		case types.PhaseAnalyze:
			rt.analyze(task, state)
		case types.PhasePlan:
			if err := rt.plan(ctx, task, state); err != nil {
				state.Phase = types.PhaseFailed
				state.Error = types.NewCoreError(types.ErrInternal, "planning failed", err)
			}
		case types.PhaseExecute:
			rt.execute(ctx, task, state)
		case types.PhaseEvaluate:
			rt.evaluate(state)
		case types.PhaseIterate:
			rt.iterate(task, state)
		case types.PhaseDone, types.PhaseFailed, types.PhaseCancelled:
			rt.emitTerminal(task, state)
			return state
		default:
			state.Phase = types.PhaseFailed
			state.Error = types.NewCoreError(types.ErrInternal, fmt.Sprintf("unknown phase %q", state.Phase), nil)
		}
	}
}

func (rt *Runtime) analyze(task types.Task, state *types.TaskState) {
	state.Phase = types.PhasePlan
}

func (rt *Runtime) plan(ctx context.Context, task types.Task, state *types.TaskState) error {
	planner := rt.planner
	if planner == nil {
		planner = PlannerFunc(rt.defaultPlan)
	}
	steps, err := planner.Plan(ctx, task, state)
	if err != nil {
		return err
	}
	if err := validatePlan(steps, rt.tools, rt.mapper); err != nil {
		return err
	}
	state.PlannedSteps = steps
	state.CurrentStep = 0
	state.Phase = types.PhaseExecute
	return nil
}

// defaultPlan produces a single model step over the task's input when
// the caller supplies no Planner, mirroring the teacher's loop default
// of one LLM turn when no explicit tool plan is given.
func (rt *Runtime) defaultPlan(ctx context.Context, task types.Task, state *types.TaskState) ([]types.PlannedStep, error) {
	return []types.PlannedStep{
		{ID: "step-1", Kind: types.StepKindModel, Target: "default", Input: task.Input},
	}, nil
}

func (rt *Runtime) execute(ctx context.Context, task types.Task, state *types.TaskState) {
	if ctx.Err() != nil {
		state.Phase = types.PhaseCancelled
		state.Error = types.NewCoreError(types.ErrCancelled, "cancelled before step", ctx.Err())
		return
	}
	if state.CurrentStep >= len(state.PlannedSteps) {
		state.Phase = types.PhaseDone
		return
	}

	step := state.PlannedSteps[state.CurrentStep]
	started := time.Now()
	record := types.StepRecord{ID: step.ID, Kind: step.Kind, Input: step.Input, StartedAt: started}

	switch step.Kind {
	case types.StepKindModel:
		rt.executeModelStep(ctx, step, &record)
	case types.StepKindTool:
		rt.executeToolStep(ctx, step, &record)
	default:
		record.Success = false
		record.Error = types.NewCoreError(types.ErrValidation, fmt.Sprintf("unsupported step kind %q", step.Kind), nil)
	}

	record.EndedAt = time.Now()
	record.LatencyMs = record.EndedAt.Sub(started).Milliseconds()
	state.StepRecords = append(state.StepRecords, record)
	state.Phase = types.PhaseEvaluate
}

func (rt *Runtime) executeModelStep(ctx context.Context, step types.PlannedStep, record *types.StepRecord) {
	if rt.chain == nil {
		record.Error = types.NewCoreError(types.ErrProviderUnavailable, "no provider chain configured", nil)
		return
	}
	prompt := fmt.Sprintf("%v", step.Input)
	result, err := rt.chain.Generate(ctx, prompt, provider.GenerateOptions{})
	if err != nil {
		record.Error = types.NewCoreError(classifyStepError(err), "model step failed", err)
		return
	}
	record.Success = true
	record.Output = result
}

func (rt *Runtime) executeToolStep(ctx context.Context, step types.PlannedStep, record *types.StepRecord) {
	if rt.tools == nil {
		record.Error = types.NewCoreError(types.ErrToolNotFound, "no tool registry configured", nil)
		return
	}
	params, _ := marshalInput(step.Input)
	if _, ok := rt.tools.Get(step.Target); !ok && rt.mapper != nil {
		mapping := rt.mapper.Resolve(ctx, types.UnknownToolRequest{ToolType: step.Target, Parameters: inputAsMap(step.Input)})
		if mapping.Success && mapping.MappedTool != nil {
			step.Target = mapping.MappedTool.Type
		}
	}
	result, err := rt.tools.Execute(ctx, step.Target, params)
	if err != nil {
		record.Error = types.NewCoreError(classifyStepError(err), "tool step failed", err)
		return
	}
	record.Success = !result.IsError
	record.Output = result
	if result.IsError {
		record.Error = types.NewCoreError(types.ErrToolExecutionFailed, "tool reported an error result", nil)
	}
}

func (rt *Runtime) evaluate(state *types.TaskState) {
	idx := len(state.StepRecords) - 1
	if idx < 0 {
		state.Phase = types.PhaseIterate
		return
	}
	step := state.PlannedSteps[state.CurrentStep]
	record := state.StepRecords[idx]

	switch rt.evaluator.Evaluate(step, record) {
	case VerdictContinue:
		state.CurrentStep++
		state.Phase = types.PhaseIterate
	case VerdictRetry:
		if rt.stepRetryCount(state, step.ID) >= rt.maxStepRetries {
			state.Phase = types.PhaseFailed
			state.Error = record.Error
			return
		}
		state.Phase = types.PhaseExecute
	case VerdictReplan:
		state.PlannedSteps = state.PlannedSteps[:state.CurrentStep]
		state.Phase = types.PhasePlan
	default:
		state.Phase = types.PhaseFailed
		state.Error = record.Error
	}
}

func (rt *Runtime) stepRetryCount(state *types.TaskState, stepID string) int {
	count := 0
	for _, r := range state.StepRecords {
		if r.ID == stepID && !r.Success {
			count++
		}
	}
	// The just-appended failing record counts as attempt 1; subtract it
	// so the first retry compares against zero prior retries.
	if count > 0 {
		count--
	}
	return count
}

func (rt *Runtime) iterate(task types.Task, state *types.TaskState) {
	state.Iterations++
	if state.Iterations > rt.maxIterations || (task.Budget.WallMs > 0 && state.WallElapsed(time.Now()) > time.Duration(task.Budget.WallMs)*time.Millisecond) {
		state.Phase = types.PhaseFailed
		state.Error = types.NewCoreError(types.ErrBudgetExceeded, "iteration or wall-time budget exceeded", nil)
		return
	}
	if task.Budget.MaxSteps > 0 && len(state.StepRecords) >= task.Budget.MaxSteps {
		state.Phase = types.PhaseFailed
		state.Error = types.NewCoreError(types.ErrBudgetExceeded, "step budget exceeded", nil)
		return
	}
	if state.CurrentStep >= len(state.PlannedSteps) {
		state.Phase = types.PhaseDone
		return
	}
	state.Phase = types.PhaseExecute
}

func (rt *Runtime) emitTerminal(task types.Task, state *types.TaskState) {
	switch state.Phase {
	case types.PhaseDone:
		rt.publish(rt.event(types.EventAgentCompleted, task, map[string]any{
			"resultPayload": state.ResultPayload,
			"metrics":       map[string]any{"iterations": state.Iterations, "steps": len(state.StepRecords)},
		}))
	case types.PhaseFailed, types.PhaseCancelled:
		data := map[string]any{"phase": string(state.Phase)}
		if state.Error != nil {
			data["errorCode"] = string(state.Error.Kind)
			data["status"] = state.Error.Status
		}
		rt.publish(rt.event(types.EventAgentFailed, task, data))
	}
}

func (rt *Runtime) event(t types.EventType, task types.Task, data map[string]any) types.Event {
	return types.Event{
		SpecVersion:   types.SpecVersion,
		Type:          t,
		Source:        "runtime",
		ID:            task.ID + ":" + string(t),
		Time:          time.Now(),
		CorrelationID: task.CorrelationID,
		Data:          data,
	}
}

func classifyStepError(err error) types.ErrorKind {
	if ce, ok := err.(*types.CoreError); ok {
		return ce.Kind
	}
	return types.ErrInternal
}
