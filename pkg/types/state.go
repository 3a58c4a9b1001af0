package types

import "time"

// Phase enumerates the states of the plan/execute/reflect state machine
// owned by the agent runtime (C7). Terminal phases are Done, Failed, and
// Cancelled. Phase only ever advances except for the two documented
// backward edges out of Evaluate.
type Phase string

const (
	PhaseAnalyze   Phase = "analyze"
	PhasePlan      Phase = "plan"
	PhaseExecute   Phase = "execute"
	PhaseEvaluate  Phase = "evaluate"
	PhaseIterate   Phase = "iterate"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Terminal reports whether a phase is a terminal state of the loop.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseDone, PhaseFailed, PhaseCancelled:
		return true
	default:
		return false
	}
}

// StepKind distinguishes the two kinds of work a planned step can
// represent, plus the advisory "reflect" kind emitted at terminal states.
type StepKind string

const (
	StepKindModel   StepKind = "model"
	StepKindTool    StepKind = "tool"
	StepKindReflect StepKind = "reflect"
)

// PlannedStep is one node of the plan produced by the Plan phase. Steps
// form a DAG via Dependencies; a plan is valid only if that DAG has no
// cycles and every referenced tool exists (or is mapper-resolvable).
type PlannedStep struct {
	ID           string   `json:"id"`
	Kind         StepKind `json:"kind"`
	Target       string   `json:"target"`
	Input        any      `json:"input"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// StepRecord is the append-only execution record for one planned step.
// Only the runtime (C7) appends to a TaskState's StepRecords slice.
type StepRecord struct {
	ID        string    `json:"id"`
	Kind      StepKind  `json:"kind"`
	Input     any       `json:"input"`
	Output    any       `json:"output,omitempty"`
	Error     *CoreError `json:"error,omitempty"`
	Success   bool      `json:"success"`
	LatencyMs int64     `json:"latencyMs"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

// ToolCallRecord tracks a tool invocation issued during execution,
// independent of the StepRecord it was produced under (a step may fan
// out into more than one tool call when the mapper substitutes a
// fallback tool).
type ToolCallRecord struct {
	StepID   string           `json:"stepId"`
	ToolName string           `json:"toolName"`
	Mapping  *ToolMappingResult `json:"mapping,omitempty"`
	Result   any              `json:"result,omitempty"`
}

// TaskState is the mutable, per-task envelope owned exclusively by the
// runtime instance processing that task. No other component mutates it.
type TaskState struct {
	TaskID        string        `json:"taskId"`
	Phase         Phase         `json:"phase"`
	CurrentStep   int           `json:"currentStep"`
	PlannedSteps  []PlannedStep `json:"plannedSteps"`
	StepRecords   []StepRecord  `json:"stepRecords"`
	ToolCalls     []ToolCallRecord `json:"toolCalls"`
	Iterations    int           `json:"iterations"`
	Error         *CoreError    `json:"error,omitempty"`
	ResultPayload any           `json:"resultPayload,omitempty"`
	StartedAt     time.Time     `json:"startedAt"`
}

// WallElapsed returns the time elapsed since the task started, for
// comparison against Budget.WallMs in the Iterate phase.
func (s *TaskState) WallElapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}
