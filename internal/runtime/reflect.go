package runtime

import (
	"fmt"

	"github.com/agentmesh/core/pkg/types"
)

// Reflection is the advisory summary produced at a task's terminal
// state (or on demand). It never mutates TaskState.
type Reflection struct {
	TaskID       string   `json:"taskId"`
	Phase        types.Phase `json:"phase"`
	StepsRun     int      `json:"stepsRun"`
	StepsFailed  int      `json:"stepsFailed"`
	Improvements []string `json:"improvements,omitempty"`
	NextGoal     string   `json:"nextGoal,omitempty"`
}

// Reflect summarizes state's executed steps. Callable at any point, not
// only at terminal states; the spec's "on demand" clause.
func Reflect(state *types.TaskState) Reflection {
	r := Reflection{TaskID: state.TaskID, Phase: state.Phase, StepsRun: len(state.StepRecords)}
	var lastFailure *types.StepRecord
	for i := range state.StepRecords {
		rec := &state.StepRecords[i]
		if !rec.Success {
			r.StepsFailed++
			lastFailure = rec
		}
	}
	if r.StepsFailed > 0 {
		r.Improvements = append(r.Improvements, fmt.Sprintf("%d of %d steps failed; consider narrower tool targets or a revised plan", r.StepsFailed, r.StepsRun))
	}
	if state.Error != nil && state.Error.Kind == types.ErrBudgetExceeded {
		r.Improvements = append(r.Improvements, "budget exceeded; consider raising the iteration or wall-time budget or trimming the plan")
	}
	if lastFailure != nil {
		r.NextGoal = fmt.Sprintf("retry or replace step %q", lastFailure.ID)
	}
	return r
}
