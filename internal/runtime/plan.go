package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/agentmesh/core/internal/toolkit"
	"github.com/agentmesh/core/pkg/types"
)

// validatePlan checks the two conditions spec §4.7 requires of a plan:
// Dependencies form a DAG, and every tool-kind step's Target either
// exists in the registry or can fall through to the mapper (which
// always produces at least a graceful-degradation result, so a
// configured mapper makes any tool target "resolvable").
func validatePlan(steps []types.PlannedStep, tools *toolkit.Registry, mapper *toolkit.Mapper) error {
	ids := make(map[string]types.PlannedStep, len(steps))
	for _, s := range steps {
		if s.ID == "" {
			return fmt.Errorf("planned step missing id")
		}
		if _, dup := ids[s.ID]; dup {
			return fmt.Errorf("duplicate planned step id %q", s.ID)
		}
		ids[s.ID] = s
	}
	for _, s := range steps {
		for _, dep := range s.Dependencies {
			if _, ok := ids[dep]; !ok {
				return fmt.Errorf("step %q depends on unknown step %q", s.ID, dep)
			}
		}
		if s.Kind == types.StepKindTool {
			if tools == nil {
				return fmt.Errorf("step %q targets a tool but no registry is configured", s.ID)
			}
			if _, ok := tools.Get(s.Target); !ok && mapper == nil {
				return fmt.Errorf("step %q targets unknown tool %q with no mapper to resolve it", s.ID, s.Target)
			}
		}
	}
	return detectCycle(steps)
}

func detectCycle(steps []types.PlannedStep) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	deps := make(map[string][]string, len(steps))
	for _, s := range steps {
		deps[s.ID] = s.Dependencies
	}
	color := make(map[string]int, len(steps))

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			return fmt.Errorf("plan contains a dependency cycle at step %q", id)
		case black:
			return nil
		}
		color[id] = gray
		for _, dep := range deps[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for _, s := range steps {
		if err := visit(s.ID); err != nil {
			return err
		}
	}
	return nil
}

func marshalInput(input any) (json.RawMessage, error) {
	if input == nil {
		return json.RawMessage("{}"), nil
	}
	if raw, ok := input.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(input)
}

func inputAsMap(input any) map[string]any {
	if m, ok := input.(map[string]any); ok {
		return m
	}
	raw, err := marshalInput(input)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
