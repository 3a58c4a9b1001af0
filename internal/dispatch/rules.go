package dispatch

import (
	"strings"

	"github.com/agentmesh/core/pkg/types"
)

// Rule overrides the default trust/load ordering for tasks matching it,
// pinning Target to the front of the candidate list (subject to it still
// being eligible and healthy). Mirrors the teacher's routing.Rule, with
// Match narrowed to a task's Kind and required capabilities rather than
// a completion request's message content.
type Rule struct {
	Name   string
	Match  Match
	Target string // agent ID
}

// Match matches a task by kind substring and/or required capability tag.
// A rule with both set requires both to match.
type Match struct {
	KindContains []string
	Capabilities []string
}

func ruleMatches(m Match, task types.Task) bool {
	if len(m.KindContains) == 0 && len(m.Capabilities) == 0 {
		return false
	}
	if len(m.KindContains) > 0 {
		kind := strings.ToLower(task.Kind)
		matched := false
		for _, p := range m.KindContains {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" && strings.Contains(kind, p) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(m.Capabilities) > 0 {
		for _, tag := range m.Capabilities {
			if containsCapability(task.RequiredCapabilities, tag) {
				return true
			}
		}
		return false
	}
	return true
}

func containsCapability(caps []string, tag string) bool {
	needle := strings.ToLower(strings.TrimSpace(tag))
	if needle == "" {
		return false
	}
	for _, c := range caps {
		if strings.EqualFold(c, needle) {
			return true
		}
	}
	return false
}
