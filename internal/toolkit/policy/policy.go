// Package policy implements the C5 mapper's security gate, grounded
// on the teacher's tools/policy.Policy allow/deny shape, narrowed to
// the two checks the mapper runs before any side effect: a dangerous
// command pattern set and the external-tool toggle.
package policy

import (
	"regexp"
	"strings"
)

// Gate holds the security policy the C5 mapper consults before any
// side-effecting resolution.
type Gate struct {
	AllowExternalTools bool
	dangerous          []*regexp.Regexp
}

// DangerousPatterns is the default deny set: shell-wipe, filesystem
// format, and privilege-escalation shapes named by C5 §4.5 item 1.
var DangerousPatterns = []string{
	`rm\s+-rf\s+/`,
	`mkfs\.\w+`,
	`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}`, // fork bomb
	`sudo\s+su\b`,
	`chmod\s+-R\s+777\s+/`,
	`dd\s+if=.*of=/dev/(sd|nvme|hd)`,
	`>\s*/dev/sd[a-z]`,
}

// NewGate compiles the default dangerous pattern set. AllowExternal
// controls whether requests tagged external in their context may be
// mapped at all.
func NewGate(allowExternal bool) *Gate {
	g := &Gate{AllowExternalTools: allowExternal}
	for _, p := range DangerousPatterns {
		if re, err := regexp.Compile(p); err == nil {
			g.dangerous = append(g.dangerous, re)
		}
	}
	return g
}

// Check inspects a tool-type string and a raw parameter blob (e.g. a
// shell command argument) for dangerous shapes. isExternal marks a
// request that targets resources outside the local workspace/process.
// Returns a non-empty reason when the request must be rejected.
func (g *Gate) Check(toolType string, rawInput string, isExternal bool) string {
	if g == nil {
		return ""
	}
	if isExternal && !g.AllowExternalTools {
		return "external tools are disabled"
	}
	haystack := strings.ToLower(toolType + " " + rawInput)
	for _, re := range g.dangerous {
		if re.MatchString(haystack) {
			return "request matches a dangerous command pattern"
		}
	}
	return ""
}
