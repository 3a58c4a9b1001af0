// Package types defines the wire-level data model shared across the agent
// runtime core: tasks, agent specs, step records, events, provider and
// tool-mapping results, and audit artifacts. Types here are plain data —
// behavior lives in the internal packages that own each lifecycle.
package types

import "time"

// Budget bounds how long and how far a task may run before the runtime
// forces it to a terminal state with reason "budget_exceeded".
type Budget struct {
	WallMs   int64 `json:"wallMs" yaml:"wallMs"`
	MaxSteps int   `json:"maxSteps" yaml:"maxSteps"`
}

// Task is the immutable unit of work handed to the orchestrator. It is
// created by the caller and destroyed once the runtime finalizes it; no
// component mutates a Task after submission.
type Task struct {
	ID                   string         `json:"id"`
	Kind                 string         `json:"kind"`
	Input                any            `json:"input"`
	Budget               Budget         `json:"budget"`
	RequiredCapabilities []string       `json:"requiredCapabilities"`
	Priority             int            `json:"priority"`
	CorrelationID        string         `json:"correlationId"`
	SubmittedAt          time.Time      `json:"submittedAt"`
	Metadata             map[string]any `json:"metadata,omitempty"`
}

// Isolation is the trust boundary a coordination session enforces on the
// agents that may join it (C10).
type Isolation string

const (
	IsolationStrict   Isolation = "strict"
	IsolationModerate Isolation = "moderate"
	IsolationRelaxed  Isolation = "relaxed"
)

// AgentSpec describes a registered agent's capabilities. Specs are loaded
// at startup and are immutable for the lifetime of the runtime; they are
// shared read-only across dispatch decisions.
type AgentSpec struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Capabilities   []string  `json:"capabilities" yaml:"capabilities"`
	TrustLevel     int       `json:"trustLevel" yaml:"trustLevel"` // 0..10
	ModelTargets   []string  `json:"modelTargets" yaml:"modelTargets"`
	Tools          []string  `json:"tools" yaml:"tools"`
	Specialization string    `json:"specialization" yaml:"specialization"`
	Isolation      Isolation `json:"isolation" yaml:"isolation"`
}
