package types

// AppliedRule names one rule that contributed to a dispatch decision, for
// the decision's rationale trail (spec §4.6 "records decision rationale").
type AppliedRule struct {
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
}

// DispatchDecision is the retrievable record of how the dispatcher chose
// an agent for a task (C6). Retrievable by RequestID via explain().
type DispatchDecision struct {
	RequestID     string        `json:"requestId"`
	TaskID        string        `json:"taskId"`
	SelectedAgent string        `json:"selectedAgent"`
	Candidates    []string      `json:"candidates"`
	AppliedRules  []AppliedRule `json:"appliedRules"`
	PolicyVersion string        `json:"policyVersion"`
}
