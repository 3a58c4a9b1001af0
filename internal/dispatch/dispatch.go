// Package dispatch implements the agent dispatcher (C6): given a task and
// the registered agent catalog, it selects the agent whose capabilities
// satisfy the task and whose trust level clears the caller's isolation
// floor, recording the rationale behind the choice. Grounded on the
// teacher's internal/agent/routing.Router: rule-first selection, a
// failure-cooldown health map, and a deduped ordered candidate list,
// generalized from "pick an LLM provider" to "pick an agent".
package dispatch

import (
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentmesh/core/internal/store"
	"github.com/agentmesh/core/pkg/types"
)

// LoadTracker reports a point-in-time load figure for an agent, consulted
// as the dispatcher's second tie-break. A nil tracker treats every agent
// as equally loaded.
type LoadTracker interface {
	Load(agentID string) int
}

// isolationFloor maps a session's isolation level to the minimum trust
// level an agent must carry to join it. Open Question resolved here:
// the spec names the floor but not its numeric mapping, so this mirrors
// the 0..10 TrustLevel scale AgentSpec already documents.
var isolationFloor = map[types.Isolation]int{
	types.IsolationStrict:   8,
	types.IsolationModerate: 5,
	types.IsolationRelaxed:  0,
}

// Config configures a Dispatcher.
type Config struct {
	Agents          []types.AgentSpec
	Rules           []Rule
	Load            LoadTracker
	FailureCooldown time.Duration
	DecisionCache   *store.Store
	DecisionTTL     time.Duration
	PolicyVersion   string
	Publish         func(types.Event)
}

// Dispatcher chooses an agent for a task and records the decision so it
// can be retrieved later by RequestID (Explain).
type Dispatcher struct {
	agents        map[string]types.AgentSpec
	order         []string // stable iteration order, insertion order
	rules         []Rule
	load          LoadTracker
	cooldown      time.Duration
	cache         *store.Store
	decisionTTL   time.Duration
	policyVersion string
	publish       func(types.Event)

	healthMu  sync.Mutex
	unhealthy map[string]time.Time
}

// New builds a Dispatcher over the given agent catalog.
func New(cfg Config) *Dispatcher {
	agents := make(map[string]types.AgentSpec, len(cfg.Agents))
	order := make([]string, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if a.ID == "" {
			continue
		}
		if _, exists := agents[a.ID]; !exists {
			order = append(order, a.ID)
		}
		agents[a.ID] = a
	}
	publish := cfg.Publish
	if publish == nil {
		publish = func(types.Event) {}
	}
	policyVersion := cfg.PolicyVersion
	if policyVersion == "" {
		policyVersion = "v1"
	}
	decisionTTL := cfg.DecisionTTL
	if decisionTTL <= 0 {
		decisionTTL = 2 * time.Minute
	}
	return &Dispatcher{
		agents:        agents,
		order:         order,
		rules:         cfg.Rules,
		load:          cfg.Load,
		cooldown:      cfg.FailureCooldown,
		cache:         cfg.DecisionCache,
		decisionTTL:   decisionTTL,
		policyVersion: policyVersion,
		publish:       publish,
		unhealthy:     make(map[string]time.Time),
	}
}

// Select chooses an agent for task, honoring the session's isolation
// floor, and returns the recorded decision. RequestID identifies this
// decision for later Explain lookups and doubles as the cache key.
func (d *Dispatcher) Select(requestID string, task types.Task, isolation types.Isolation) (types.DispatchDecision, error) {
	candidates, appliedRules := d.candidates(task, isolation)
	if len(candidates) == 0 {
		return types.DispatchDecision{}, types.NewCoreError(types.ErrValidation, "no agent satisfies the task's required capabilities and isolation floor", nil)
	}

	selected := candidates[0]
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c
	}

	decision := types.DispatchDecision{
		RequestID:     requestID,
		TaskID:        task.ID,
		SelectedAgent: selected,
		Candidates:    names,
		AppliedRules:  appliedRules,
		PolicyVersion: d.policyVersion,
	}

	if d.cache != nil && requestID != "" {
		d.cache.Set(cacheKey(requestID), decision, d.decisionTTL)
	}

	d.publish(types.Event{
		SpecVersion:   types.SpecVersion,
		Type:          types.EventTaskAssigned,
		Source:        "dispatch",
		ID:            requestID,
		Time:          time.Now(),
		CorrelationID: task.CorrelationID,
		Data: map[string]any{
			"taskId":        task.ID,
			"selectedAgent": selected,
			"candidates":    names,
		},
	})

	return decision, nil
}

// Explain returns the cached decision for requestID, if it is still
// within its decision TTL.
func (d *Dispatcher) Explain(requestID string) (types.DispatchDecision, bool) {
	if d.cache == nil {
		return types.DispatchDecision{}, false
	}
	v, ok := d.cache.Get(cacheKey(requestID))
	if !ok {
		return types.DispatchDecision{}, false
	}
	decision, ok := v.(types.DispatchDecision)
	return decision, ok
}

// MarkFailed records that an agent just failed a task, starting its
// failure cooldown. Cooled-down agents are excluded from candidates
// until the cooldown elapses.
func (d *Dispatcher) MarkFailed(agentID string) {
	if d.cooldown <= 0 || agentID == "" {
		return
	}
	d.healthMu.Lock()
	d.unhealthy[agentID] = time.Now().Add(d.cooldown)
	d.healthMu.Unlock()
}

func (d *Dispatcher) isHealthy(agentID string) bool {
	if d.cooldown <= 0 {
		return true
	}
	d.healthMu.Lock()
	defer d.healthMu.Unlock()
	until, ok := d.unhealthy[agentID]
	if !ok {
		return true
	}
	if time.Now().After(until) {
		delete(d.unhealthy, agentID)
		return true
	}
	return false
}

// candidates returns the ordered, deduped list of agent IDs eligible for
// task, most-preferred first, plus the rules that contributed to that
// order.
func (d *Dispatcher) candidates(task types.Task, isolation types.Isolation) ([]string, []types.AppliedRule) {
	floor, ok := isolationFloor[isolation]
	if !ok {
		floor = isolationFloor[types.IsolationModerate]
	}

	eligible := make([]types.AgentSpec, 0, len(d.order))
	for _, id := range d.order {
		spec := d.agents[id]
		if !d.isHealthy(spec.ID) {
			continue
		}
		if spec.TrustLevel < floor {
			continue
		}
		if !hasCapabilities(spec.Capabilities, task.RequiredCapabilities) {
			continue
		}
		eligible = append(eligible, spec)
	}

	var applied []types.AppliedRule
	preferred := map[string]int{} // agentID -> rule priority, lower sorts first
	for i, rule := range d.rules {
		if ruleMatches(rule.Match, task) {
			preferred[rule.Target] = i
			applied = append(applied, types.AppliedRule{Name: rule.Name, Detail: "target=" + rule.Target})
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		pa, aMatched := preferred[a.ID]
		pb, bMatched := preferred[b.ID]
		if aMatched != bMatched {
			return aMatched
		}
		if aMatched && bMatched && pa != pb {
			return pa < pb
		}
		if a.TrustLevel != b.TrustLevel {
			return a.TrustLevel > b.TrustLevel
		}
		la, lb := d.loadOf(a.ID), d.loadOf(b.ID)
		if la != lb {
			return la < lb
		}
		return stableHash(task.ID, a.ID) < stableHash(task.ID, b.ID)
	})

	ids := make([]string, len(eligible))
	for i, spec := range eligible {
		ids[i] = spec.ID
	}
	return ids, applied
}

func (d *Dispatcher) loadOf(agentID string) int {
	if d.load == nil {
		return 0
	}
	return d.load.Load(agentID)
}

func hasCapabilities(have, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, c := range have {
		set[strings.ToLower(c)] = struct{}{}
	}
	for _, need := range required {
		if _, ok := set[strings.ToLower(need)]; !ok {
			return false
		}
	}
	return true
}

func stableHash(taskID, agentID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(taskID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(agentID))
	return h.Sum32()
}

func cacheKey(requestID string) string {
	return "dispatch:decision:" + requestID
}
