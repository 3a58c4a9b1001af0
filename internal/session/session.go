// Package session implements the coordination session (C10): a named
// group of registered agents sharing one isolation policy. It grants
// concurrency slots for task assignment and delegates the actual agent
// choice to the dispatcher (C6).
//
// Grounded on the teacher's internal/sessions.SessionLocker: a
// poll-based acquire/release pair keyed by session ID, generalized here
// from "lock a session for writing" to "hold a concurrency slot for an
// assigned task".
package session

import (
	"sync"
	"time"

	"github.com/agentmesh/core/internal/dispatch"
	"github.com/agentmesh/core/pkg/types"
)

// DefaultMaxConcurrentOperations is used when Config.MaxConcurrentOperations
// is left at zero.
const DefaultMaxConcurrentOperations = 4

// trustFloor mirrors the dispatcher's isolation-to-trust-level mapping
// (C6) so a session rejects registrations its own dispatcher would
// later refuse to route to.
var trustFloor = map[types.Isolation]int{
	types.IsolationStrict:   8,
	types.IsolationModerate: 5,
	types.IsolationRelaxed:  0,
}

// Config configures a Session.
type Config struct {
	ID                      string
	Isolation               types.Isolation
	AllowList               []string // agent IDs permitted under strict isolation; empty means trust-floor-only
	MaxConcurrentOperations int
	Dispatcher              *dispatch.Dispatcher
	Publish                 func(types.Event)
}

// Session coordinates a set of agents operating under one isolation
// policy and caps how many task assignments may be in flight at once.
type Session struct {
	id          string
	isolation   types.Isolation
	allowList   map[string]struct{}
	maxInFlight int
	dispatcher  *dispatch.Dispatcher
	publish     func(types.Event)

	mu       sync.Mutex
	agents   map[string]types.AgentSpec
	inFlight int
}

// New opens a coordination session.
func New(cfg Config) *Session {
	maxInFlight := cfg.MaxConcurrentOperations
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxConcurrentOperations
	}
	publish := cfg.Publish
	if publish == nil {
		publish = func(types.Event) {}
	}
	allow := make(map[string]struct{}, len(cfg.AllowList))
	for _, id := range cfg.AllowList {
		allow[id] = struct{}{}
	}
	s := &Session{
		id:          cfg.ID,
		isolation:   cfg.Isolation,
		allowList:   allow,
		maxInFlight: maxInFlight,
		dispatcher:  cfg.Dispatcher,
		publish:     publish,
		agents:      make(map[string]types.AgentSpec),
	}
	s.publish(types.Event{
		SpecVersion: types.SpecVersion,
		Type:        types.EventSessionCreated,
		Source:      "session",
		ID:          cfg.ID,
		Time:        time.Now(),
		Data: map[string]any{
			"sessionId": cfg.ID,
			"isolation": string(cfg.Isolation),
		},
	})
	return s
}

// RegisterAgent admits spec into the session. If validate is true, the
// agent must either appear on the session's allow-list or clear the
// isolation's trust floor; duplicate registration is always rejected
// regardless of validate.
func (s *Session) RegisterAgent(spec types.AgentSpec, validate bool) error {
	if spec.ID == "" {
		return types.NewCoreError(types.ErrValidation, "agent spec requires an id", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[spec.ID]; exists {
		return types.NewCoreError(types.ErrValidation, "agent "+spec.ID+" is already registered in this session", nil)
	}

	if validate && !s.admits(spec) {
		return types.NewCoreError(types.ErrSecurityViolation, "agent "+spec.ID+" does not meet session "+s.id+"'s isolation requirements", nil)
	}

	s.agents[spec.ID] = spec
	s.publish(types.Event{
		SpecVersion: types.SpecVersion,
		Type:        types.EventTaskAssigned,
		Source:      "session",
		ID:          s.id + ":register:" + spec.ID,
		Time:        time.Now(),
		Data: map[string]any{
			"sessionId": s.id,
			"agentId":   spec.ID,
			"action":    "registered",
		},
	})
	return nil
}

// admits reports whether spec may join the session under its isolation
// policy: membership in the allow-list or clearing the isolation's
// trust floor is sufficient (spec §4.10: "agents must appear in the
// session's allow-list or meet a minimum trust floor"). Callers must
// hold s.mu.
func (s *Session) admits(spec types.AgentSpec) bool {
	if _, allowed := s.allowList[spec.ID]; allowed {
		return true
	}
	floor, ok := trustFloor[s.isolation]
	if !ok {
		floor = trustFloor[types.IsolationModerate]
	}
	return spec.TrustLevel >= floor
}

// AssignTask routes task to an agent through the session's dispatcher,
// honoring a concurrency slot cap. If agentID is non-empty, the task is
// pinned to that agent via a single-candidate selection; otherwise the
// dispatcher's normal ranking applies. When every slot is held,
// AssignTask fails fast with ErrBusy rather than blocking, mirroring
// the chain's own in-flight cap (spec §5 backpressure: "refuses new
// work when a global in-flight cap is exceeded, returning E_BUSY").
func (s *Session) AssignTask(requestID string, task types.Task, agentID string) (types.DispatchDecision, error) {
	if s.dispatcher == nil {
		return types.DispatchDecision{}, types.NewCoreError(types.ErrInternal, "session has no dispatcher configured", nil)
	}

	s.mu.Lock()
	if agentID != "" {
		if _, ok := s.agents[agentID]; !ok {
			s.mu.Unlock()
			return types.DispatchDecision{}, types.NewCoreError(types.ErrValidation, "agent "+agentID+" is not registered in session "+s.id, nil)
		}
	}
	if s.inFlight >= s.maxInFlight {
		s.mu.Unlock()
		return types.DispatchDecision{}, types.NewCoreError(types.ErrBudgetExceeded, "session "+s.id+" is at its concurrency limit", types.ErrBusy)
	}
	s.inFlight++
	s.mu.Unlock()

	decision, err := s.dispatcher.Select(requestID, task, s.isolation)
	if err != nil {
		s.releaseSlot()
		return types.DispatchDecision{}, err
	}
	if agentID != "" && decision.SelectedAgent != agentID {
		decision.SelectedAgent = agentID
	}

	s.publish(types.Event{
		SpecVersion:   types.SpecVersion,
		Type:          types.EventTaskAssigned,
		Source:        "session",
		ID:            requestID,
		Time:          time.Now(),
		CorrelationID: task.CorrelationID,
		Data: map[string]any{
			"sessionId":     s.id,
			"taskId":        task.ID,
			"selectedAgent": decision.SelectedAgent,
		},
	})
	return decision, nil
}

// Release frees the concurrency slot held for a previously assigned
// task. Callers must invoke Release exactly once per successful
// AssignTask once the agent's work has terminated.
func (s *Session) Release() {
	s.releaseSlot()
}

func (s *Session) releaseSlot() {
	s.mu.Lock()
	if s.inFlight > 0 {
		s.inFlight--
	}
	s.mu.Unlock()
}

// InFlight returns the number of task assignments currently holding a
// concurrency slot.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Agents returns the IDs of agents currently registered in the session.
func (s *Session) Agents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	return ids
}
