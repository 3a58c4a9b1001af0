package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/core/internal/dispatch"
	"github.com/agentmesh/core/pkg/types"
)

func newDispatcher(specs ...types.AgentSpec) *dispatch.Dispatcher {
	return dispatch.New(dispatch.Config{Agents: specs})
}

func TestSession_RegisterAgentRejectsDuplicate(t *testing.T) {
	s := New(Config{ID: "s1", Isolation: types.IsolationRelaxed, Dispatcher: newDispatcher()})
	spec := types.AgentSpec{ID: "a1", Capabilities: []string{"x"}, TrustLevel: 1}

	require.NoError(t, s.RegisterAgent(spec, false))
	err := s.RegisterAgent(spec, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestSession_StrictIsolationRejectsLowTrustAgent(t *testing.T) {
	s := New(Config{ID: "s1", Isolation: types.IsolationStrict, Dispatcher: newDispatcher()})
	spec := types.AgentSpec{ID: "a1", Capabilities: []string{"x"}, TrustLevel: 3}

	err := s.RegisterAgent(spec, true)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrSecurityViolation))
}

func TestSession_StrictIsolationAllowListAdmitsLowTrustAgent(t *testing.T) {
	s := New(Config{ID: "s1", Isolation: types.IsolationStrict, AllowList: []string{"a1"}, Dispatcher: newDispatcher()})
	spec := types.AgentSpec{ID: "a1", Capabilities: []string{"x"}, TrustLevel: 1}

	require.NoError(t, s.RegisterAgent(spec, true))
	assert.Equal(t, []string{"a1"}, s.Agents())
}

func TestSession_StrictIsolationExcludesUnlistedLowTrustAgent(t *testing.T) {
	s := New(Config{ID: "s1", Isolation: types.IsolationStrict, AllowList: []string{"a1"}, Dispatcher: newDispatcher()})
	spec := types.AgentSpec{ID: "a2", Capabilities: []string{"x"}, TrustLevel: 3}

	err := s.RegisterAgent(spec, true)
	require.Error(t, err)
}

func TestSession_StrictIsolationAdmitsUnlistedHighTrustAgent(t *testing.T) {
	s := New(Config{ID: "s1", Isolation: types.IsolationStrict, AllowList: []string{"a1"}, Dispatcher: newDispatcher()})
	spec := types.AgentSpec{ID: "a2", Capabilities: []string{"x"}, TrustLevel: 9}

	assert.NoError(t, s.RegisterAgent(spec, true))
}

func TestSession_RelaxedIsolationAdmitsAnyTrustLevel(t *testing.T) {
	s := New(Config{ID: "s1", Isolation: types.IsolationRelaxed, Dispatcher: newDispatcher()})
	spec := types.AgentSpec{ID: "a1", Capabilities: []string{"x"}, TrustLevel: 0}
	assert.NoError(t, s.RegisterAgent(spec, true))
}

func TestSession_AssignTaskDelegatesToDispatcher(t *testing.T) {
	specs := []types.AgentSpec{{ID: "a1", Capabilities: []string{"x"}, TrustLevel: 9}}
	s := New(Config{ID: "s1", Isolation: types.IsolationModerate, MaxConcurrentOperations: 2, Dispatcher: newDispatcher(specs...)})
	require.NoError(t, s.RegisterAgent(specs[0], true))

	task := types.Task{ID: "t1", RequiredCapabilities: []string{"x"}}
	decision, err := s.AssignTask("req-1", task, "")
	require.NoError(t, err)
	assert.Equal(t, "a1", decision.SelectedAgent)
	assert.Equal(t, 1, s.InFlight())
}

func TestSession_AssignTaskRejectsUnregisteredPinnedAgent(t *testing.T) {
	s := New(Config{ID: "s1", Isolation: types.IsolationRelaxed, Dispatcher: newDispatcher()})
	_, err := s.AssignTask("req-1", types.Task{ID: "t1"}, "ghost")
	require.Error(t, err)
}

func TestSession_AssignTaskFailsFastAtConcurrencyLimit(t *testing.T) {
	specs := []types.AgentSpec{{ID: "a1", Capabilities: []string{"x"}, TrustLevel: 9}}
	s := New(Config{ID: "s1", Isolation: types.IsolationRelaxed, MaxConcurrentOperations: 1, Dispatcher: newDispatcher(specs...)})
	require.NoError(t, s.RegisterAgent(specs[0], true))

	task := types.Task{ID: "t1", RequiredCapabilities: []string{"x"}}
	_, err := s.AssignTask("req-1", task, "")
	require.NoError(t, err)

	_, err = s.AssignTask("req-2", task, "")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrBudgetExceeded))

	s.Release()
	_, err = s.AssignTask("req-3", task, "")
	require.NoError(t, err)
}

func TestSession_PublishesEventsOnCreateAndRegister(t *testing.T) {
	var events []types.Event
	specs := []types.AgentSpec{{ID: "a1", Capabilities: []string{"x"}, TrustLevel: 9}}
	s := New(Config{
		ID:         "s1",
		Isolation:  types.IsolationRelaxed,
		Dispatcher: newDispatcher(specs...),
		Publish:    func(e types.Event) { events = append(events, e) },
	})
	require.NoError(t, s.RegisterAgent(specs[0], true))

	require.Len(t, events, 2)
	assert.Equal(t, types.EventSessionCreated, events[0].Type)
	assert.Equal(t, types.EventTaskAssigned, events[1].Type)
}
