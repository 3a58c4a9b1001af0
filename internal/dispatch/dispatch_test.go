package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/core/internal/store"
	"github.com/agentmesh/core/pkg/types"
)

func specs() []types.AgentSpec {
	return []types.AgentSpec{
		{ID: "researcher", Capabilities: []string{"search", "summarize"}, TrustLevel: 6},
		{ID: "coder", Capabilities: []string{"code", "search"}, TrustLevel: 9},
		{ID: "sandboxed", Capabilities: []string{"code"}, TrustLevel: 2},
	}
}

func TestDispatcher_SelectsHighestTrustAmongEligible(t *testing.T) {
	d := New(Config{Agents: specs()})
	task := types.Task{ID: "t1", RequiredCapabilities: []string{"search"}}

	decision, err := d.Select("r1", task, types.IsolationRelaxed)
	require.NoError(t, err)
	assert.Equal(t, "coder", decision.SelectedAgent)
	assert.ElementsMatch(t, []string{"coder", "researcher"}, decision.Candidates)
}

func TestDispatcher_IsolationFloorExcludesLowTrustAgents(t *testing.T) {
	d := New(Config{Agents: specs()})
	task := types.Task{ID: "t2", RequiredCapabilities: []string{"code"}}

	decision, err := d.Select("r2", task, types.IsolationStrict)
	require.NoError(t, err)
	assert.Equal(t, "coder", decision.SelectedAgent)
	assert.NotContains(t, decision.Candidates, "sandboxed")
}

func TestDispatcher_NoEligibleAgentReturnsValidationError(t *testing.T) {
	d := New(Config{Agents: specs()})
	task := types.Task{ID: "t3", RequiredCapabilities: []string{"translate"}}

	_, err := d.Select("r3", task, types.IsolationRelaxed)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrValidation))
}

func TestDispatcher_RulePinsTargetAheadOfHigherTrust(t *testing.T) {
	d := New(Config{
		Agents: specs(),
		Rules: []Rule{
			{Name: "prefer-researcher-for-search", Match: Match{Capabilities: []string{"search"}}, Target: "researcher"},
		},
	})
	task := types.Task{ID: "t4", RequiredCapabilities: []string{"search"}}

	decision, err := d.Select("r4", task, types.IsolationRelaxed)
	require.NoError(t, err)
	assert.Equal(t, "researcher", decision.SelectedAgent)
	require.Len(t, decision.AppliedRules, 1)
	assert.Equal(t, "prefer-researcher-for-search", decision.AppliedRules[0].Name)
}

func TestDispatcher_MarkFailedExcludesAgentDuringCooldown(t *testing.T) {
	d := New(Config{Agents: specs(), FailureCooldown: time.Hour})
	task := types.Task{ID: "t5", RequiredCapabilities: []string{"search"}}

	d.MarkFailed("coder")
	decision, err := d.Select("r5", task, types.IsolationRelaxed)
	require.NoError(t, err)
	assert.Equal(t, "researcher", decision.SelectedAgent)
	assert.NotContains(t, decision.Candidates, "coder")
}

type fakeLoad struct{ loads map[string]int }

func (f fakeLoad) Load(agentID string) int { return f.loads[agentID] }

func TestDispatcher_TieBreaksByLoadWhenTrustEqual(t *testing.T) {
	tied := []types.AgentSpec{
		{ID: "a", Capabilities: []string{"x"}, TrustLevel: 5},
		{ID: "b", Capabilities: []string{"x"}, TrustLevel: 5},
	}
	d := New(Config{Agents: tied, Load: fakeLoad{loads: map[string]int{"a": 3, "b": 0}}})
	task := types.Task{ID: "t6", RequiredCapabilities: []string{"x"}}

	decision, err := d.Select("r6", task, types.IsolationRelaxed)
	require.NoError(t, err)
	assert.Equal(t, "b", decision.SelectedAgent)
}

func TestDispatcher_ExplainReturnsCachedDecision(t *testing.T) {
	s := store.New(store.Config{MaxSize: 10})
	d := New(Config{Agents: specs(), DecisionCache: s, DecisionTTL: time.Minute})
	task := types.Task{ID: "t7", RequiredCapabilities: []string{"search"}}

	decision, err := d.Select("r7", task, types.IsolationRelaxed)
	require.NoError(t, err)

	explained, ok := d.Explain("r7")
	require.True(t, ok)
	assert.Equal(t, decision, explained)
}

func TestDispatcher_ExplainMissReturnsFalse(t *testing.T) {
	s := store.New(store.Config{MaxSize: 10})
	d := New(Config{Agents: specs(), DecisionCache: s})

	_, ok := d.Explain("never-dispatched")
	assert.False(t, ok)
}

func TestDispatcher_PublishesTaskAssignedEvent(t *testing.T) {
	var published []types.Event
	d := New(Config{Agents: specs(), Publish: func(e types.Event) { published = append(published, e) }})
	task := types.Task{ID: "t8", RequiredCapabilities: []string{"search"}, CorrelationID: "corr-1"}

	_, err := d.Select("r8", task, types.IsolationRelaxed)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, types.EventTaskAssigned, published[0].Type)
	assert.Equal(t, "corr-1", published[0].CorrelationID)
}
