package builtin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/core/internal/store"
)

func TestTaskListTool_AddCompleteList(t *testing.T) {
	s := store.New(store.Config{MaxSize: 10})
	tool := NewTaskListTool(s, "session-1")

	addParams, _ := json.Marshal(map[string]any{"action": "add", "title": "write tests"})
	result, err := tool.Execute(context.Background(), addParams)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var added struct {
		Items []taskItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Content), &added))
	require.Len(t, added.Items, 1)
	assert.False(t, added.Items[0].Done)

	completeParams, _ := json.Marshal(map[string]any{"action": "complete", "id": added.Items[0].ID})
	result, err = tool.Execute(context.Background(), completeParams)
	require.NoError(t, err)

	var completed struct {
		Items []taskItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Content), &completed))
	require.Len(t, completed.Items, 1)
	assert.True(t, completed.Items[0].Done)
}

func TestTaskListTool_IsolatedBySession(t *testing.T) {
	s := store.New(store.Config{MaxSize: 10})
	a := NewTaskListTool(s, "session-a")
	b := NewTaskListTool(s, "session-b")

	addParams, _ := json.Marshal(map[string]any{"action": "add", "title": "only in a"})
	_, err := a.Execute(context.Background(), addParams)
	require.NoError(t, err)

	listParams, _ := json.Marshal(map[string]any{"action": "list"})
	result, err := b.Execute(context.Background(), listParams)
	require.NoError(t, err)
	assert.Equal(t, `{"items":null}`, result.Content)
}
