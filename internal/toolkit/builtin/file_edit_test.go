package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadTool_RejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	tool := NewReadTool(FileConfig{Workspace: dir})
	params, _ := json.Marshal(map[string]any{"path": "../../etc/passwd"})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestEditTool_AppliesReplaceAll(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "a.txt", "foo foo foo")
	tool := NewEditTool(FileConfig{Workspace: dir})

	params, _ := json.Marshal(map[string]any{
		"path":  "a.txt",
		"edits": []map[string]any{{"old_text": "foo", "new_text": "bar", "replace_all": true}},
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	data, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	assert.Equal(t, "bar bar bar", string(data))
}

func TestEditTool_FailsWhenOldTextMissing(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "a.txt", "hello")
	tool := NewEditTool(FileConfig{Workspace: dir})

	params, _ := json.Marshal(map[string]any{
		"path":  "a.txt",
		"edits": []map[string]any{{"old_text": "nope", "new_text": "x"}},
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMultiEditTool_RollsBackAllFilesOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "a.txt", "alpha")
	writeTemp(t, dir, "b.txt", "beta")
	tool := NewMultiEditTool(FileConfig{Workspace: dir})

	params, _ := json.Marshal(map[string]any{
		"atomic": true,
		"files": []map[string]any{
			{"path": "a.txt", "edits": []map[string]any{{"old_text": "alpha", "new_text": "ALPHA"}}},
			{"path": "b.txt", "edits": []map[string]any{{"old_text": "does-not-exist", "new_text": "x"}}},
		},
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.True(t, result.RollbackPerformed)

	aData, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	bData, _ := os.ReadFile(filepath.Join(dir, "b.txt"))
	assert.Equal(t, "alpha", string(aData), "first file must be restored to its pre-image")
	assert.Equal(t, "beta", string(bData))
}

func TestMultiEditTool_AllSucceedWithoutRollback(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "a.txt", "alpha")
	writeTemp(t, dir, "b.txt", "beta")
	tool := NewMultiEditTool(FileConfig{Workspace: dir})

	params, _ := json.Marshal(map[string]any{
		"atomic": true,
		"files": []map[string]any{
			{"path": "a.txt", "edits": []map[string]any{{"old_text": "alpha", "new_text": "ALPHA"}}},
			{"path": "b.txt", "edits": []map[string]any{{"old_text": "beta", "new_text": "BETA"}}},
		},
	})
	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	aData, _ := os.ReadFile(filepath.Join(dir, "a.txt"))
	bData, _ := os.ReadFile(filepath.Join(dir, "b.txt"))
	assert.Equal(t, "ALPHA", string(aData))
	assert.Equal(t, "BETA", string(bData))
}
