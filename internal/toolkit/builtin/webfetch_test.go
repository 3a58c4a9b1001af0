package builtin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/core/pkg/types"
)

func TestWebFetchTool_BlocksLoopbackTarget(t *testing.T) {
	tool := NewWebFetchTool(WebFetchConfig{})
	params, _ := json.Marshal(map[string]any{"url": "http://127.0.0.1:9999/secret"})

	_, err := tool.Execute(context.Background(), params)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrSecurityViolation))
}

func TestWebFetchTool_RejectsNonHTTPScheme(t *testing.T) {
	tool := NewWebFetchTool(WebFetchConfig{})
	params, _ := json.Marshal(map[string]any{"url": "file:///etc/passwd"})

	result, err := tool.Execute(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
