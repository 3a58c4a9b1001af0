package builtin

import (
	"encoding/json"
	"path/filepath"

	"github.com/agentmesh/core/pkg/types"
)

func parentDir(path string) string { return filepath.Dir(path) }

// errResult renders err as a tool-facing error payload, grounded on
// the teacher's files.toolError helper.
func errResult(err error) *types.ToolResult {
	payload, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return &types.ToolResult{Content: err.Error(), IsError: true}
	}
	return &types.ToolResult{Content: string(payload), IsError: true}
}

func errMessage(message string) *types.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &types.ToolResult{Content: message, IsError: true}
	}
	return &types.ToolResult{Content: string(payload), IsError: true}
}
