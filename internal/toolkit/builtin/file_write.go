package builtin

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/agentmesh/core/pkg/types"
)

// WriteTool writes a file within the workspace, grounded on the
// teacher's files.WriteTool.
type WriteTool struct {
	resolver Resolver
}

func NewWriteTool(cfg FileConfig) *WriteTool {
	return &WriteTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *WriteTool) Name() string            { return "file_write" }
func (t *WriteTool) Description() string     { return "Write content to a file in the workspace, creating parent directories as needed." }
func (t *WriteTool) Category() string        { return "file" }
func (t *WriteTool) RequiresPermission() bool { return true }

func (t *WriteTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"content": {"type": "string"}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, params json.RawMessage) (*types.ToolResult, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(err), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return errMessage("path is required"), nil
	}
	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return errResult(err), nil
	}
	if err := os.MkdirAll(parentDir(resolved), 0o755); err != nil {
		return errResult(err), nil
	}
	if err := os.WriteFile(resolved, []byte(input.Content), 0o644); err != nil {
		return errResult(err), nil
	}
	payload, _ := json.Marshal(map[string]any{"path": input.Path, "bytes": len(input.Content)})
	return &types.ToolResult{Content: string(payload)}, nil
}
