package builtin

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/agentmesh/core/pkg/types"
)

// FileConfig controls filesystem tool defaults, shared by the read,
// write, edit, and multi-edit families.
type FileConfig struct {
	Workspace    string
	MaxReadBytes int
}

// ReadTool reads a file within the workspace with an offset/limit,
// grounded on the teacher's files.ReadTool.
type ReadTool struct {
	resolver   Resolver
	maxReadLen int
}

func NewReadTool(cfg FileConfig) *ReadTool {
	limit := cfg.MaxReadBytes
	if limit <= 0 {
		limit = 200000
	}
	return &ReadTool{resolver: Resolver{Root: cfg.Workspace}, maxReadLen: limit}
}

func (t *ReadTool) Name() string            { return "file_read" }
func (t *ReadTool) Description() string     { return "Read a file from the workspace with optional offset and byte limit." }
func (t *ReadTool) Category() string        { return "file" }
func (t *ReadTool) RequiresPermission() bool { return false }

func (t *ReadTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"offset": {"type": "integer", "minimum": 0},
			"max_bytes": {"type": "integer", "minimum": 0}
		},
		"required": ["path"]
	}`)
}

func (t *ReadTool) Execute(ctx context.Context, params json.RawMessage) (*types.ToolResult, error) {
	var input struct {
		Path     string `json:"path"`
		Offset   int64  `json:"offset"`
		MaxBytes int    `json:"max_bytes"`
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

	select {
	case <-ctx.Done():
		return &types.ToolResult{IsError: true, Content: "aborted"}, types.NewCoreError(types.ErrCancelled, "file read aborted", ctx.Err())
	default:
	}

	file, err := os.Open(resolved)
	if err != nil {
		return errResult(err), nil
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errResult(err), nil
	}
	if input.Offset > 0 {
		if _, err := file.Seek(input.Offset, io.SeekStart); err != nil {
			return errResult(err), nil
		}
	}

	limit := t.maxReadLen
	if input.MaxBytes > 0 && input.MaxBytes < limit {
		limit = input.MaxBytes
	}
	remaining := int64(limit)
	if size := info.Size(); size > 0 {
		remaining = size - input.Offset
		if remaining < 0 {
			remaining = 0
		}
		if remaining > int64(limit) {
			remaining = int64(limit)
		}
	}

	buf, err := io.ReadAll(io.LimitReader(file, remaining))
	if err != nil {
		return errResult(err), nil
	}
	truncated := info.Size() > 0 && input.Offset+int64(len(buf)) < info.Size()

	payload, _ := json.Marshal(map[string]any{
		"path": input.Path, "content": string(buf), "offset": input.Offset,
		"bytes": len(buf), "truncated": truncated,
	})
	return &types.ToolResult{Content: string(payload)}, nil
}
