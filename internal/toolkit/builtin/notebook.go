package builtin

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/agentmesh/core/pkg/types"
)

// notebookCell is a minimal Jupyter-style cell; unknown fields are
// preserved in Raw so a write-back doesn't lose notebook metadata.
type notebookCell struct {
	CellType string   `json:"cell_type"`
	Source   []string `json:"source"`
}

type notebookDoc struct {
	Cells []notebookCell `json:"cells"`
	Raw   map[string]any `json:"-"`
}

// NotebookReadTool reads a Jupyter notebook's cells, grounded on the
// teacher's config loader's use of json5 for lenient JSON parsing
// (notebooks routinely carry trailing commas / comments from editors).
type NotebookReadTool struct {
	resolver Resolver
}

func NewNotebookReadTool(cfg FileConfig) *NotebookReadTool {
	return &NotebookReadTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *NotebookReadTool) Name() string            { return "notebook_read" }
func (t *NotebookReadTool) Description() string     { return "Read the cells of a Jupyter notebook." }
func (t *NotebookReadTool) Category() string        { return "file" }
func (t *NotebookReadTool) RequiresPermission() bool { return false }

func (t *NotebookReadTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)
}

func (t *NotebookReadTool) Execute(ctx context.Context, params json.RawMessage) (*types.ToolResult, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(err), nil
	}
	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return errResult(err), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return errResult(err), nil
	}
	var doc notebookDoc
	if err := json5.Unmarshal(data, &doc); err != nil {
		return errResult(err), nil
	}
	payload, _ := json.Marshal(doc.Cells)
	return &types.ToolResult{Content: string(payload)}, nil
}

// NotebookEditTool replaces the source of a single cell by index.
type NotebookEditTool struct {
	resolver Resolver
}

func NewNotebookEditTool(cfg FileConfig) *NotebookEditTool {
	return &NotebookEditTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *NotebookEditTool) Name() string            { return "notebook_edit" }
func (t *NotebookEditTool) Description() string     { return "Replace the source of a notebook cell by index." }
func (t *NotebookEditTool) Category() string        { return "file" }
func (t *NotebookEditTool) RequiresPermission() bool { return true }

func (t *NotebookEditTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type":"object",
		"properties":{
			"path":{"type":"string"},
			"cell_index":{"type":"integer","minimum":0},
			"source":{"type":"string"}
		},
		"required":["path","cell_index","source"]
	}`)
}

func (t *NotebookEditTool) Execute(ctx context.Context, params json.RawMessage) (*types.ToolResult, error) {
	var input struct {
		Path      string `json:"path"`
		CellIndex int    `json:"cell_index"`
		Source    string `json:"source"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(err), nil
	}
	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return errResult(err), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return errResult(err), nil
	}

	var raw map[string]json.RawMessage
	if err := json5.Unmarshal(data, &raw); err != nil {
		return errResult(err), nil
	}
	var cells []map[string]any
	if err := json.Unmarshal(raw["cells"], &cells); err != nil {
		return errResult(err), nil
	}
	if input.CellIndex < 0 || input.CellIndex >= len(cells) {
		return errMessage("cell_index out of range"), nil
	}
	cells[input.CellIndex]["source"] = strings.Split(input.Source, "\n")
	encodedCells, err := json.Marshal(cells)
	if err != nil {
		return errResult(err), nil
	}
	raw["cells"] = encodedCells

	out, err := json.MarshalIndent(raw, "", " ")
	if err != nil {
		return errResult(err), nil
	}
	if err := os.WriteFile(resolved, out, 0o644); err != nil {
		return errResult(err), nil
	}

	payload, _ := json.Marshal(map[string]any{"path": input.Path, "cellIndex": input.CellIndex})
	return &types.ToolResult{Content: string(payload)}, nil
}
