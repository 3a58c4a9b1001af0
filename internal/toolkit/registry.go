// Package toolkit implements the versioned tool catalog, schema
// validation, and unknown-tool mapper (C5), grounded on the teacher's
// agent.ToolRegistry/Tool contract generalized with idempotent
// registration and pre-execution schema validation.
package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/agentmesh/core/pkg/types"
)

// Tool is a named, schema-validated side-effectful capability invoked
// by an agent step (C5 §4.5).
type Tool interface {
	Name() string
	Description() string
	Category() string
	RequiresPermission() bool
	InputSchema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*types.ToolResult, error)
}

// ErrDuplicateTool is returned by Register when a tool with the same
// name is already present; registration is otherwise idempotent.
type ErrDuplicateTool struct {
	Name string
}

func (e *ErrDuplicateTool) Error() string {
	return fmt.Sprintf("tool already registered: %s", e.Name)
}

// Registry is a thread-safe catalog of named tools, grounded on the
// teacher's agent.ToolRegistry map+RWMutex shape.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	validate func(schema json.RawMessage, data []byte) error
}

// NewRegistry creates an empty registry. validate defaults to the
// package's jsonschema/v5-backed validator.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		validate: ValidateAgainstSchema,
	}
}

// Register adds a tool to the catalog. Unlike the teacher's
// last-write-wins Register, this is idempotent registration per C5
// §4.5: a duplicate name fails with a typed error and leaves the
// catalog unchanged.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return &ErrDuplicateTool{Name: tool.Name()}
	}
	r.tools[tool.Name()] = tool
	return nil
}

// Unregister removes a tool by name. No-op if absent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns tool specs, optionally filtered by category. Sorted by
// name for deterministic output.
func (r *Registry) List(category string) []types.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]types.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		if category != "" && t.Category() != category {
			continue
		}
		specs = append(specs, toSpec(t))
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

func toSpec(t Tool) types.ToolSpec {
	return types.ToolSpec{
		Name:               t.Name(),
		Description:        t.Description(),
		InputSchema:        t.InputSchema(),
		Category:           t.Category(),
		RequiresPermission: t.RequiresPermission(),
	}
}

// Execute validates params against the tool's declared schema, then
// invokes it. Validation failure never reaches the tool body (C5
// §4.5 "input validation").
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage) (*types.ToolResult, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewCoreError(types.ErrToolNotFound, "tool not found: "+name, nil)
	}

	if schema := tool.InputSchema(); len(schema) > 0 {
		if err := r.validate(schema, params); err != nil {
			return nil, types.NewCoreError(types.ErrValidation, "tool input failed schema validation", err)
		}
	}

	select {
	case <-ctx.Done():
		return &types.ToolResult{IsError: true, Content: "aborted"}, types.NewCoreError(types.ErrCancelled, "tool call aborted before start", ctx.Err())
	default:
	}

	result, err := tool.Execute(ctx, params)
	if err != nil {
		return result, err
	}
	return result, nil
}
