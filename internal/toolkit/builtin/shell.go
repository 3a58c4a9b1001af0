package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/agentmesh/core/pkg/types"
)

// ShellConfig controls the shell tool's defaults.
type ShellConfig struct {
	Workspace      string
	DefaultTimeout time.Duration
}

// ShellTool runs a gated shell command in the workspace, grounded on
// the teacher's exec.ExecTool synchronous path (background execution
// and the process table are out of scope here).
type ShellTool struct {
	workspace string
	timeout   time.Duration
}

func NewShellTool(cfg ShellConfig) *ShellTool {
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ShellTool{workspace: cfg.Workspace, timeout: timeout}
}

func (t *ShellTool) Name() string            { return "shell_exec" }
func (t *ShellTool) Description() string     { return "Run a shell command in the workspace." }
func (t *ShellTool) Category() string        { return "exec" }
func (t *ShellTool) RequiresPermission() bool { return true }

func (t *ShellTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type":"object",
		"properties":{
			"command":{"type":"string"},
			"timeout_seconds":{"type":"integer","minimum":0}
		},
		"required":["command"]
	}`)
}

func (t *ShellTool) Execute(ctx context.Context, params json.RawMessage) (*types.ToolResult, error) {
	var input struct {
		Command        string `json:"command"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(err), nil
	}
	command := strings.TrimSpace(input.Command)
	if command == "" {
		return errMessage("command is required"), nil
	}

	timeout := t.timeout
	if input.TimeoutSeconds > 0 {
		timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	if t.workspace != "" {
		cmd.Dir = t.workspace
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() != nil {
		return &types.ToolResult{IsError: true, Content: "aborted", Partial: stdout.Len() > 0}, types.NewCoreError(types.ErrCancelled, "shell command aborted", runCtx.Err())
	}

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return errResult(err), nil
		}
	}

	payload, _ := json.Marshal(map[string]any{
		"stdout": stdout.String(), "stderr": stderr.String(), "exitCode": exitCode,
	})
	return &types.ToolResult{Content: string(payload), IsError: exitCode != 0}, nil
}
