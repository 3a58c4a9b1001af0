// Package main provides the agentcored CLI: a thin front door onto the
// agentcore programmatic surface. Per spec §6 the CLI is out of scope
// for the core and only reads these interfaces — it assembles a
// Provider, EventBus, Tools registry and Agent from a config file and
// drives one task through Execute, or validates a config file without
// running anything.
//
// Grounded on the teacher's cmd/nexus: a cobra root command with
// persistent flags and one subcommand per operation, structured JSON
// logging to stderr via slog.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentmesh/core/internal/circuit"
	"github.com/agentmesh/core/internal/config"
	"github.com/agentmesh/core/internal/eventbus"
	"github.com/agentmesh/core/internal/provider"
	"github.com/agentmesh/core/internal/toolkit"
	"github.com/agentmesh/core/internal/toolkit/builtin"
	agentcore "github.com/agentmesh/core"
	"github.com/agentmesh/core/pkg/types"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agentcored",
		Short:        "agentcored - agent runtime core",
		Long:         "agentcored assembles a provider, event bus, tool registry and agent from a config file, then runs one task through it.",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildRunCmd(), buildValidateCmd())
	return rootCmd
}

func buildValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a config file without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config valid: %d agent(s), %d dispatch rule(s), digest algo %s\n",
				len(cfg.Agents), len(cfg.DispatchRules), cfg.Audit.DigestAlgo)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "agentcore.yaml", "path to the config file")
	return cmd
}

func buildRunCmd() *cobra.Command {
	var configPath, taskPath, workspace string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one task through an Agent assembled from the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			task, err := loadTask(taskPath)
			if err != nil {
				return fmt.Errorf("load task: %w", err)
			}

			prov, err := defaultProvider()
			if err != nil {
				return err
			}

			bus := eventbus.New(eventbus.Config{Logger: slog.Default()})
			defer bus.Close()
			bus.Subscribe("", func(e types.Event) {
				slog.Info("event", "type", e.Type, "correlation_id", e.CorrelationID)
			})

			tools := buildToolRegistry(workspace)

			breakers := circuit.NewRegistry(circuit.Config{})

			agent, err := agentcore.CreateAgent(agentcore.AgentConfig{
				Provider:       prov,
				Breakers:       breakers,
				EventBus:       bus,
				Tools:          tools,
				MaxIterations:  cfg.Runtime.MaxIterations,
				MaxStepRetries: cfg.Runtime.MaxStepRetries,
				Logger:         slog.Default(),
			})
			if err != nil {
				return fmt.Errorf("create agent: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), deadlineFor(task))
			defer cancel()

			state, err := agent.Execute(ctx, task)
			if err != nil {
				slog.Error("task execution failed", "error", err)
			}

			encoded, marshalErr := json.MarshalIndent(state, "", "  ")
			if marshalErr != nil {
				return fmt.Errorf("encode result: %w", marshalErr)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

			if err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "agentcore.yaml", "path to the config file")
	cmd.Flags().StringVar(&taskPath, "task", "", "path to a JSON-encoded Task, or '-' for stdin")
	cmd.Flags().StringVar(&workspace, "workspace", ".", "workspace root for file/shell tools")
	return cmd
}

func loadTask(path string) (types.Task, error) {
	var task types.Task
	var r io.Reader
	switch path {
	case "":
		return types.Task{}, fmt.Errorf("--task is required")
	case "-":
		r = os.Stdin
	default:
		f, err := os.Open(path)
		if err != nil {
			return task, err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&task); err != nil {
		return task, fmt.Errorf("decode task: %w", err)
	}
	if task.ID == "" {
		task.ID = "cli-" + time.Now().UTC().Format("20060102T150405.000000000Z")
	}
	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now().UTC()
	}
	return task, nil
}

func deadlineFor(task types.Task) time.Duration {
	if task.Budget.WallMs > 0 {
		return time.Duration(task.Budget.WallMs) * time.Millisecond
	}
	return 2 * time.Minute
}

// defaultProvider picks a single provider from the environment: an
// Anthropic API key takes precedence over an OpenAI one, matching the
// teacher's provider-selection order in cmd/nexus's setup flow.
func defaultProvider() (provider.Provider, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return provider.NewAnthropicProvider(provider.AnthropicConfig{
			APIKey:       key,
			DefaultModel: envOr("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
		}), nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:       key,
			DefaultModel: envOr("OPENAI_MODEL", "gpt-4o"),
		}), nil
	}
	return nil, fmt.Errorf("no provider credentials found: set ANTHROPIC_API_KEY or OPENAI_API_KEY")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// buildToolRegistry registers the built-in tool families enumerated in
// spec §6: file read/write/edit/multi-edit, directory glob, content
// grep, notebook read/edit, web fetch, web search, and the shell.
func buildToolRegistry(workspace string) *toolkit.Registry {
	registry := toolkit.NewRegistry()
	fileCfg := builtin.FileConfig{Workspace: workspace}

	tools := []toolkit.Tool{
		builtin.NewReadTool(fileCfg),
		builtin.NewWriteTool(fileCfg),
		builtin.NewEditTool(fileCfg),
		builtin.NewMultiEditTool(fileCfg),
		builtin.NewGlobTool(fileCfg),
		builtin.NewGrepTool(fileCfg),
		builtin.NewNotebookReadTool(fileCfg),
		builtin.NewNotebookEditTool(fileCfg),
		builtin.NewWebFetchTool(builtin.WebFetchConfig{}),
		builtin.NewWebSearchTool(builtin.WebSearchConfig{}),
		builtin.NewShellTool(builtin.ShellConfig{Workspace: workspace, DefaultTimeout: 30 * time.Second}),
	}
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			slog.Warn("tool registration skipped", "tool", tool.Name(), "error", err)
		}
	}
	return registry
}
