// Package config loads the runtime's configuration: the registered
// agent catalog, dispatch rules, store/rate-limiter sizing, and the
// environment toggles enumerated in spec §6. Structure and the
// $include/env-expansion loading pipeline are grounded on the
// teacher's own internal/config package; section contents are
// rebuilt for this domain.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentmesh/core/internal/dispatch"
	"github.com/agentmesh/core/internal/store"
	"github.com/agentmesh/core/pkg/types"
)

// Config is the top-level configuration for an agentcore runtime.
type Config struct {
	Version       int                  `yaml:"version"`
	Agents        []types.AgentSpec    `yaml:"agents"`
	DispatchRules []DispatchRuleConfig `yaml:"dispatch_rules"`
	Store         StoreConfig          `yaml:"store"`
	RateLimit     RateLimitConfig      `yaml:"rate_limit"`
	Session       SessionConfig        `yaml:"session"`
	Runtime       RuntimeConfig        `yaml:"runtime"`
	Tools         ToolsConfig          `yaml:"tools"`
	Audit         AuditConfig          `yaml:"audit"`
	Logging       LoggingConfig        `yaml:"logging"`
	Observability ObservabilityConfig  `yaml:"observability"`
}

// DispatchRuleConfig is the YAML shape of one dispatch.Rule.
type DispatchRuleConfig struct {
	Name string `yaml:"name"`
	Match struct {
		KindContains string   `yaml:"kind_contains"`
		Capabilities []string `yaml:"capabilities"`
	} `yaml:"match"`
	Target string `yaml:"target"`
}

// Rule converts the YAML form into a dispatch.Rule.
func (c DispatchRuleConfig) Rule() dispatch.Rule {
	return dispatch.Rule{
		Name: c.Name,
		Match: dispatch.Match{
			KindContains: c.Match.KindContains,
			Capabilities: c.Match.Capabilities,
		},
		Target: c.Target,
	}
}

// StoreConfig configures the bounded store (C1) used for decision
// caching and tool-mapping memoization.
type StoreConfig struct {
	MaxSize     int                  `yaml:"max_size"`
	MaxBytes    int64                `yaml:"max_bytes"`
	Policy      store.EvictionPolicy `yaml:"policy"`
	DefaultTTL  time.Duration        `yaml:"default_ttl"`
	CleanupTick time.Duration        `yaml:"cleanup_tick"`
}

// RateLimitConfig configures C1's sliding-window rate limiter. Env
// toggles RATE_LIMIT_WINDOW_MS and RATE_LIMIT_MAX override the file
// values when set (spec §6).
type RateLimitConfig struct {
	WindowMs    int64 `yaml:"window_ms"`
	MaxRequests int   `yaml:"max_requests"`
}

// SessionConfig configures the default coordination session (C10).
type SessionConfig struct {
	Isolation               types.Isolation `yaml:"isolation"`
	AllowList               []string        `yaml:"allow_list"`
	MaxConcurrentOperations int             `yaml:"max_concurrent_operations"`
}

// RuntimeConfig configures the agent runtime (C7) and orchestrator (C8).
type RuntimeConfig struct {
	MaxIterations   int `yaml:"max_iterations"`
	MaxStepRetries  int `yaml:"max_step_retries"`
	DefaultStrategy string `yaml:"default_strategy"`
}

// ToolsConfig holds the tool-mapper env toggles from spec §6.
type ToolsConfig struct {
	MaxToolTokens         int  `yaml:"max_tool_tokens"`
	RefreshIntervalMs     int  `yaml:"refresh_interval_ms"`
	SyncMode              bool `yaml:"sync_mode"`
	AllowExternalTools    bool `yaml:"allow_external_tools"`
}

// AuditConfig selects the audit digest algorithm (DIGEST_ALGO).
type AuditConfig struct {
	DigestAlgo types.DigestAlgo `yaml:"digest_algo"`
}

// LoggingConfig configures structured logging, grounded on the
// teacher's own LoggingConfig shape.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ObservabilityConfig configures tracing export, grounded on the
// teacher's ObservabilityConfig/TracingConfig.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Endpoint       string  `yaml:"endpoint"`
	ServiceName    string  `yaml:"service_name"`
	SamplingRate   float64 `yaml:"sampling_rate"`
	Insecure       bool    `yaml:"insecure"`
}

// Load reads and parses the configuration file, applies environment
// overrides, fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides applies the environment toggles enumerated in spec
// §6, overriding whatever the config file set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DIGEST_ALGO"); v != "" {
		cfg.Audit.DigestAlgo = types.DigestAlgo(v)
	}
	if v := os.Getenv("MAX_TOOL_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Tools.MaxToolTokens = n
		}
	}
	if v := os.Getenv("TOOL_REFRESH_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Tools.RefreshIntervalMs = n
		}
	}
	if v := os.Getenv("SYNC_MODE"); v != "" {
		cfg.Tools.SyncMode = parseBool(v, cfg.Tools.SyncMode)
	}
	if v := os.Getenv("ALLOW_EXTERNAL_TOOLS"); v != "" {
		cfg.Tools.AllowExternalTools = parseBool(v, cfg.Tools.AllowExternalTools)
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.RateLimit.WindowMs = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.MaxRequests = n
		}
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Store.Policy == "" {
		cfg.Store.Policy = store.PolicyLRU
	}
	if cfg.Store.MaxSize == 0 {
		cfg.Store.MaxSize = 10000
	}
	if cfg.RateLimit.WindowMs == 0 {
		cfg.RateLimit.WindowMs = 1000
	}
	if cfg.RateLimit.MaxRequests == 0 {
		cfg.RateLimit.MaxRequests = 10
	}
	if cfg.Session.Isolation == "" {
		cfg.Session.Isolation = types.IsolationModerate
	}
	if cfg.Session.MaxConcurrentOperations == 0 {
		cfg.Session.MaxConcurrentOperations = 4
	}
	if cfg.Runtime.MaxIterations == 0 {
		cfg.Runtime.MaxIterations = 25
	}
	if cfg.Runtime.DefaultStrategy == "" {
		cfg.Runtime.DefaultStrategy = "sequential"
	}
	if cfg.Audit.DigestAlgo == "" {
		cfg.Audit.DigestAlgo = types.DigestSHA256
	}
	if cfg.Tools.RefreshIntervalMs == 0 {
		cfg.Tools.RefreshIntervalMs = 60000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if err := ValidateVersion(cfg.Version); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if a.ID == "" {
			return fmt.Errorf("config: agent entries must declare an id")
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("config: duplicate agent id %q", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	switch cfg.Audit.DigestAlgo {
	case types.DigestFNV1a32, types.DigestSHA256:
	default:
		return fmt.Errorf("config: unsupported digest_algo %q", cfg.Audit.DigestAlgo)
	}
	if issues := pluginValidationIssues(cfg); len(issues) > 0 {
		return fmt.Errorf("config: %s", strings.Join(issues, "; "))
	}
	return nil
}

// ResolveDispatchRules converts the configured rule list into
// dispatch.Rule values consumable by dispatch.New.
func (c *Config) ResolveDispatchRules() []dispatch.Rule {
	rules := make([]dispatch.Rule, len(c.DispatchRules))
	for i, r := range c.DispatchRules {
		rules[i] = r.Rule()
	}
	return rules
}
