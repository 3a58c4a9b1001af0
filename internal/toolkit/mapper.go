package toolkit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/agentmesh/core/internal/store"
	"github.com/agentmesh/core/internal/toolkit/policy"
	"github.com/agentmesh/core/pkg/types"
)

// categoryRule maps a toolType pattern to a known category family and
// the fallback it resolves to when no exact tool is registered,
// grounded on C5 §4.5 item 4's enumerated heuristics.
type categoryRule struct {
	pattern    *regexp.Regexp
	category   string
	fallback   types.MappedTool
	confidence float64
}

var categoryRules = []categoryRule{
	{regexp.MustCompile(`(?i)search`), "search", types.MappedTool{Type: "web-search", Category: "search"}, 0.7},
	{regexp.MustCompile(`(?i)file`), "file", types.MappedTool{Type: "file-read", Category: "file"}, 0.6},
	{regexp.MustCompile(`(?i)(data|analysis)`), "data", types.MappedTool{Type: "database-query", Category: "data"}, 0.5},
	{regexp.MustCompile(`(?i)(chart|plot|visuali[sz]ation)`), "visualization", types.MappedTool{Type: "chart-render", Category: "visualization"}, 0.45},
	{regexp.MustCompile(`(?i)(ml|model|predict|inference)`), "ml", types.MappedTool{Type: "ml-inference", Category: "ml"}, 0.4},
}

var genericFallback = types.MappedTool{Type: "web-search", Category: "search"}

const genericFallbackConfidence = 0.3

// MapperConfig configures the Mapper. Validated at construction per
// C5 §4.5's invariant: maxRetries >= 0, fallbackTimeout >= 1s, at
// least one supported tool type.
type MapperConfig struct {
	Registry           *Registry
	Cache              *store.Store
	CacheTTL           time.Duration
	Gate               *policy.Gate
	SupportedToolTypes []string
	AllowFallbacks     bool
	MaxRetries         int
	FallbackTimeout    time.Duration
	Publish            func(types.Event)
}

// Mapper resolves UnknownToolRequests to a catalog entry or a safe
// fallback, per C5 §4.5.
type Mapper struct {
	cfg     MapperConfig
	support map[string]struct{}
}

// NewMapper validates cfg and returns a Mapper, or an error if the
// configuration violates an invariant.
func NewMapper(cfg MapperConfig) (*Mapper, error) {
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("toolkit: maxRetries must be >= 0")
	}
	if cfg.FallbackTimeout < time.Second {
		return nil, fmt.Errorf("toolkit: fallbackTimeout must be >= 1000ms")
	}
	if len(cfg.SupportedToolTypes) == 0 {
		return nil, fmt.Errorf("toolkit: at least one supported tool type is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("toolkit: registry is required")
	}
	support := make(map[string]struct{}, len(cfg.SupportedToolTypes))
	for _, t := range cfg.SupportedToolTypes {
		support[t] = struct{}{}
	}
	return &Mapper{cfg: cfg, support: support}, nil
}

func (m *Mapper) publish(e types.Event) {
	if m.cfg.Publish != nil {
		m.cfg.Publish(e)
	}
}

// Resolve runs the mapper's five-step policy against req.
func (m *Mapper) Resolve(ctx context.Context, req types.UnknownToolRequest) types.ToolMappingResult {
	start := time.Now()
	m.publish(types.Event{Type: types.EventToolMappingStarted, Data: map[string]any{"toolType": req.ToolType}})

	// Step 1: security gate.
	isExternal, _ := req.Context["external"].(bool)
	rawInput := flattenParams(req.Parameters)
	if reason := m.cfg.Gate.Check(req.ToolType, rawInput, isExternal); reason != "" {
		res := types.ToolMappingResult{
			Success:        false,
			SecurityReason: reason,
			ProcessingMs:   time.Since(start).Milliseconds(),
		}
		m.publish(types.Event{Type: types.EventToolMappingError, Data: map[string]any{"toolType": req.ToolType, "securityReason": reason}})
		return res
	}

	cacheKey := m.cacheKey(req)

	// Step 2: cache lookup.
	if m.cfg.Cache != nil {
		if cached, ok := m.cfg.Cache.Get(cacheKey); ok {
			result := cached.(types.ToolMappingResult)
			result.FromCache = true
			result.ProcessingMs = time.Since(start).Milliseconds()
			m.publish(types.Event{Type: types.EventToolMappingComplete, Data: map[string]any{"toolType": req.ToolType, "fromCache": true}})
			return result
		}
	}

	result := m.resolveUncached(req)
	result.ProcessingMs = time.Since(start).Milliseconds()

	if m.cfg.Cache != nil && result.Success {
		cached := result
		cached.FromCache = false
		m.cfg.Cache.Set(cacheKey, cached, m.cfg.CacheTTL)
	}

	m.publish(types.Event{Type: types.EventToolMappingComplete, Data: map[string]any{"toolType": req.ToolType, "fallbackUsed": result.FallbackUsed}})
	return result
}

func (m *Mapper) resolveUncached(req types.UnknownToolRequest) types.ToolMappingResult {
	// Exact registry hit.
	if _, ok := m.cfg.Registry.Get(req.ToolType); ok {
		return types.ToolMappingResult{
			Success:              true,
			MappedTool:           &types.MappedTool{Type: req.ToolType},
			Confidence:           1,
			VersionCompatibility: m.versionCompatibility(req, req.ToolType),
		}
	}

	if _, supported := m.support[req.ToolType]; !supported {
		// Step 3: discovery by category pattern match.
		if rule := matchCategory(req.ToolType); rule != nil {
			discovered := &discoveredTool{
				name:     req.ToolType,
				category: rule.category,
			}
			_ = m.cfg.Registry.Register(discovered) // idempotent; ignore duplicate

			result := types.ToolMappingResult{
				Success:            true,
				MappedTool:         &types.MappedTool{Type: req.ToolType, Category: rule.category, Version: "0.0.0-discovered"},
				DiscoveryAttempted: true,
				Confidence:         rule.confidence,
			}
			result.VersionCompatibility = m.versionCompatibility(req, req.ToolType)
			return result
		}
	}

	// Step 4: fallback mapping.
	if !m.cfg.AllowFallbacks {
		return types.ToolMappingResult{Success: false, GracefulDegradation: true, DiscoveryAttempted: true}
	}

	mapped := genericFallback
	confidence := genericFallbackConfidence
	if rule := matchCategory(req.ToolType); rule != nil {
		mapped = rule.fallback
		confidence = rule.confidence
	}

	result := types.ToolMappingResult{
		Success:            true,
		MappedTool:         &mapped,
		FallbackUsed:       true,
		Confidence:         confidence,
		DiscoveryAttempted: true,
	}
	result.VersionCompatibility = m.versionCompatibility(req, mapped.Type)
	return result
}

func matchCategory(toolType string) *categoryRule {
	for i := range categoryRules {
		if categoryRules[i].pattern.MatchString(toolType) {
			return &categoryRules[i]
		}
	}
	return nil
}

// versionCompatibility records compatibility when the caller specified
// a requiredVersion (C5 §4.5 item 5). Without a real version registry
// per tool, an exact registry match is treated as compatible and
// anything else as unknown.
func (m *Mapper) versionCompatibility(req types.UnknownToolRequest, resolvedType string) types.VersionCompatibility {
	if req.RequiredVersion == "" {
		return ""
	}
	if _, ok := m.cfg.Registry.Get(resolvedType); ok {
		return types.VersionCompatible
	}
	return types.VersionUnknown
}

// cacheKey is a stable hash of (toolType, parameters, context-subset),
// per C5 §4.5 item 2. Context is narrowed to the "external" flag
// since the full context map may carry caller-specific, non-cacheable
// values (e.g. correlation IDs).
func (m *Mapper) cacheKey(req types.UnknownToolRequest) string {
	subset := map[string]any{
		"toolType":   req.ToolType,
		"parameters": sortedJSON(req.Parameters),
		"external":   req.Context["external"],
	}
	payload, _ := json.Marshal(subset)
	sum := sha256.Sum256(payload)
	return "toolmap:" + hex.EncodeToString(sum[:])
}

func sortedJSON(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, m[k])
	}
	payload, _ := json.Marshal(ordered)
	return string(payload)
}

func flattenParams(params map[string]any) string {
	payload, _ := json.Marshal(params)
	return string(payload)
}

// discoveredTool is the catalog placeholder registered by step 3
// discovery. It has no real body; executing it reports not_supported
// until a concrete implementation is registered in its place.
type discoveredTool struct {
	name     string
	category string
}

func (d *discoveredTool) Name() string                  { return d.name }
func (d *discoveredTool) Description() string           { return "discovered tool, pending a concrete implementation" }
func (d *discoveredTool) Category() string               { return d.category }
func (d *discoveredTool) RequiresPermission() bool       { return true }
func (d *discoveredTool) InputSchema() json.RawMessage   { return nil }
func (d *discoveredTool) Execute(ctx context.Context, params json.RawMessage) (*types.ToolResult, error) {
	return nil, types.NewCoreError(types.ErrNotSupported, "discovered tool "+d.name+" has no registered implementation", nil)
}
