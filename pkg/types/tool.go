package types

import "encoding/json"

// ToolSpec describes a catalog entry in the tool registry (C5). Inputs
// are validated against InputSchema before Execute is ever called.
type ToolSpec struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	InputSchema       json.RawMessage `json:"inputSchema"`
	Category          string          `json:"category"`
	RequiresPermission bool           `json:"requiresPermission"`
	Version           string          `json:"version,omitempty"`
}

// VersionCompatibility is recorded on a ToolMappingResult when the
// caller specified a requiredVersion for the resolved tool.
type VersionCompatibility string

const (
	VersionCompatible   VersionCompatibility = "compatible"
	VersionIncompatible VersionCompatibility = "incompatible"
	VersionUnknown      VersionCompatibility = "unknown"
)

// UnknownToolRequest is what the caller hands the mapper when the
// requested tool type isn't a direct, exact registry hit.
type UnknownToolRequest struct {
	ToolType        string         `json:"toolType"`
	Parameters      map[string]any `json:"parameters"`
	Context         map[string]any `json:"context"`
	RequiredVersion string         `json:"requiredVersion,omitempty"`
}

// MappedTool identifies the tool a mapping resolved to.
type MappedTool struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Version  string `json:"version,omitempty"`
}

// ToolMappingResult is produced by the C5 mapper for every
// UnknownToolRequest, cacheable by a stable hash of its inputs.
type ToolMappingResult struct {
	Success               bool                 `json:"success"`
	MappedTool            *MappedTool          `json:"mappedTool,omitempty"`
	FallbackUsed          bool                 `json:"fallbackUsed"`
	Confidence            float64              `json:"confidence"`
	DiscoveryAttempted    bool                 `json:"discoveryAttempted"`
	FromCache             bool                 `json:"fromCache"`
	VersionCompatibility  VersionCompatibility `json:"versionCompatibility,omitempty"`
	SecurityReason        string               `json:"securityReason,omitempty"`
	GracefulDegradation   bool                 `json:"gracefulDegradation,omitempty"`
	ProcessingMs          int64                `json:"processingMs"`
}

// ToolResult is the outcome of executing a tool against the registry.
type ToolResult struct {
	Content        string   `json:"content"`
	IsError        bool     `json:"isError,omitempty"`
	RollbackPerformed bool  `json:"rollbackPerformed,omitempty"`
	Partial        bool     `json:"partial,omitempty"`
}
