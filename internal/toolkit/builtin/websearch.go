package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/agentmesh/core/pkg/types"
)

// WebSearchConfig controls the web_search tool's backend endpoint.
type WebSearchConfig struct {
	Endpoint string
	Client   *http.Client
	MaxCount int
}

// WebSearchTool queries a configured search backend, grounded on the
// teacher's websearch.WebSearchTool query/result shape, simplified to
// a single JSON endpoint rather than the teacher's multi-backend
// selection (this is the fallback target the C5 mapper resolves
// "*search*"-shaped unknown requests to).
type WebSearchTool struct {
	endpoint string
	client   *http.Client
	maxCount int
}

func NewWebSearchTool(cfg WebSearchConfig) *WebSearchTool {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	maxCount := cfg.MaxCount
	if maxCount <= 0 {
		maxCount = 10
	}
	return &WebSearchTool{endpoint: cfg.Endpoint, client: client, maxCount: maxCount}
}

func (t *WebSearchTool) Name() string            { return "web-search" }
func (t *WebSearchTool) Description() string     { return "Search the web and return ranked results." }
func (t *WebSearchTool) Category() string        { return "search" }
func (t *WebSearchTool) RequiresPermission() bool { return true }

func (t *WebSearchTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type":"object",
		"properties":{
			"query":{"type":"string"},
			"count":{"type":"integer","minimum":1}
		},
		"required":["query"]
	}`)
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

func (t *WebSearchTool) Execute(ctx context.Context, params json.RawMessage) (*types.ToolResult, error) {
	var input struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(err), nil
	}
	if input.Query == "" {
		return errMessage("query is required"), nil
	}
	if t.endpoint == "" {
		return errMessage("web search backend is not configured"), nil
	}

	count := input.Count
	if count <= 0 || count > t.maxCount {
		count = t.maxCount
	}

	q := url.Values{"q": {input.Query}, "count": {strconv.Itoa(count)}}
	reqURL := t.endpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errResult(err), nil
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return errResult(err), nil
	}
	defer resp.Body.Close()

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return errResult(err), nil
	}

	payload, _ := json.Marshal(map[string]any{"query": input.Query, "results": results})
	return &types.ToolResult{Content: string(payload)}, nil
}
