package builtin

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/agentmesh/core/pkg/types"
)

// blockPrivateAddress rejects a resolved host that maps to loopback,
// link-local, or private RFC1918/RFC4193 address space, grounded on
// the teacher's internal/net/ssrf guard; this adapter uses net.IP's
// built-in classification instead of the teacher's hand-rolled octet
// parser, since no third-party IP-range library appears anywhere in
// the retrieved corpus and net.IP already implements exactly this
// check.
func blockPrivateAddress(host string) error {
	ips, err := net.LookupIP(host)
	if err != nil {
		return err
	}
	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return types.NewCoreError(types.ErrSecurityViolation, "refusing to fetch private/local address: "+host, nil)
		}
	}
	return nil
}

// WebFetchConfig controls web_fetch defaults.
type WebFetchConfig struct {
	MaxChars int
	Client   *http.Client
}

// WebFetchTool fetches a remote URL and returns its text content,
// refusing requests targeting local/private address space (C5's
// built-in tool family list, §6).
type WebFetchTool struct {
	maxChars int
	client   *http.Client
}

func NewWebFetchTool(cfg WebFetchConfig) *WebFetchTool {
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 10000
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WebFetchTool{maxChars: maxChars, client: client}
}

func (t *WebFetchTool) Name() string            { return "web_fetch" }
func (t *WebFetchTool) Description() string     { return "Fetch a URL's content, refusing local or private network targets." }
func (t *WebFetchTool) Category() string        { return "search" }
func (t *WebFetchTool) RequiresPermission() bool { return true }

func (t *WebFetchTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type":"object",
		"properties":{
			"url":{"type":"string"},
			"max_chars":{"type":"integer","minimum":0}
		},
		"required":["url"]
	}`)
}

func (t *WebFetchTool) Execute(ctx context.Context, params json.RawMessage) (*types.ToolResult, error) {
	var input struct {
		URL      string `json:"url"`
		MaxChars int    `json:"max_chars"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(err), nil
	}
	parsed, err := url.Parse(input.URL)
	if err != nil {
		return errResult(err), nil
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errMessage("only http/https URLs are supported"), nil
	}
	if err := blockPrivateAddress(parsed.Hostname()); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return errResult(err), nil
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return errResult(err), nil
	}
	defer resp.Body.Close()

	limit := t.maxChars
	if input.MaxChars > 0 && input.MaxChars < limit {
		limit = input.MaxChars
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)))
	if err != nil {
		return errResult(err), nil
	}

	payload, _ := json.Marshal(map[string]any{"url": input.URL, "status": resp.StatusCode, "content": string(body)})
	return &types.ToolResult{Content: string(payload)}, nil
}
