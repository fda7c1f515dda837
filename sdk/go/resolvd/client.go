package resolvd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ModeHeader carries a per-request platform mode override ("local" or
// "remote") and reports the effective mode back on responses.
const ModeHeader = "X-Resolvd-Mode"

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the resolvd server (e.g. "http://localhost:8080").
	BaseURL string

	// Mode, when non-empty, is sent as a platform-mode override on every
	// request ("local" or "remote").
	Mode string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the resolvd environment resolution API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	mode    string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("resolvd: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		mode:    cfg.Mode,
		client:  httpClient,
	}, nil
}

// Resolve turns a requirement list into a context. An unsatisfiable set
// comes back as a context with status "failed" rather than an error; check
// Context.Status before using the environment.
func (c *Client) Resolve(ctx context.Context, req ResolveRequest) (*Context, error) {
	var resp Context
	if err := c.post(ctx, "/api/v1/environments/resolve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListEnvironments returns all live contexts.
func (c *Client) ListEnvironments(ctx context.Context) ([]Context, error) {
	var resp []Context
	if err := c.get(ctx, "/api/v1/environments", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetEnvironment retrieves one context by id.
func (c *Client) GetEnvironment(ctx context.Context, id string) (*Context, error) {
	var resp Context
	if err := c.get(ctx, "/api/v1/environments/"+id, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteEnvironment discards a context. Returns nil on success (204 No Content).
func (c *Client) DeleteEnvironment(ctx context.Context, id string) error {
	return c.doDelete(ctx, "/api/v1/environments/"+id)
}

// Execute runs a command inside a context's environment and returns the
// captured output. A command that times out or exits non-zero is still a
// successful call; inspect ExecuteResult.
func (c *Client) Execute(ctx context.Context, id string, req ExecuteRequest) (*ExecuteResult, error) {
	var resp ExecuteResult
	if err := c.post(ctx, "/api/v1/environments/"+id+"/execute", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Suites
// ---------------------------------------------------------------------------

// CreateSuite creates an empty suite.
func (c *Client) CreateSuite(ctx context.Context, name, description string) (*Suite, error) {
	body := map[string]any{"name": name, "description": description}
	var resp Suite
	if err := c.post(ctx, "/api/v1/suites", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSuites returns all suites.
func (c *Client) ListSuites(ctx context.Context) ([]Suite, error) {
	var resp []Suite
	if err := c.get(ctx, "/api/v1/suites", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetSuite retrieves one suite by id.
func (c *Client) GetSuite(ctx context.Context, id string) (*Suite, error) {
	var resp Suite
	if err := c.get(ctx, "/api/v1/suites/"+id, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteSuite discards a suite. The member contexts stay alive.
func (c *Client) DeleteSuite(ctx context.Context, id string) error {
	return c.doDelete(ctx, "/api/v1/suites/"+id)
}

// AddContext adds a context to a suite. The context's tools join the suite
// namespace; on a name collision the newest context wins.
func (c *Client) AddContext(ctx context.Context, suiteID, contextID string) (*Suite, error) {
	body := map[string]any{"context_id": contextID}
	var resp Suite
	if err := c.post(ctx, "/api/v1/suites/"+suiteID+"/contexts", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AliasTool exposes a tool under a different name. Aliasing again replaces
// the previous alias; the natural name is no longer exposed.
func (c *Client) AliasTool(ctx context.Context, suiteID, tool, alias string) (*Suite, error) {
	body := map[string]any{"tool": tool, "alias": alias}
	var resp Suite
	if err := c.post(ctx, "/api/v1/suites/"+suiteID+"/tools/alias", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Tools lists a suite's tools with staleness and shadowing flags.
func (c *Client) Tools(ctx context.Context, suiteID string) (*SuiteTools, error) {
	var resp SuiteTools
	if err := c.get(ctx, "/api/v1/suites/"+suiteID+"/tools", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveSuite persists a suite to disk. An empty path uses the server's suites
// directory and the suite name.
func (c *Client) SaveSuite(ctx context.Context, suiteID, path string) (*Suite, error) {
	body := map[string]any{"path": path}
	var resp Suite
	if err := c.post(ctx, "/api/v1/suites/"+suiteID+"/save", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoadSuite recreates a saved suite, re-resolving every member context.
func (c *Client) LoadSuite(ctx context.Context, path string) (*Suite, error) {
	body := map[string]any{"path": path}
	var resp Suite
	if err := c.post(ctx, "/api/v1/suites/load", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Resolver utilities and system
// ---------------------------------------------------------------------------

// Validate checks requirement syntax without consulting the solver.
func (c *Client) Validate(ctx context.Context, packages []string) (*ValidateResult, error) {
	body := map[string]any{"packages": packages}
	var resp ValidateResult
	if err := c.post(ctx, "/api/v1/resolver/validate", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Conflicts dry-runs a resolution and reports unsatisfiable constraints
// without creating a context.
func (c *Client) Conflicts(ctx context.Context, packages []string, platform *Platform) (*ConflictsResult, error) {
	body := map[string]any{"packages": packages}
	if platform != nil {
		body["platform"] = platform
	}
	var resp ConflictsResult
	if err := c.post(ctx, "/api/v1/resolver/conflicts", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SystemStatus reports server mode, host platform, and live object counts.
func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var resp SystemStatus
	if err := c.get(ctx, "/api/v1/system/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks the server's health status.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var resp Health
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("resolvd: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("resolvd: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("resolvd: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("resolvd: create request: %w", err)
	}

	return c.doRequest(req, nil)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	if c.mode != "" {
		req.Header.Set(ModeHeader, c.mode)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("resolvd: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("resolvd: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	// 204 No Content has nothing to decode.
	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("resolvd: decode response envelope: %w", err)
	}

	if envelope.Data == nil {
		// Fallback: some endpoints may not wrap in "data".
		return json.Unmarshal(bodyBytes, dest)
	}

	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
