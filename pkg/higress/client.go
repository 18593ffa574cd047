package higress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/arpith/higate/internal/observability"
	"github.com/rs/zerolog"
)

// sessionCookieName is the console's session cookie.
const sessionCookieName = "_hi_sess"

// Client talks to the Higress console API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	username   string
	password   string
	logger     zerolog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	// Username/Password are exchanged for a session cookie via Login.
	Username string
	Password string
	// SessionCookie is a pre-issued _hi_sess value; when set, Login is a no-op.
	SessionCookie string
	Timeout       time.Duration
	Logger        zerolog.Logger
}

// NewClient creates a new console client
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		username: cfg.Username,
		password: cfg.Password,
		logger:   cfg.Logger,
	}

	if cfg.SessionCookie != "" {
		jar.SetCookies(base, []*http.Cookie{{
			Name:  sessionCookieName,
			Value: cfg.SessionCookie,
			Path:  "/",
		}})
	}

	return c, nil
}

// HasSession reports whether a session cookie is present in the jar.
func (c *Client) HasSession() bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	for _, cookie := range c.httpClient.Jar.Cookies(base) {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			return true
		}
	}
	return false
}

// Login exchanges the configured credentials for a session cookie. It is a
// no-op when a session cookie is already present.
func (c *Client) Login(ctx context.Context) error {
	if c.HasSession() {
		return nil
	}
	if c.username == "" || c.password == "" {
		return &APIError{Kind: KindUnauthorized, Message: "no session cookie and no credentials configured"}
	}

	body := map[string]interface{}{
		"username": c.username,
		"password": c.password,
	}

	_, err := c.do(ctx, http.MethodPost, "/session/login", body)
	if err != nil {
		return fmt.Errorf("console login failed: %w", err)
	}

	if !c.HasSession() {
		return &APIError{Kind: KindUnauthorized, Message: "login response did not set a session cookie"}
	}

	c.logger.Info().Str("base_url", c.baseURL).Msg("Console session established")
	return nil
}

// Get performs a GET request against the console API
func (c *Client) Get(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

// do executes one request and decodes the JSON response. Exactly one
// downstream call happens per invocation; retries are the caller's business.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	fullURL := c.baseURL + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().Str("method", method).Str("url", fullURL).Msg("Console request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordDownstreamRequest(method, "transport_error", time.Since(start))
		// Transport-level failures are retryable: the request may never
		// have reached the console.
		return nil, &APIError{Kind: KindTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordDownstreamRequest(method, "read_error", time.Since(start))
		return nil, &APIError{Kind: KindTransient, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := classifyStatus(resp.StatusCode)
		observability.RecordDownstreamRequest(method, string(kind), time.Since(start))
		c.auditMutation(ctx, method, path, string(kind))
		c.logger.Warn().
			Str("method", method).
			Str("url", fullURL).
			Int("status", resp.StatusCode).
			Msg("Console request failed")
		return nil, &APIError{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
		}
	}

	observability.RecordDownstreamRequest(method, "ok", time.Since(start))
	c.auditMutation(ctx, method, path, "ok")

	if len(data) == 0 {
		return map[string]interface{}{}, nil
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &APIError{
			Kind:       KindUnknown,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to decode response: %v", err),
		}
	}

	return decoded, nil
}

// auditMutation records console writes in the audit log. Reads are not
// audited; only GET is side-effect free against the console.
func (c *Client) auditMutation(ctx context.Context, method, path, status string) {
	if method == http.MethodGet {
		return
	}
	observability.RecordDownstreamAudit(ctx, method+" "+path, status, nil)
}

// dataField unwraps the console's {"data": ...} response envelope.
func dataField(body map[string]interface{}) (interface{}, error) {
	data, ok := body["data"]
	if !ok {
		return nil, &APIError{Kind: KindUnknown, Message: "response is missing the data field"}
	}
	return data, nil
}

// dataObject unwraps the envelope and asserts the payload is an object.
func dataObject(body map[string]interface{}) (map[string]interface{}, error) {
	data, err := dataField(body)
	if err != nil {
		return nil, err
	}
	obj, ok := data.(map[string]interface{})
	if !ok {
		return nil, &APIError{Kind: KindUnknown, Message: "data field is not an object"}
	}
	return obj, nil
}

// dataList unwraps the envelope and asserts the payload is a list.
func dataList(body map[string]interface{}) ([]interface{}, error) {
	data, err := dataField(body)
	if err != nil {
		return nil, err
	}
	// Paginated list endpoints nest the items under data.list.
	if obj, ok := data.(map[string]interface{}); ok {
		if inner, ok := obj["list"]; ok {
			data = inner
		}
	}
	if data == nil {
		return []interface{}{}, nil
	}
	list, ok := data.([]interface{})
	if !ok {
		return nil, &APIError{Kind: KindUnknown, Message: "data field is not a list"}
	}
	return list, nil
}
