// Package client is an HTTP client for the research API with SSE streaming.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/agent"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/agui"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
)

// SSEEvent represents a parsed SSE event.
type SSEEvent struct {
	Event string
	Data  string
}

// Type returns the AG-UI event type carried in the data field.
func (e SSEEvent) Type() string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(e.Data), &head); err != nil {
		return ""
	}
	return head.Type
}

// Interrupt decodes the approval request of an on_interrupt custom event.
// ok is false for any other event.
func (e SSEEvent) Interrupt() (agent.Interrupt, bool) {
	var ev struct {
		Type  string          `json:"type"`
		Name  string          `json:"name"`
		Value agent.Interrupt `json:"value"`
	}
	if err := json.Unmarshal([]byte(e.Data), &ev); err != nil {
		return agent.Interrupt{}, false
	}
	if ev.Type != "CUSTOM" || ev.Name != agent.TagInterrupt || ev.Value.ApprovalID == "" {
		return agent.Interrupt{}, false
	}
	return ev.Value, true
}

// EventHandler is called for each SSE event of a run.
type EventHandler func(event SSEEvent) error

// APIError is a non-2xx answer of the API.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Detail)
}

// Client talks to a research API server.
type Client struct {
	baseURL    string
	apiKey     string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey authenticates with the X-Api-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithToken authenticates with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Minute, // Long timeout for research runs
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession starts a session.
func (c *Client) CreateSession(ctx context.Context, title string) (*domain.SessionResponse, error) {
	req := domain.CreateSessionRequest{}
	if title != "" {
		req.Title = &title
	}
	var resp domain.SessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions lists the caller's sessions.
func (c *Client) ListSessions(ctx context.Context) (*domain.SessionListResponse, error) {
	var resp domain.SessionListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Research runs a query inside a session and waits for the answer.
func (c *Client) Research(ctx context.Context, sessionID, query string, tags []string) (*domain.ResearchResponse, error) {
	var resp domain.ResearchResponse
	body := domain.ResearchRequest{Query: query, Tags: tags}
	if err := c.doJSON(ctx, http.MethodPost, "/research/"+url.PathEscape(sessionID), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Decide answers a pending approval.
func (c *Client) Decide(ctx context.Context, approvalID string, req domain.ApprovalDecisionRequest) (*domain.ApprovalDecisionResponse, error) {
	var resp domain.ApprovalDecisionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/approvals/"+url.PathEscape(approvalID)+"/decide", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stream starts an AG-UI run and calls handler for each event until the
// server closes the stream or handler returns an error.
func (c *Client) Stream(ctx context.Context, in *agui.RunAgentInput, handler EventHandler) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/copilotkit", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	return parseSSE(resp.Body, handler)
}

// WatchURL returns the websocket URL of the watcher endpoint of a session.
func (c *Client) WatchURL(sessionID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/sessions/" + url.PathEscape(sessionID)
	return u.String(), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	for k, v := range c.AuthHeader() {
		req.Header[k] = v
	}
}

// AuthHeader returns the credential headers of the client, for use on a
// websocket handshake.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("X-Api-Key", c.apiKey)
	}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	var body domain.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Detail == "" {
		body.Detail = strings.TrimSpace(string(data))
	}
	return &APIError{StatusCode: resp.StatusCode, Detail: body.Detail}
}

// parseSSE parses an SSE stream and calls the handler for each event.
func parseSSE(reader io.Reader, handler EventHandler) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var event SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if event.Event != "" || event.Data != "" {
				if err := handler(event); err != nil {
					return err
				}
				event = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			event.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if event.Data != "" {
				event.Data += "\n" + data
			} else {
				event.Data = data
			}
		}
		// Ignore comments (lines starting with :) and other fields
	}

	// Handle any remaining event
	if event.Event != "" || event.Data != "" {
		if err := handler(event); err != nil {
			return err
		}
	}

	return scanner.Err()
}
