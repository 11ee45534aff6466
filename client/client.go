package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/sollink/service/apperr"
	"github.com/brojonat/sollink/service/dashboard"
	natspkg "github.com/brojonat/sollink/service/nats"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Kind       apperr.Kind // empty for unclassified errors
	Outcome    *dashboard.SendOutcome
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("request failed: %s (%s)", e.Message, e.Kind)
	}
	return fmt.Sprintf("request failed: %s", e.Message)
}

// Client is the HTTP client for the sollink dashboard API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new dashboard API client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, "GET", "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

// Dashboard fetches the current dashboard snapshot.
func (c *Client) Dashboard(ctx context.Context) (*dashboard.Snapshot, error) {
	var snap dashboard.Snapshot
	if err := c.doJSON(ctx, "GET", "/api/v1/dashboard", nil, http.StatusOK, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Connect connects a wallet. An empty address connects the server's keypair wallet.
func (c *Client) Connect(ctx context.Context, address string) (*dashboard.Snapshot, error) {
	var snap dashboard.Snapshot
	body := map[string]string{"address": address}
	if err := c.doJSON(ctx, "POST", "/api/v1/connect", body, http.StatusOK, &snap); err != nil {
		return nil, err
	}
	c.logger.Debug("wallet connected", "address", snap.Address, "can_sign", snap.CanSign)
	return &snap, nil
}

// Disconnect disconnects the current wallet.
func (c *Client) Disconnect(ctx context.Context) error {
	if err := c.doJSON(ctx, "POST", "/api/v1/disconnect", nil, http.StatusNoContent, nil); err != nil {
		return err
	}
	c.logger.Debug("wallet disconnected")
	return nil
}

// Refresh re-fetches balance, tokens and history and returns the new snapshot.
func (c *Client) Refresh(ctx context.Context) (*dashboard.Snapshot, error) {
	var snap dashboard.Snapshot
	if err := c.doJSON(ctx, "POST", "/api/v1/refresh", nil, http.StatusOK, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Send transfers amount SOL (a decimal string) to recipient and waits for
// confirmation. On a classified failure the returned *APIError carries the
// send outcome.
func (c *Client) Send(ctx context.Context, recipient, amount string) (*dashboard.SendOutcome, error) {
	var outcome dashboard.SendOutcome
	body := map[string]string{"recipient": recipient, "amount": amount}
	if err := c.doJSON(ctx, "POST", "/api/v1/transfers", body, http.StatusOK, &outcome); err != nil {
		return nil, err
	}
	c.logger.Debug("transfer confirmed", "recipient", recipient, "signature", outcome.Signature)
	return &outcome, nil
}

// StreamNotifications reads the notification SSE stream and calls fn for each
// notification until fn returns false, the stream ends, or ctx is done.
// An empty address streams the connected wallet's notifications.
func (c *Client) StreamNotifications(ctx context.Context, address string, fn func(*natspkg.NotificationEvent) bool) error {
	path := "/api/v1/stream/notifications"
	if address != "" {
		path += "?" + url.Values{"address": []string{address}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// the stream outlives the default request timeout
	streamClient := *c.httpClient
	streamClient.Timeout = 0
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	var event string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if event != "notification" {
				continue
			}
			var n natspkg.NotificationEvent
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &n); err != nil {
				c.logger.Warn("failed to decode notification", "error", err)
				continue
			}
			if !fn(&n) {
				return nil
			}
		case line == "":
			event = ""
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream failed: %w", err)
	}
	return ctx.Err()
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error   string                 `json:"error"`
		Kind    apperr.Kind            `json:"kind"`
		Outcome *dashboard.SendOutcome `json:"outcome"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errResp.Error,
		Kind:       errResp.Kind,
		Outcome:    errResp.Outcome,
	}
}
