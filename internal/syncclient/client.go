// Package syncclient talks to the workspace authority over HTTP.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marcus/wsmenu/internal/events"
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrNotFound    = errors.New("not found")
	ErrBadRequest  = errors.New("bad request")
	ErrUnavailable = errors.New("authority unavailable")
)

// Client is an HTTP client for the authority.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client for baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// setFeatureRequest mirrors the server's request body.
type setFeatureRequest struct {
	Enabled bool   `json:"enabled"`
	WriteID string `json:"write_id,omitempty"`
}

// HealthCheck pings the authority.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, "GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Metrics returns the authority's counters from GET /metricz, keyed by
// counter name.
func (c *Client) Metrics(ctx context.Context) (map[string]float64, error) {
	var resp map[string]float64
	if err := c.do(ctx, "GET", "/metricz", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListWorkspaces returns the ids the authority knows.
func (c *Client) ListWorkspaces(ctx context.Context) ([]string, error) {
	var resp struct {
		Workspaces []string `json:"workspaces"`
	}
	if err := c.do(ctx, "GET", "/v1/workspaces", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Workspaces, nil
}

// FetchWorkspace returns the canonical record.
func (c *Client) FetchWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	var ws models.Workspace
	if err := c.do(ctx, "GET", "/v1/workspaces/"+url.PathEscape(id), nil, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

// SetFeature sends a feature write and returns the authority's echo. A
// rejected write is not an error: the echo carries the rejection.
func (c *Client) SetFeature(ctx context.Context, id string, f features.Feature, enabled bool, writeID string) (*events.FeatureToggled, error) {
	var env events.Envelope[events.FeatureToggled]
	path := fmt.Sprintf("/v1/workspaces/%s/features/%s", url.PathEscape(id), url.PathEscape(f.Key()))
	if err := c.do(ctx, "POST", path, setFeatureRequest{Enabled: enabled, WriteID: writeID}, &env); err != nil {
		return nil, err
	}
	if err := env.Data.Validate(); err != nil {
		return nil, fmt.Errorf("authority echo: %w", err)
	}
	return &env.Data, nil
}

// IsRetryable reports whether err is worth retrying later: transport
// failures and server-side errors, but not client errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadRequest) {
		return false
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status >= 500
	}
	return true
}

// apiError is the standard error body from the server.
type apiError struct {
	status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var wrapped struct {
			Error apiError `json:"error"`
		}
		if json.Unmarshal(respBody, &wrapped) == nil && wrapped.Error.Code != "" {
			apiErr := wrapped.Error
			apiErr.status = resp.StatusCode
			switch {
			case resp.StatusCode == http.StatusNotFound:
				return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			case resp.StatusCode == http.StatusBadRequest:
				return fmt.Errorf("%w: %s", ErrBadRequest, apiErr.Message)
			case resp.StatusCode >= 500:
				return fmt.Errorf("%w: %w", ErrUnavailable, &apiErr)
			default:
				return &apiErr
			}
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
