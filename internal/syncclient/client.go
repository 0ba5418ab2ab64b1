// Package syncclient is the HTTP client for the tl activity backend.
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
	"strconv"
	"time"

	"github.com/marcus/tl/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Client is an HTTP client for the activity backend. It satisfies the sync
// core's Fetcher interface.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New creates a new backend client. Per-call deadlines come from the
// caller's context; the client timeout is a backstop.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// IncrementalResponse is the response from GET /v1/activities/incremental.
type IncrementalResponse struct {
	Activities []models.ActivityRecord `json:"activities"`
	Count      int                     `json:"count"`
	MaxVersion int64                   `json:"maxVersion"`
}

// RecentResponse is the response from GET /v1/activities/recent.
type RecentResponse struct {
	Activities []models.ActivityRecord `json:"activities"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// FetchIncremental returns activities with version > afterVersion, at most
// limit of them, grouped into date buckets. The backend may return them in
// either version order; the merge engine re-sorts regardless. An empty
// result means "no new data" and is not an error.
func (c *Client) FetchIncremental(ctx context.Context, afterVersion int64, limit int) ([]models.DateBucket, error) {
	params := url.Values{}
	params.Set("after_version", strconv.FormatInt(afterVersion, 10))
	params.Set("limit", strconv.Itoa(limit))

	var resp IncrementalResponse
	if err := c.do(ctx, "GET", "/v1/activities/incremental?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return models.BucketActivities(resp.Activities), nil
}

// FetchRecent returns a page of the most recent activities via the
// non-incremental full-list endpoint. Used by the recovery strategies and
// manual refresh.
func (c *Client) FetchRecent(ctx context.Context, limit, offset int) ([]models.DateBucket, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var resp RecentResponse
	if err := c.do(ctx, "GET", "/v1/activities/recent?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return models.BucketActivities(resp.Activities), nil
}

// Health hits the /healthz endpoint to verify backend reachability.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, "GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WebsocketURL returns the push subscription endpoint derived from
// BaseURL (http → ws, https → wss).
func (c *Client) WebsocketURL() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/v1/activities/ws"
	return u.String(), nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the backend.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// do executes a request and decodes the JSON response into result.
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
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		// Unwrap url.Error so context deadline/cancel checks work upstream.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("http request: %w", uerr.Err)
		}
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
			case http.StatusForbidden:
				return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
			case http.StatusNotFound:
				return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			default:
				return &apiErr
			}
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
