package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/logging"
	"servicegraph/internal/ports"
)

// DefaultTimeout bounds a single request
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response ends up in the error
const maxErrorBody = 512

// Client fetches snapshots and histograms from the backend query API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ ports.DataSource = (*Client)(nil)

// New creates a client for the API rooted at baseURL
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithTimeout sets the per-request timeout
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying http.Client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// FetchGraph posts the query to /query
func (c *Client) FetchGraph(ctx context.Context, q domain.Query) (*domain.Payload, error) {
	var p domain.Payload
	if err := c.post(ctx, "fetch graph", "/query", q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FetchHistogram posts the query to /histogram
func (c *Client) FetchHistogram(ctx context.Context, q domain.Query) (*domain.Histogram, error) {
	var h domain.Histogram
	if err := c.post(ctx, "fetch histogram", "/histogram", q, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) post(ctx context.Context, op, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &application.SourceError{Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	logging.FromContext(ctx).Debug("source response",
		"path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &application.SourceError{
			Op:        op,
			Retryable: true,
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &application.SourceError{Op: op, Retryable: true, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
