// Package client provides the HTTP transport layer shared by the
// registry operations: a retrying *http.Client wrapper, problem+json
// decoding, and the path builder for the nine registry endpoints.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenk/backoff"
)

// Client wraps *http.Client with exponential-backoff retry on 429/5xx.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client's overall request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBaseDelay sets the base delay for exponential backoff between retries.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithHTTPClient overrides the underlying *http.Client entirely.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// DefaultClient returns a Client with sensible defaults: 30s timeout, 5
// retries with exponential backoff on 429/5xx.
func DefaultClient() *Client {
	return NewClient()
}

// NewClient creates a Client with the given options layered over defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: 30 * time.Second},
		userAgent:  "pkgregistry-client/1.0",
		maxRetries: 5,
		baseDelay:  250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryable reports whether resp's status code warrants a retry.
func retryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// Do executes req with retry/backoff on 429 and 5xx responses. The
// returned response's body must be closed by the caller. req.Body, if
// set, must support being read multiple times (retries re-send it via
// GetBody) — callers that need a body should set req.GetBody.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)

	var lastErr error
	var lastResp *http.Response

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.baseDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.baseDelay) * math.Pow(2, float64(attempt-1)))
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(delay):
			}

			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("rewinding request body for retry: %w", err)
				}
				req.Body = body
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if !retryable(resp.StatusCode) {
			return resp, nil
		}

		lastResp = resp
		lastErr = fmt.Errorf("retryable status %d", resp.StatusCode)
		if attempt < c.maxRetries {
			_ = resp.Body.Close()
		}
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

// GetJSON issues a GET request with the given Accept header and decodes
// a 200 JSON response body into out.
func (c *Client) GetJSON(ctx context.Context, url, accept string, out any) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decoding response body: %w", err)
		}
	}
	return resp, nil
}

// ProblemBody is the minimal application/problem+json shape the registry
// protocol uses for error responses.
type ProblemBody struct {
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// DecodeProblem attempts to decode resp's body as application/problem+json.
// It returns ok=false if the Content-Type doesn't match or the body
// doesn't parse.
func DecodeProblem(resp *http.Response) (ProblemBody, bool) {
	const problemType = "application/problem+json"
	ct := resp.Header.Get("Content-Type")
	if ct != problemType && !strings.HasPrefix(ct, problemType+";") {
		return ProblemBody{}, false
	}

	var body ProblemBody
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return ProblemBody{}, false
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ProblemBody{}, false
	}
	return body, true
}
