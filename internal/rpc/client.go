package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBackoffInitial = 100 * time.Millisecond
	defaultBackoffMax     = 2 * time.Second

	// maxResponseBytes bounds how much of an upstream body is read.
	maxResponseBytes = 32 << 20
)

// ClientConfig configures a Client.
type ClientConfig struct {
	Name           string
	URL            string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Headers        map[string]string
}

// Client talks JSON-RPC over HTTP to a single node endpoint.
type Client struct {
	name           string
	url            string
	httpClient     *http.Client
	maxRetries     int
	backoffInitial time.Duration
	backoffMax     time.Duration
	headers        map[string]string
}

// Reply is a raw upstream HTTP response, as returned by Forward.
type Reply struct {
	StatusCode int
	Body       []byte
	Latency    time.Duration
}

// OK reports whether the upstream answered with a 2xx status.
func (r *Reply) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = defaultBackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaultBackoffMax
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{
		name:           cfg.Name,
		url:            cfg.URL,
		maxRetries:     cfg.MaxRetries,
		backoffInitial: cfg.BackoffInitial,
		backoffMax:     cfg.BackoffMax,
		headers:        headers,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) URL() string { return c.url }

// Call executes a JSON-RPC method and decodes the envelope. A JSON-RPC error
// member is returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, params ...interface{}) (*Response, time.Duration, error) {
	req, err := NewRequest(1, method, params...)
	if err != nil {
		return nil, 0, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal %s request: %w", method, err)
	}

	reply, err := c.Forward(ctx, body)
	if err != nil {
		return nil, 0, err
	}
	if !reply.OK() {
		return nil, reply.Latency, fmt.Errorf("%s: HTTP %d", c.name, reply.StatusCode)
	}

	var resp Response
	if err := json.Unmarshal(reply.Body, &resp); err != nil {
		return nil, reply.Latency, fmt.Errorf("%s: invalid JSON response: %w", c.name, err)
	}
	if resp.Error != nil {
		return &resp, reply.Latency, resp.Error
	}

	return &resp, reply.Latency, nil
}

// Forward posts body as-is and returns the upstream status and body without
// interpreting them. A 4xx/5xx reply is a successful Forward; only transport
// failures (dial, reset, timeout) are retried.
//
// Parameters:
//   - ctx: Bounds every attempt and the backoff sleeps between them
//   - body: Encoded JSON-RPC request, sent unchanged
//
// Returns:
//   - *Reply: Upstream status code, raw body and latency of the last attempt
//   - error: Last transport error once retries are exhausted, or ctx.Err()
//
// Retry schedule:
//  1. First attempt is sent immediately
//  2. Each failure waits BackoffInitial << attempt (100ms, 200ms, 400ms...)
//  3. The wait is capped at BackoffMax; MaxRetries=0 means a single attempt
func (c *Client) Forward(ctx context.Context, body []byte) (*Reply, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		start := time.Now()
		reply, err := c.doRequest(ctx, body)
		if err == nil {
			reply.Latency = time.Since(start)
			return reply, nil
		}

		lastErr = err
		// A cancelled or expired context is final, not retryable
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Sleep before the next attempt, unless this was the last one
		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
	}

	if c.maxRetries == 0 {
		return nil, fmt.Errorf("%s: %w", c.name, lastErr)
	}
	return nil, fmt.Errorf("%s: failed after %d attempts: %w", c.name, c.maxRetries+1, lastErr)
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.backoffInitial << attempt
	if d <= 0 || d > c.backoffMax {
		return c.backoffMax
	}
	return d
}

func (c *Client) doRequest(ctx context.Context, body []byte) (*Reply, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	return &Reply{StatusCode: httpResp.StatusCode, Body: respBody}, nil
}

// BlockNumber fetches the current block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, time.Duration, error) {
	resp, latency, err := c.Call(ctx, "eth_blockNumber")
	if err != nil {
		return 0, latency, err
	}

	var hexStr string
	if err := json.Unmarshal(resp.Result, &hexStr); err != nil {
		return 0, latency, fmt.Errorf("decode block number: %w", err)
	}

	num, err := ParseQuantity(hexStr)
	return num, latency, err
}
