// Package httputil is the single HTTP path for provider clients: retries with
// exponential backoff, a client-side request budget, and status classification.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/newthinker/stockscope/internal/core"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 16 << 20

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetry retries once after a short pause.
var DefaultRetry = RetryConfig{
	MaxAttempts: 2,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    4 * time.Second,
}

// Client wraps http.Client for one provider.
type Client struct {
	name       string
	httpClient *http.Client
	retry      RetryConfig
	limiter    *rate.Limiter
	logger     *zap.Logger
	headers    map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithRateLimit caps requests per minute. Zero disables the budget.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHeader sets a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// New creates a client named after its provider.
func New(name string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      DefaultRetry,
		logger:     zap.NewNop(),
		headers:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// PostJSON performs a POST request with a JSON body.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) (*Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// Do executes a request with exponential backoff retry on network errors and 5xx.
// buildReq is called on each attempt so bodies can be replayed. Non-5xx responses
// are returned as-is for the caller to classify.
func (c *Client) Do(ctx context.Context, buildReq func(context.Context) (*http.Request, error)) (*Response, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		return nil, core.Errorf(core.ErrRateLimited, "%s: client-side request budget exhausted", c.name)
	}

	attempts := c.retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	delay := c.retry.BaseDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.once(ctx, buildReq)
		if err == nil && resp.Status < 500 {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.Status, truncate(resp.Body, 200))
		}

		if attempt == attempts || ctx.Err() != nil {
			break
		}

		c.logger.Debug("retrying request",
			zap.String("provider", c.name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		select {
		case <-ctx.Done():
			return nil, core.WrapError(core.ErrTransport, ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
	}

	return nil, core.WrapError(core.ErrTransport, fmt.Errorf("%s: %w", c.name, lastErr))
}

func (c *Client) once(ctx context.Context, buildReq func(context.Context) (*http.Request, error)) (*Response, error) {
	req, err := buildReq(ctx)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return &Response{Status: resp.StatusCode, Body: body}, nil
}

// CheckStatus maps a non-2xx status to a typed error. 429 is a rate limit;
// anything else is a transport failure.
func CheckStatus(provider string, resp *Response) error {
	if resp.OK() {
		return nil
	}
	if resp.Status == http.StatusTooManyRequests {
		return core.Errorf(core.ErrRateLimited, "%s: HTTP 429", provider)
	}
	return core.Errorf(core.ErrTransport, "%s: HTTP %d: %s", provider, resp.Status, truncate(resp.Body, 200))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
