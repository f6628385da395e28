// Package httpx is the shared HTTP transport used by pkg/commerce,
// pkg/adplatform, pkg/aicreative, and pkg/objectstore: one retrying,
// rate-limited, circuit-broken JSON client instead of five bespoke ones.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sellsadvisors/fleet/internal/ratelimit"
	"github.com/sellsadvisors/fleet/internal/resilience"
)

// Client is a small HTTP client shared by every external API integration.
// It applies a per-host rate limiter, retries transient failures with
// backoff+jitter, trips a per-host circuit breaker on sustained failure, and
// classifies non-2xx responses into the resilience error kinds.
type Client struct {
	http      *http.Client
	limiters  *ratelimit.Registry
	retry     resilience.RetryConfig
	breakers  *resilience.ServiceBreakers
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client (tests, custom
// transports).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimiters installs the shared per-host limiter registry.
func WithRateLimiters(r *ratelimit.Registry) Option {
	return func(c *Client) { c.limiters = r }
}

// WithRetryConfig overrides the default retry policy.
func WithRetryConfig(rc resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = rc }
}

// WithCircuitBreakerConfig overrides the default per-host circuit breaker
// policy. Each distinct host gets its own breaker, lazily created on first
// use, so a run of failures against one integration's API never trips the
// breaker guarding another.
func WithCircuitBreakerConfig(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *Client) { c.breakers = resilience.NewServiceBreakers(cfg) }
}

// WithUserAgent sets the outgoing User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New builds a Client with sane defaults: a 30s-timeout http.Client, the
// package's default retry config, and a default per-host circuit breaker.
func New(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		retry:    resilience.DefaultRetryConfig(),
		breakers: resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DoJSON issues method to url with an optional JSON-encoded body, decoding
// a JSON response into out (if non-nil). It retries transient failures per
// the configured RetryConfig. A 429 is not retried: it returns at once as a
// QuotaExceededError carrying the Retry-After value. A 503 is retried on the
// normal backoff schedule; its Retry-After header is not read.
func (c *Client) DoJSON(ctx context.Context, method, rawURL string, headers http.Header, body, out any) error {
	_, err := c.DoJSONPage(ctx, method, rawURL, headers, body, out)
	return err
}

// DoJSONPage behaves like DoJSON but also returns the response headers, so
// callers that page through a REST collection (Link/page_info cursors) can
// find the next page without a second round trip to inspect the response.
func (c *Client) DoJSONPage(ctx context.Context, method, rawURL string, headers http.Header, body, out any) (http.Header, error) {
	var bodyBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, resilience.NewValidationError("body", fmt.Errorf("httpx: marshal request body: %w", err))
		}
		bodyBytes = b
	}

	contentType := ""
	if bodyBytes != nil {
		contentType = "application/json"
	}

	respBytes, respHeaders, err := c.doRaw(ctx, method, rawURL, headers, contentType, bodyBytes)
	if err != nil {
		return nil, err
	}
	if out != nil && len(respBytes) > 0 {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return nil, fmt.Errorf("httpx: decode response from %s: %w", rawURL, err)
		}
	}
	return respHeaders, nil
}

// DoRaw issues method to url with a pre-encoded body (e.g. multipart form
// data) and contentType, returning the raw response body. Same retry/rate
// limit/error-kind behavior as DoJSON, without the JSON marshal/unmarshal
// step.
func (c *Client) DoRaw(ctx context.Context, method, rawURL string, headers http.Header, contentType string, body []byte) ([]byte, error) {
	b, _, err := c.doRaw(ctx, method, rawURL, headers, contentType, body)
	return b, err
}

func (c *Client) doRaw(ctx context.Context, method, rawURL string, headers http.Header, contentType string, bodyBytes []byte) ([]byte, http.Header, error) {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	if c.limiters != nil {
		if err := c.limiters.Limiter(host).Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("httpx: rate limit wait: %w", err)
		}
	}

	var respBytes []byte
	var respHeaders http.Header
	run := func(ctx context.Context) error {
		return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(bodyBytes))
			if err != nil {
				return resilience.NewFatalError(fmt.Errorf("httpx: build request: %w", err))
			}
			for k, vs := range headers {
				for _, v := range vs {
					req.Header.Add(k, v)
				}
			}
			if contentType != "" {
				req.Header.Set("Content-Type", contentType)
			}
			if c.userAgent != "" {
				req.Header.Set("User-Agent", c.userAgent)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				if resilience.IsTransient(err) {
					return resilience.NewTransientError(err, 0)
				}
				return fmt.Errorf("httpx: do request: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return resilience.NewTransientError(fmt.Errorf("httpx: read response: %w", err), resp.StatusCode)
			}

			if resp.StatusCode == http.StatusUnauthorized {
				return resilience.NewAuthExpiredError("", fmt.Errorf("httpx: 401 from %s", rawURL))
			}
			if resp.StatusCode == http.StatusNotFound {
				return resilience.NewNotFoundError(fmt.Errorf("httpx: 404 from %s", rawURL))
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				retryAt := resp.Header.Get("Retry-After")
				if wait, err := strconv.Atoi(retryAt); err == nil && wait > 0 {
					zap.L().Debug("httpx: honoring retry-after", zap.Int("seconds", wait), zap.String("url", rawURL))
				}
				return resilience.NewQuotaExceededError(fmt.Errorf("httpx: 429 from %s", rawURL), retryAt)
			}
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(fmt.Errorf("httpx: %d from %s: %s", resp.StatusCode, rawURL, string(body)), resp.StatusCode)
			}
			if resp.StatusCode >= 400 {
				return fmt.Errorf("httpx: %d from %s: %s", resp.StatusCode, rawURL, string(body))
			}

			respBytes = body
			respHeaders = resp.Header
			return nil
		})
	}

	var err error
	if c.breakers != nil {
		err = c.breakers.Get(host).Execute(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, nil, err
	}
	return respBytes, respHeaders, nil
}
