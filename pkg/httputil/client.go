package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/rsscreen/pkg/config"
	"github.com/wonny/rsscreen/pkg/logger"
	"github.com/wonny/rsscreen/pkg/redis"
)

const defaultUserAgent = "rsscreen/1.0 (+https://github.com/wonny/rsscreen)"

// Client is the outbound HTTP client for market data and index sources.
// Requests wait on the configured limiters, then retry 429/5xx with exponential backoff.
// ⭐ SSOT: 모든 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	retry      RetryConfig
	userAgent  string

	// 프로세스 내부 / 프로세스 간 (Redis) 제한
	local  *rate.Limiter
	shared *redis.RateLimiter
	window redis.RateLimitConfig
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Enabled      bool
}

// StatusError is returned by GetJSON for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// New creates a client with the YAHOO_TIMEOUT request timeout (30s when unset)
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(cfg *config.Config, log *logger.Logger) *Client {
	timeout := 30 * time.Second
	if cfg.Yahoo.Timeout > 0 {
		timeout = cfg.Yahoo.Timeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.WithField("module", "httputil"),
		retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
			Enabled:      true,
		},
		userAgent: defaultUserAgent,
	}
}

// WithRetry sets the retry budget and the first backoff delay
func (c *Client) WithRetry(maxRetries int, initialDelay time.Duration) *Client {
	c.retry.MaxRetries = maxRetries
	c.retry.InitialDelay = initialDelay
	c.retry.Enabled = true
	return c
}

// DisableRetry makes every request a single attempt
func (c *Client) DisableRetry() *Client {
	c.retry.Enabled = false
	return c
}

// WithLimiter sets an in-process token bucket limiter
func (c *Client) WithLimiter(limiter *rate.Limiter) *Client {
	c.local = limiter
	return c
}

// WithRateLimiter sets the Redis sliding window shared across processes
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter, window redis.RateLimitConfig) *Client {
	c.shared = limiter
	c.window = window
	return c
}

// WithUserAgent overrides the User-Agent header
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// Get performs a GET request. The caller closes the body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, attempts, err := c.do(req)
	fields := map[string]interface{}{
		"url":      url,
		"attempts": attempts,
		"duration": time.Since(start),
	}
	if err != nil {
		c.logger.WithFields(fields).WithError(err).Warn("HTTP request failed")
		return nil, err
	}

	fields["status_code"] = resp.StatusCode
	c.logger.WithFields(fields).Debug("HTTP request completed")
	return resp, nil
}

// GetJSON performs a GET request and decodes a 2xx JSON body into dest
func (c *Client) GetJSON(ctx context.Context, url string, dest interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// do sends req until it gets a non-retryable answer or runs out of attempts.
// The last retryable response is returned as-is so callers can see its status.
func (c *Client) do(req *http.Request) (*http.Response, int, error) {
	ctx := req.Context()
	maxAttempts := 1
	if c.retry.Enabled {
		maxAttempts += c.retry.MaxRetries
	}
	delay := c.retry.InitialDelay

	for attempt := 1; ; attempt++ {
		resp, err := c.send(req)
		if err == nil && !IsRetryableError(resp.StatusCode) {
			return resp, attempt, nil
		}
		if ctx.Err() != nil {
			drain(resp)
			return nil, attempt, ctx.Err()
		}
		if attempt >= maxAttempts {
			return resp, attempt, err
		}

		wait := delay
		if d, ok := retryAfter(resp); ok {
			wait = min(d, c.retry.MaxDelay)
		}
		drain(resp)

		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   wait,
			"url":     req.URL.String(),
		}).Warn("Retrying HTTP request")

		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(wait):
		}

		delay = min(delay*2, c.retry.MaxDelay)
	}
}

// send waits for both limiters and executes a single attempt
func (c *Client) send(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if c.local != nil {
		if err := c.local.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}
	if c.shared != nil {
		if err := c.shared.Wait(ctx, c.window); err != nil {
			return nil, fmt.Errorf("shared rate limit wait failed: %w", err)
		}
	}

	return c.httpClient.Do(req)
}

// retryAfter reads a Retry-After header given in seconds
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func drain(resp *http.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// IsRetryableError reports whether a status is worth another attempt (429 and 5xx)
func IsRetryableError(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
