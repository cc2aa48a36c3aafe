package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/config"
	"github.com/wonny/rsscreen/pkg/httputil"
	"github.com/wonny/rsscreen/pkg/logger"
	"github.com/wonny/rsscreen/pkg/redis"
)

// DefaultBaseURL is the public chart API host
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// breakerTripAfter opens the circuit after this many consecutive upstream failures
const breakerTripAfter = 5

// Client fetches daily bars from the Yahoo Finance chart API
// ⭐ SSOT: Yahoo Finance 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logger.Logger
	baseURL    string
	benchmark  string
	adjusted   bool
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, benchmark string, log *logger.Logger) *Client {
	c := &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "yahoo"),
		baseURL:    DefaultBaseURL,
		benchmark:  benchmark,
		adjusted:   true,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "yahoo-chart",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		IsSuccessful: isUpstreamHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	return c
}

// New builds a client from application config with the configured request rate
func New(cfg *config.Config, benchmark string, log *logger.Logger) *Client {
	limiter := rate.NewLimiter(rate.Limit(cfg.Yahoo.RequestsPerSec), 1)
	httpClient := httputil.New(cfg, log).WithLimiter(limiter)

	c := NewClient(httpClient, benchmark, log)
	if cfg.Yahoo.BaseURL != "" {
		c.baseURL = strings.TrimRight(cfg.Yahoo.BaseURL, "/")
	}
	return c
}

// WithBaseURL overrides the API host (tests, proxies)
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// WithSharedLimit caps requests per second across every process sharing the Redis instance
func (c *Client) WithSharedLimit(limiter *redis.RateLimiter, perSecond int) *Client {
	cfg := redis.YahooRateLimit
	if perSecond > 0 {
		cfg.Limit = perSecond
	}
	c.httpClient.WithRateLimiter(limiter, cfg)
	return c
}

// WithAdjusted toggles split/dividend adjustment of OHLC values
func (c *Client) WithAdjusted(adjusted bool) *Client {
	c.adjusted = adjusted
	return c
}

// Symbol converts an exchange ticker to Yahoo notation (BRK.B → BRK-B)
func Symbol(ticker string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(ticker)), ".", "-")
}

// GetSeries returns daily bars in [from, to]
func (c *Client) GetSeries(ctx context.Context, ticker string, from, to time.Time) (contracts.Series, error) {
	chart, err := c.fetchChart(ctx, ticker, from, to)
	if err != nil {
		return contracts.Series{}, fmt.Errorf("yahoo %s: %w: %w", ticker, classify(err), err)
	}

	series, err := chart.toSeries(ticker, c.adjusted, contracts.DateOf(from), contracts.DateOf(to))
	if err != nil {
		return contracts.Series{}, fmt.Errorf("yahoo %s: %w: %w", ticker, contracts.ErrDataUnavailable, err)
	}
	if series.Len() == 0 {
		return contracts.Series{}, fmt.Errorf("yahoo %s: no bars in range: %w", ticker, contracts.ErrSeriesNotFound)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"bars":   series.Len(),
	}).Debug("Fetched chart")

	return series, nil
}

// GetBenchmarkSeries returns the benchmark bars in [from, to]
func (c *Client) GetBenchmarkSeries(ctx context.Context, from, to time.Time) (contracts.Series, error) {
	return c.GetSeries(ctx, c.benchmark, from, to)
}

func (c *Client) chartURL(ticker string, from, to time.Time) string {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", contracts.DateOf(from).Unix()))
	// period2는 배타적이므로 하루 뒤로
	params.Set("period2", fmt.Sprintf("%d", contracts.DateOf(to).AddDate(0, 0, 1).Unix()))
	params.Set("interval", "1d")
	params.Set("events", "div,split")

	return fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(Symbol(ticker)), params.Encode())
}

func (c *Client) fetchChart(ctx context.Context, ticker string, from, to time.Time) (*chartResult, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		var resp chartResponse
		if err := c.httpClient.GetJSON(ctx, c.chartURL(ticker, from, to), &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, err
	}

	resp := out.(*chartResponse)
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", errChartRejected, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: empty chart result", errChartRejected)
	}
	return &resp.Chart.Result[0], nil
}

// errChartRejected is a well-formed chart answer without data ("Not Found", delisted)
var errChartRejected = errors.New("chart rejected")

// classify maps a fetch error to ErrSeriesNotFound when retrying cannot help:
// a chart-level rejection or a 4xx other than 429
func classify(err error) error {
	if errors.Is(err, errChartRejected) {
		return contracts.ErrSeriesNotFound
	}
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) &&
		statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 &&
		statusErr.StatusCode != http.StatusTooManyRequests {
		return contracts.ErrSeriesNotFound
	}
	return contracts.ErrDataUnavailable
}

// isUpstreamHealthy keeps symbol-level 4xx answers and caller cancellation from tripping the breaker
func isUpstreamHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}
