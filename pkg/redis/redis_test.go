package redis

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsscreen/pkg/config"
)

func TestNew_Disabled(t *testing.T) {
	client, err := New(&config.Config{})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.Nil(t, client.Redis())
	assert.NoError(t, client.Close())
}

func TestNew_Unreachable(t *testing.T) {
	_, err := New(&config.Config{Redis: config.RedisConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    "1", // 닫힌 포트
	}})
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	opt := options(config.RedisConfig{Password: "pw", DB: 2})
	assert.Equal(t, "localhost:6379", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
	assert.Equal(t, dialTimeout, opt.DialTimeout)

	opt = options(config.RedisConfig{Host: "cache.internal", Port: "6380"})
	assert.Equal(t, "cache.internal:6380", opt.Addr)
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "test")

	allowed, remaining, err := limiter.Allow(context.Background(), YahooRateLimit)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, YahooRateLimit.Limit, remaining)

	assert.NoError(t, limiter.Wait(context.Background(), WikipediaRateLimit))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", []string{"AAPL"}, TTLDaily))

	var result []string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, result)
}

func TestCacheKeys(t *testing.T) {
	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "series:AAPL:20240102:20241231", SeriesKey("AAPL", from, to))
	assert.Equal(t, "universe:sp500", UniverseKey("sp500"))
	assert.Equal(t, "rsscreen:cache:universe:sp500", NewCache(Disabled(), "rsscreen").key(UniverseKey("sp500")))
}

func testClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping integration test")
	}
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: true, Host: host, Port: port}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRateLimiter_Window(t *testing.T) {
	client := testClient(t)
	limiter := NewRateLimiter(client, fmt.Sprintf("rsscreen-test-%d", time.Now().UnixNano()))
	cfg := RateLimitConfig{Key: "burst", Limit: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, err := limiter.Allow(ctx, cfg)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 2-i, remaining)
	}

	allowed, _, err := limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, allowed, "같은 ms 안의 요청도 개별 집계")

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.Wait(waitCtx, cfg), context.DeadlineExceeded)
}

func TestCache_RoundTrip(t *testing.T) {
	client := testClient(t)
	cache := NewCache(client, "rsscreen-test")
	ctx := context.Background()

	var miss []string
	found, err := cache.Get(ctx, "missing", &miss)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "tickers", []string{"AAPL", "NVDA"}, time.Minute))
	var got []string
	found, err = cache.Get(ctx, "tickers", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"AAPL", "NVDA"}, got)
}
