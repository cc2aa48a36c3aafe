package s0_data

import (
	"context"
	"time"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/logger"
	"github.com/wonny/rsscreen/pkg/redis"
)

// SeriesCache is the subset of redis.Cache used by CachedProvider
type SeriesCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedProvider decorates a SeriesProvider with a read-through cache
// keyed by ticker and date range. 실패 결과는 캐시하지 않음
type CachedProvider struct {
	inner     contracts.SeriesProvider
	cache     SeriesCache
	benchmark string
	ttl       time.Duration
	logger    *logger.Logger
}

// NewCachedProvider creates a cached provider (ttl 0 = redis.TTLDaily)
func NewCachedProvider(inner contracts.SeriesProvider, cache SeriesCache, benchmark string, ttl time.Duration, log *logger.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &CachedProvider{
		inner:     inner,
		cache:     cache,
		benchmark: benchmark,
		ttl:       ttl,
		logger:    log.WithField("module", "series_cache"),
	}
}

// GetSeries returns cached bars or fetches and stores them
func (p *CachedProvider) GetSeries(ctx context.Context, ticker string, from, to time.Time) (contracts.Series, error) {
	return p.get(ctx, ticker, from, to, func() (contracts.Series, error) {
		return p.inner.GetSeries(ctx, ticker, from, to)
	})
}

// GetBenchmarkSeries returns cached benchmark bars or fetches and stores them
func (p *CachedProvider) GetBenchmarkSeries(ctx context.Context, from, to time.Time) (contracts.Series, error) {
	return p.get(ctx, p.benchmark, from, to, func() (contracts.Series, error) {
		return p.inner.GetBenchmarkSeries(ctx, from, to)
	})
}

func (p *CachedProvider) get(ctx context.Context, ticker string, from, to time.Time, fetch func() (contracts.Series, error)) (contracts.Series, error) {
	key := redis.SeriesKey(ticker, from, to)

	var cached contracts.Series
	found, err := p.cache.Get(ctx, key, &cached)
	if err != nil {
		// 캐시 손상은 조회 실패로 취급하지 않음
		p.logger.WithError(err).WithField("key", key).Warn("Series cache read failed")
	}
	if found && err == nil {
		return cached, nil
	}

	series, err := fetch()
	if err != nil {
		return contracts.Series{}, err
	}

	if err := p.cache.Set(ctx, key, series, p.ttl); err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Series cache write failed")
	}
	return series, nil
}
