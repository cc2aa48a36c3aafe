package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/rsscreen/internal/brain"
	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/internal/external/wikipedia"
	"github.com/wonny/rsscreen/internal/external/yahoo"
	"github.com/wonny/rsscreen/internal/metrics"
	"github.com/wonny/rsscreen/internal/s0_data"
	"github.com/wonny/rsscreen/internal/s0_data/quality"
	"github.com/wonny/rsscreen/internal/s1_universe"
	"github.com/wonny/rsscreen/internal/selection"
	"github.com/wonny/rsscreen/internal/strategyconfig"
	"github.com/wonny/rsscreen/pkg/config"
	"github.com/wonny/rsscreen/pkg/database"
	"github.com/wonny/rsscreen/pkg/httputil"
	"github.com/wonny/rsscreen/pkg/logger"
	"github.com/wonny/rsscreen/pkg/redis"
)

const cachePrefix = "rsscreen"

// app holds the process-wide dependencies shared by every command
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	strategy *strategyconfig.Config
	yaml     []byte
	db       *database.DB  // nil = DATABASE_URL 미설정
	redis    *redis.Client // Enabled() false = 캐시 비활성
	metrics  *metrics.Metrics
}

// newApp loads env config, the strategy YAML and opens optional connections.
// requireDB fails fast when the command cannot work without PostgreSQL.
func newApp(requireDB bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	path := strategyFile
	if path == "" {
		path = cfg.Screen.ConfigPath
	}
	strategy, raw, err := strategyconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load strategy %s: %w", path, err)
	}
	if cfg.Screen.UniverseFile != "" {
		strategy.Universe.File = cfg.Screen.UniverseFile
	}
	for _, w := range strategyconfig.Warn(strategy) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		strategy: strategy,
		yaml:     raw,
		metrics:  metrics.New(),
	}

	if cfg.HasDatabase() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := database.Open(ctx, cfg)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
	} else if requireDB {
		return nil, database.ErrNotConfigured
	}

	rc, err := redis.New(cfg)
	if err != nil {
		// 캐시는 선택 사항: 연결 실패 시 비활성으로 계속
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rc = redis.Disabled()
	}
	a.redis = rc

	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// yahooClient builds the chart API client; with Redis the request budget is shared
func (a *app) yahooClient() *yahoo.Client {
	c := yahoo.New(a.cfg, a.strategy.Benchmark.Ticker, a.log)
	if a.redis.Enabled() {
		c.WithSharedLimit(redis.NewRateLimiter(a.redis, cachePrefix), int(a.cfg.Yahoo.RequestsPerSec))
	}
	return c
}

// provider selects the price source named by data.provider
func (a *app) provider() (contracts.SeriesProvider, error) {
	benchmark := a.strategy.Benchmark.Ticker

	var p contracts.SeriesProvider
	switch a.strategy.Data.Provider {
	case "csv":
		src, err := s0_data.NewCSVSource(a.strategy.Data.CSVPath, benchmark)
		if err != nil {
			return nil, fmt.Errorf("open price file: %w", err)
		}
		return src, nil // 로컬 파일은 캐시 불필요
	case "database":
		if a.db == nil {
			return nil, fmt.Errorf("data.provider database: %w", database.ErrNotConfigured)
		}
		p = s0_data.NewPriceRepository(a.db.Pool, benchmark)
	default:
		p = a.yahooClient()
	}

	if a.strategy.Data.Cache && a.redis.Enabled() {
		p = s0_data.NewCachedProvider(p, redis.NewCache(a.redis, cachePrefix), benchmark, 0, a.log)
	}
	return p, nil
}

// universeBuilder wires the index and database sources the strategy may need
func (a *app) universeBuilder() *s1_universe.Builder {
	httpClient := httputil.New(a.cfg, a.log)
	if a.redis.Enabled() {
		httpClient.WithRateLimiter(redis.NewRateLimiter(a.redis, cachePrefix), redis.WikipediaRateLimit)
	}

	b := s1_universe.NewBuilder(a.strategy.UniverseConfig(), a.log).
		WithIndexSource(wikipedia.NewClient(httpClient, a.log))
	if a.db != nil {
		b.WithActiveSource(s0_data.NewPriceRepository(a.db.Pool, a.strategy.Benchmark.Ticker))
	}
	if a.redis.Enabled() {
		b.WithCache(redis.NewCache(a.redis, cachePrefix))
	}
	return b
}

// orchestrator assembles the full daily run
func (a *app) orchestrator(outputDir string) (*brain.Orchestrator, error) {
	provider, err := a.provider()
	if err != nil {
		return nil, err
	}

	loader := s0_data.NewLoader(provider, s0_data.LoaderConfig{
		Workers: a.cfg.Screen.Workers,
		Timeout: a.cfg.Screen.FetchTimeout,
		Retries: a.cfg.Screen.FetchRetries,
		Backoff: 500 * time.Millisecond,
	}, a.log).WithRecorder(a.metrics)

	if outputDir == "" {
		outputDir = a.cfg.Screen.OutputDir
	}

	o := brain.NewOrchestrator(
		a.strategy,
		a.universeBuilder(),
		loader,
		quality.NewQualityGate(quality.DefaultConfig()),
		a.cfg.Screen.Workers,
		outputDir,
		a.log,
	).WithRecorder(a.metrics)

	if a.db != nil {
		o.WithRepositories(s1_universe.NewRepository(a.db.Pool), selection.NewRepository(a.db.Pool))
	}
	return o, nil
}

// location returns the schedule timezone (default America/New_York)
func (a *app) location() (*time.Location, error) {
	tz := a.strategy.Schedule.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", tz, err)
	}
	return loc, nil
}
