package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/internal/export"
	"github.com/wonny/rsscreen/internal/s0_data"
	"github.com/wonny/rsscreen/internal/s0_data/quality"
	"github.com/wonny/rsscreen/internal/s1_universe"
	"github.com/wonny/rsscreen/internal/selection"
	"github.com/wonny/rsscreen/internal/strategyconfig"
	"github.com/wonny/rsscreen/pkg/logger"
)

// UniverseStore persists universe snapshots (s1_universe.Repository)
type UniverseStore interface {
	SaveUniverse(ctx context.Context, universe *contracts.Universe) error
}

// WatchlistStore persists watchlists (selection.Repository)
type WatchlistStore interface {
	SaveWatchlist(ctx context.Context, w *contracts.Watchlist) error
}

// RunRecorder receives run outcomes (metrics.Metrics)
type RunRecorder interface {
	selection.Observer
	RunFinished(variant string, watchlistSize int, err error)
}

// Orchestrator coordinates universe → load → screening per variant
// ⭐ SSOT: 스크리닝 실행 조율은 여기서만
type Orchestrator struct {
	strategy        *strategyconfig.Config
	universeBuilder *s1_universe.Builder
	loader          *s0_data.Loader
	qualityGate     *quality.QualityGate

	// optional
	universeRepo  UniverseStore
	watchlistRepo WatchlistStore
	recorder      RunRecorder

	workers   int
	outputDir string
	logger    *logger.Logger
}

// RunConfig holds configuration for one run
type RunConfig struct {
	Date     time.Time
	Variants []string // 비어있으면 전체
	Export   bool     // CSV/TXT/JSON 출력
	DryRun   bool     // DB 저장 생략
}

// RunResult holds the results of a complete run
type RunResult struct {
	Date       time.Time
	ConfigHash string
	Universe   *contracts.Universe
	Quality    *quality.Snapshot
	Variants   []*selection.RunResult
	Exports    map[string]export.Paths
	Duration   time.Duration
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	strategy *strategyconfig.Config,
	universeBuilder *s1_universe.Builder,
	loader *s0_data.Loader,
	qualityGate *quality.QualityGate,
	workers int,
	outputDir string,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		strategy:        strategy,
		universeBuilder: universeBuilder,
		loader:          loader,
		qualityGate:     qualityGate,
		workers:         workers,
		outputDir:       outputDir,
		logger:          log.WithField("module", "brain"),
	}
}

// WithRepositories enables persistence of universes and watchlists
func (o *Orchestrator) WithRepositories(universeRepo UniverseStore, watchlistRepo WatchlistStore) *Orchestrator {
	o.universeRepo = universeRepo
	o.watchlistRepo = watchlistRepo
	return o
}

// WithRecorder attaches metrics
func (o *Orchestrator) WithRecorder(r RunRecorder) *Orchestrator {
	o.recorder = r
	return o
}

// Run executes one screening run.
// Universe and series are loaded once and shared by every variant.
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()
	asOf := contracts.DateOf(config.Date)

	variants := config.Variants
	if len(variants) == 0 {
		variants = o.strategy.VariantNames()
	}
	for _, name := range variants {
		if _, err := o.strategy.Variant(name); err != nil {
			return nil, err
		}
	}

	configHash, err := strategyconfig.Hash(o.strategy)
	if err != nil {
		return nil, fmt.Errorf("config hash: %w", err)
	}

	result := &RunResult{
		Date:       asOf,
		ConfigHash: configHash,
		Exports:    make(map[string]export.Paths),
	}

	o.logger.WithFields(map[string]interface{}{
		"date":        asOf.Format("2006-01-02"),
		"variants":    variants,
		"config_hash": configHash[:12],
		"dry_run":     config.DryRun,
	}).Info("Starting screening run")

	// S1: Universe
	universe, err := o.runUniverse(ctx, asOf, config.DryRun)
	if err != nil {
		o.recordFailure(variants, err)
		return nil, fmt.Errorf("universe failed: %w", err)
	}
	result.Universe = universe

	// S0: Load
	from := asOf.AddDate(0, 0, -o.strategy.Data.HistoryDays)
	loaded, err := o.loader.Load(ctx, universe.Tickers(), from, asOf)
	if err != nil {
		o.recordFailure(variants, err)
		return nil, fmt.Errorf("load failed: %w", err)
	}

	if o.qualityGate != nil {
		result.Quality = o.qualityGate.Check(loaded.Series, loaded.Failed, asOf)
		if !result.Quality.Passed {
			o.logger.WithFields(map[string]interface{}{
				"quality_score": result.Quality.QualityScore,
				"reasons":       result.Quality.Reasons,
			}).Warn("Data quality below threshold, continuing")
		}
	}

	for _, name := range variants {
		res, err := o.runVariant(ctx, name, asOf, universe, loaded, config)
		if o.recorder != nil {
			size := 0
			if res != nil {
				size = res.Watchlist.Count()
			}
			o.recorder.RunFinished(name, size, err)
		}
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", name, err)
		}
		result.Variants = append(result.Variants, res)

		if config.Export {
			paths, err := export.WriteFiles(o.outputDir, res, o.strategy.Variants[name].Export.Columns)
			if err != nil {
				return nil, fmt.Errorf("export %s: %w", name, err)
			}
			result.Exports[name] = paths
		}
	}

	result.Duration = time.Since(startTime)
	o.logger.WithFields(map[string]interface{}{
		"duration": result.Duration.Seconds(),
		"variants": len(result.Variants),
	}).Info("Screening run completed")

	return result, nil
}

func (o *Orchestrator) runUniverse(ctx context.Context, asOf time.Time, dryRun bool) (*contracts.Universe, error) {
	universe, err := o.universeBuilder.Build(ctx, asOf)
	if err != nil {
		return nil, err
	}

	if o.universeRepo != nil && !dryRun {
		if err := o.universeRepo.SaveUniverse(ctx, universe); err != nil {
			return nil, fmt.Errorf("save universe: %w", err)
		}
	}
	return universe, nil
}

func (o *Orchestrator) runVariant(
	ctx context.Context,
	name string,
	asOf time.Time,
	universe *contracts.Universe,
	loaded *s0_data.LoadResult,
	config RunConfig,
) (*selection.RunResult, error) {
	pipeline, err := o.strategy.NewPipeline(name, o.workers, o.logger)
	if err != nil {
		return nil, err
	}
	if o.recorder != nil {
		pipeline.WithObserver(o.recorder)
	}

	hash, err := strategyconfig.VariantHash(o.strategy, name)
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Run(ctx, selection.RunInput{
		AsOf:          asOf,
		Variant:       name,
		ConfigHash:    hash,
		Benchmark:     loaded.Benchmark,
		Series:        loaded.Series,
		Universe:      universe,
		FailedTickers: loaded.Failed,
	})
	if err != nil {
		return nil, err
	}

	if o.watchlistRepo != nil && !config.DryRun {
		if err := o.watchlistRepo.SaveWatchlist(ctx, &res.Watchlist); err != nil {
			return nil, fmt.Errorf("save watchlist: %w", err)
		}
	}

	o.logger.WithFields(map[string]interface{}{
		"variant":   name,
		"watchlist": res.Watchlist.Count(),
		"failed":    len(res.FailedTickers),
	}).Info("Variant completed")

	return res, nil
}

func (o *Orchestrator) recordFailure(variants []string, err error) {
	if o.recorder == nil {
		return
	}
	for _, name := range variants {
		o.recorder.RunFinished(name, 0, err)
	}
}
