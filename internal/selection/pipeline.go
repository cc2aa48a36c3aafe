package selection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/internal/s2_signals"
	"github.com/wonny/rsscreen/pkg/logger"
)

// ErrDuplicateTicker is returned when RunInput.Series repeats a ticker
var ErrDuplicateTicker = errors.New("duplicate ticker in run input")

// Observer receives per-stage progress (metrics exporter)
type Observer interface {
	StageCompleted(variant string, stage contracts.Stage, passed int, elapsed time.Duration)
}

// PipelineConfig defines run options
type PipelineConfig struct {
	Workers int // 티커 병렬 처리 수
}

// RunInput is everything one screening run needs.
// Series are immutable for the duration of the run.
type RunInput struct {
	AsOf          time.Time
	Variant       string
	ConfigHash    string
	Benchmark     contracts.Series
	Series        []contracts.Series
	Universe      *contracts.Universe // optional: sector/industry
	FailedTickers map[string]string   // S0 실패 (loader 결과)
}

// RunResult is the full outcome of one screening run
type RunResult struct {
	AsOf          time.Time               `json:"as_of"`
	Variant       string                  `json:"variant"`
	ConfigHash    string                  `json:"config_hash"`
	Scores        []contracts.RSScore     `json:"scores"`
	Watchlist     contracts.Watchlist     `json:"watchlist"`
	Rejections    []contracts.Rejection   `json:"rejections"`
	FailedTickers map[string]string       `json:"failed_tickers"`
	StageCounts   map[contracts.Stage]int `json:"stage_counts"`
}

// RejectionsAt returns rejections recorded at one stage
func (r *RunResult) RejectionsAt(stage contracts.Stage) []contracts.Rejection {
	var out []contracts.Rejection
	for _, rej := range r.Rejections {
		if rej.Stage == stage {
			out = append(out, rej)
		}
	}
	return out
}

// Pipeline orchestrates S0~S5 into a watchlist
// ⭐ SSOT: 스크리닝 단계 순서는 여기서만 (되돌아가지 않음)
type Pipeline struct {
	scorer   *s2_signals.RSCalculator
	ranker   *Ranker
	engine   *s2_signals.IndicatorEngine
	screener *Screener
	config   PipelineConfig
	observer Observer
	logger   *logger.Logger
}

// NewPipeline creates a new pipeline.
// Criteria are validated against the engine's indicator names.
func NewPipeline(
	scorer *s2_signals.RSCalculator,
	ranker *Ranker,
	engine *s2_signals.IndicatorEngine,
	screener *Screener,
	config PipelineConfig,
	log *logger.Logger,
) (*Pipeline, error) {
	if err := screener.Criteria().Validate(engine.HasIndicator); err != nil {
		return nil, fmt.Errorf("invalid screen criteria: %w", err)
	}
	if config.Workers < 1 {
		config.Workers = 1
	}

	return &Pipeline{
		scorer:   scorer,
		ranker:   ranker,
		engine:   engine,
		screener: screener,
		config:   config,
		logger:   log.WithField("module", "pipeline"),
	}, nil
}

// WithObserver attaches a stage observer
func (p *Pipeline) WithObserver(o Observer) *Pipeline {
	p.observer = o
	return p
}

// candidate is one ticker moving through S2~S5 (arena index into input.Series)
type candidate struct {
	idx      int
	score    contracts.RSScore
	snapshot *contracts.IndicatorSnapshot
	history  []contracts.IndicatorSnapshot
}

// Run executes every stage and returns the watchlist.
// The only fatal errors are an empty benchmark, an empty percentile
// population and context cancellation.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	if in.Benchmark.Len() == 0 {
		return nil, fmt.Errorf("run %s: %w", in.AsOf.Format("2006-01-02"), contracts.ErrBenchmarkUnavailable)
	}
	seen := make(map[string]struct{}, len(in.Series))
	for _, s := range in.Series {
		if _, dup := seen[s.Ticker]; dup {
			return nil, fmt.Errorf("run %s: %s: %w", in.AsOf.Format("2006-01-02"), s.Ticker, ErrDuplicateTicker)
		}
		seen[s.Ticker] = struct{}{}
	}

	asOf := contracts.DateOf(in.AsOf)
	result := &RunResult{
		AsOf:          asOf,
		Variant:       in.Variant,
		ConfigHash:    in.ConfigHash,
		FailedTickers: make(map[string]string, len(in.FailedTickers)),
		StageCounts:   make(map[contracts.Stage]int),
	}
	reject := func(ticker string, stage contracts.Stage, reason string) {
		result.Rejections = append(result.Rejections, contracts.Rejection{Ticker: ticker, Stage: stage, Reason: reason})
	}

	p.logger.WithFields(map[string]interface{}{
		"as_of":   asOf.Format("2006-01-02"),
		"variant": in.Variant,
		"tickers": len(in.Series),
		"failed":  len(in.FailedTickers),
	}).Info("Starting screening run")

	// S0: data (loader 실패 기록)
	start := time.Now()
	for ticker, reason := range in.FailedTickers {
		result.FailedTickers[ticker] = reason
		reject(ticker, contracts.StageData, reason)
	}
	p.complete(result, in.Variant, contracts.StageData, len(in.Series), start)

	// S1: scoring + percentile
	start = time.Now()
	scores, err := p.scoreAll(ctx, in.Series, in.Benchmark, asOf)
	if err != nil {
		return nil, err
	}
	for _, s := range scores {
		if !s.Eligible {
			reject(s.Ticker, contracts.StageScoring, fmt.Sprintf("ineligible: %d bars", s.Bars))
		}
	}

	ranked, err := p.ranker.Rank(scores)
	if err != nil {
		return nil, err
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Ticker < ranked[j].Ticker })
	result.Scores = ranked

	rankedCount := 0
	for _, s := range ranked {
		if s.IsRanked() {
			rankedCount++
		}
	}
	p.complete(result, in.Variant, contracts.StageScoring, rankedCount, start)

	// S2: percentile gate
	start = time.Now()
	indexOf := make(map[string]int, len(in.Series))
	for i, s := range in.Series {
		indexOf[s.Ticker] = i
	}

	var candidates []*candidate
	for _, s := range ranked {
		switch {
		case s.Status == contracts.RankStatusReference:
			reject(s.Ticker, contracts.StagePercentileGate, "benchmark reference ticker")
		case !s.IsRanked():
			// S1에서 이미 기록
		case !p.screener.PassesGate(s):
			reject(s.Ticker, contracts.StagePercentileGate,
				fmt.Sprintf("percentile %d < %d", s.Percentile, p.screener.Criteria().MinPercentile))
		default:
			candidates = append(candidates, &candidate{idx: indexOf[s.Ticker], score: s})
		}
	}
	p.complete(result, in.Variant, contracts.StagePercentileGate, len(candidates), start)

	// S3: indicators (게이트 통과 종목만)
	start = time.Now()
	if err := p.computeIndicators(ctx, in.Series, candidates); err != nil {
		return nil, err
	}
	withHistory := candidates[:0:0]
	for _, c := range candidates {
		if len(c.history) == 0 {
			reject(c.score.Ticker, contracts.StageIndicators,
				fmt.Sprintf("insufficient history: %d bars < %d", in.Series[c.idx].Len(), p.engine.MinBars()))
			continue
		}
		withHistory = append(withHistory, c)
	}
	p.complete(result, in.Variant, contracts.StageIndicators, len(withHistory), start)

	// S4: latest computable bar <= asOf
	start = time.Now()
	withLatest := withHistory[:0:0]
	for _, c := range withHistory {
		snap, ok := latestSnapshot(c.history, asOf)
		if !ok {
			reject(c.score.Ticker, contracts.StageLatestBar, "no computable bar on or before as-of date")
			continue
		}
		c.snapshot = snap
		withLatest = append(withLatest, c)
	}
	p.complete(result, in.Variant, contracts.StageLatestBar, len(withLatest), start)

	// S5: rule filter
	start = time.Now()
	entries := make([]contracts.WatchlistEntry, 0, len(withLatest))
	for _, c := range withLatest {
		if ok, reason := p.screener.Check(c.snapshot); !ok {
			reject(c.score.Ticker, contracts.StageRuleFilter, reason)
			continue
		}

		entry := contracts.WatchlistEntry{
			Ticker:     c.score.Ticker,
			RawScore:   c.score.Raw,
			Percentile: c.score.Percentile,
			Snapshot:   *c.snapshot,
		}
		if in.Universe != nil {
			if sec, ok := in.Universe.Lookup(c.score.Ticker); ok {
				entry.Sector = sec.Sector
				entry.Industry = sec.Industry
			}
		}
		entries = append(entries, entry)
	}
	contracts.SortEntries(entries)
	p.complete(result, in.Variant, contracts.StageRuleFilter, len(entries), start)

	result.Watchlist = contracts.Watchlist{
		AsOf:       asOf,
		Variant:    in.Variant,
		ConfigHash: in.ConfigHash,
		Entries:    entries,
	}
	sortRejections(result.Rejections)

	p.logger.WithFields(map[string]interface{}{
		"as_of":      asOf.Format("2006-01-02"),
		"variant":    in.Variant,
		"watchlist":  len(entries),
		"rejections": len(result.Rejections),
	}).Info("Screening run completed")

	return result, nil
}

// scoreAll computes raw RS scores with a bounded worker pool.
// Each goroutine writes only its own slot, so no lock is needed.
func (p *Pipeline) scoreAll(ctx context.Context, series []contracts.Series, benchmark contracts.Series, asOf time.Time) ([]contracts.RSScore, error) {
	scores := make([]contracts.RSScore, len(series))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)

	for i := range series {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			s := series[i]
			res, err := p.scorer.Score(s, benchmark, asOf)
			scores[i] = contracts.RSScore{
				Ticker:   s.Ticker,
				Raw:      res.Raw,
				Eligible: err == nil,
				Bars:     res.Bars,
			}
			if err != nil {
				scores[i].Raw = 0
				p.logger.WithFields(map[string]interface{}{
					"ticker": s.Ticker,
					"reason": err.Error(),
				}).Debug("Ticker ineligible for RS")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring cancelled: %w", err)
	}
	return scores, nil
}

// computeIndicators fills candidate histories with a bounded worker pool
func (p *Pipeline) computeIndicators(ctx context.Context, series []contracts.Series, candidates []*candidate) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)

	for _, c := range candidates {
		c := c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.history = p.engine.Compute(series[c.idx])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("indicator computation cancelled: %w", err)
	}
	return nil
}

// complete records the stage output count and notifies the observer
func (p *Pipeline) complete(result *RunResult, variant string, stage contracts.Stage, passed int, start time.Time) {
	elapsed := time.Since(start)
	result.StageCounts[stage] = passed

	p.logger.WithFields(map[string]interface{}{
		"stage":    stage.ShortName(),
		"passed":   passed,
		"duration": elapsed,
	}).Debug("Stage completed")

	if p.observer != nil {
		p.observer.StageCompleted(variant, stage, passed, elapsed)
	}
}

// latestSnapshot returns the most recent snapshot dated on or before asOf
func latestSnapshot(history []contracts.IndicatorSnapshot, asOf time.Time) (*contracts.IndicatorSnapshot, bool) {
	n := sort.Search(len(history), func(i int) bool {
		return history[i].Date.After(asOf)
	})
	if n == 0 {
		return nil, false
	}
	return &history[n-1], true
}

// sortRejections orders by stage then ticker
func sortRejections(rejections []contracts.Rejection) {
	order := make(map[contracts.Stage]int)
	for i, s := range contracts.AllStages() {
		order[s] = i
	}
	sort.SliceStable(rejections, func(i, j int) bool {
		a, b := rejections[i], rejections[j]
		if a.Stage != b.Stage {
			return order[a.Stage] < order[b.Stage]
		}
		return a.Ticker < b.Ticker
	})
}
