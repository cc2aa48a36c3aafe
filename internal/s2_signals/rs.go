package s2_signals

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wonny/rsscreen/internal/contracts"
)

// ErrIneligible marks a ticker that cannot receive a raw RS score
var ErrIneligible = errors.New("ineligible for RS scoring")

// RSConfig defines quarter lookbacks and their weights
type RSConfig struct {
	LookbacksDays []int     // 거래일 기준 (63/126/189/252)
	Weights       []float64 // 최근 분기 2배 가중 (0.4/0.2/0.2/0.2)
	MinBars       int       // 최소 이력 (기본 30)
}

// DefaultRSConfig returns the four-quarter configuration
func DefaultRSConfig() RSConfig {
	return RSConfig{
		LookbacksDays: []int{63, 126, 189, 252},
		Weights:       []float64{0.4, 0.2, 0.2, 0.2},
		MinBars:       30,
	}
}

// RSResult holds a raw score and the weighted performance behind it
type RSResult struct {
	Raw           float64
	PerfStock     float64
	PerfBenchmark float64
	WindowsUsed   int
	Bars          int
}

// RSCalculator computes relative strength against a benchmark
// ⭐ SSOT: RS 점수 계산은 여기서만 (순수 함수, 동시 호출 안전)
type RSCalculator struct {
	cfg RSConfig
}

// NewRSCalculator creates a new RS calculator
func NewRSCalculator(cfg RSConfig) (*RSCalculator, error) {
	if len(cfg.LookbacksDays) == 0 {
		return nil, fmt.Errorf("rs: at least one lookback is required")
	}
	if len(cfg.LookbacksDays) != len(cfg.Weights) {
		return nil, fmt.Errorf("rs: lookbacks_days length %d != weights length %d", len(cfg.LookbacksDays), len(cfg.Weights))
	}
	for i, w := range cfg.LookbacksDays {
		if w <= 0 {
			return nil, fmt.Errorf("rs: lookback[%d] must be > 0", i)
		}
		if cfg.Weights[i] <= 0 {
			return nil, fmt.Errorf("rs: weight[%d] must be > 0", i)
		}
	}
	if cfg.MinBars < 2 {
		return nil, fmt.Errorf("rs: min_bars must be >= 2, got %d", cfg.MinBars)
	}
	return &RSCalculator{cfg: cfg}, nil
}

// Config returns the calculator configuration
func (c *RSCalculator) Config() RSConfig {
	return c.cfg
}

// Score computes raw = perf_stock / perf_benchmark * 100 using bars dated on or before asOf.
//
// Lookbacks longer than the available history are clamped to the first bar.
// A window whose anchor close is zero on either side is dropped and the
// remaining weights are renormalized. Errors wrap ErrIneligible.
func (c *RSCalculator) Score(series, benchmark contracts.Series, asOf time.Time) (RSResult, error) {
	stock := series.UpTo(asOf)
	n := stock.Len()
	if n < c.cfg.MinBars {
		return RSResult{Bars: n}, fmt.Errorf("%w: %d bars < min %d", ErrIneligible, n, c.cfg.MinBars)
	}

	last := n - 1
	latest := stock.Bars[last]

	// 벤치마크는 종목의 마지막 bar 날짜에 맞춰 자른다
	bench := benchmark.UpTo(latest.Date)
	if bench.Len() == 0 {
		return RSResult{Bars: n}, fmt.Errorf("%w: no benchmark bars on or before %s", ErrIneligible, latest.Date.Format("2006-01-02"))
	}
	benchLast := bench.Len() - 1
	benchLatest := bench.Bars[benchLast].Close

	var sumStock, sumBench, weightSum float64
	used := 0
	for i, lookback := range c.cfg.LookbacksDays {
		// 양쪽 모두 같은 길이의 창을 사용
		span := min(lookback, last, benchLast)
		if span <= 0 {
			continue
		}

		anchor := stock.Bars[last-span].Close
		benchAnchor := bench.Bars[benchLast-span].Close
		if anchor == 0 || benchAnchor == 0 {
			continue
		}

		weight := c.cfg.Weights[i]
		sumStock += weight * (latest.Close / anchor)
		sumBench += weight * (benchLatest / benchAnchor)
		weightSum += weight
		used++
	}

	if used == 0 || weightSum == 0 {
		return RSResult{Bars: n}, fmt.Errorf("%w: no window with a non-zero anchor", ErrIneligible)
	}

	perfStock := sumStock / weightSum
	perfBench := sumBench / weightSum
	if perfBench == 0 {
		return RSResult{Bars: n}, fmt.Errorf("%w: benchmark performance is zero", ErrIneligible)
	}

	raw := perfStock / perfBench * 100
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return RSResult{Bars: n}, fmt.Errorf("%w: non-finite score", ErrIneligible)
	}

	return RSResult{
		Raw:           raw,
		PerfStock:     perfStock,
		PerfBenchmark: perfBench,
		WindowsUsed:   used,
		Bars:          n,
	}, nil
}
