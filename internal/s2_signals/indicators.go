package s2_signals

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/markcheno/go-talib"

	"github.com/wonny/rsscreen/internal/contracts"
)

// Indicator names produced by the engine
const (
	IndClose           = "close"
	IndVolume          = "volume"
	IndAvgDollarVolume = "avg_dollar_volume"
	IndATR             = "atr"
	IndATRPct          = "atr_pct"
	IndRangeHigh       = "range_high"
	IndRangeLow        = "range_low"
	IndRange           = "range"
	IndDistHighPct     = "dist_high_pct"
	IndDistLowPct      = "dist_low_pct"
	IndUpVolume        = "up_volume"
	IndDownVolume      = "down_volume"
	IndVolumeFlow      = "volume_flow"
	IndHighMid         = "high_mid"
	IndHighExtreme     = "high_extreme"
	IndBullishStreak   = "bullish_streak"
)

// MAName returns the moving average indicator name for window k (e.g. ma_50)
func MAName(k int) string {
	return "ma_" + strconv.Itoa(k)
}

// MAPrevName returns the previous-bar moving average name (e.g. ma_200_prev)
func MAPrevName(k int) string {
	return MAName(k) + "_prev"
}

// MAGapName returns the |close - ma_k| indicator name (e.g. ma_50_gap)
func MAGapName(k int) string {
	return MAName(k) + "_gap"
}

// StreakConfig defines the moving averages behind bullish_streak
type StreakConfig struct {
	Short int
	Mid   int
	Long  int
}

// IndicatorConfig defines trailing windows for every indicator.
// Every window must be >= 2. Zero disables an optional indicator.
type IndicatorConfig struct {
	DollarVolumeWindow int   // 평균 거래대금 (기본 10)
	ATRWindow          int   // ATR (기본 20)
	MAWindows          []int // 이동평균 (10/20/50/200)
	RangeWindow        int   // 최근 고가/저가 (기본 5)
	FlowWindow         int   // 방향성 거래량 (기본 20)

	MidHighWindow     int // high_mid (0 = off)
	ExtremeHighWindow int // high_extreme, 52주 고가 = 252 (0 = off)

	Streak *StreakConfig // nil = off
}

// DefaultIndicatorConfig returns the breakout screen windows
func DefaultIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{
		DollarVolumeWindow: 10,
		ATRWindow:          20,
		MAWindows:          []int{10, 20, 50, 200},
		RangeWindow:        5,
		FlowWindow:         20,
	}
}

// Validate checks every configured window
func (c IndicatorConfig) Validate() error {
	required := map[string]int{
		"dollar_volume_window": c.DollarVolumeWindow,
		"atr_window":           c.ATRWindow,
		"range_window":         c.RangeWindow,
		"flow_window":          c.FlowWindow,
	}
	for name, w := range required {
		if w < 2 {
			return fmt.Errorf("indicators: %s must be >= 2, got %d", name, w)
		}
	}
	for _, k := range c.MAWindows {
		if k < 2 {
			return fmt.Errorf("indicators: ma window must be >= 2, got %d", k)
		}
	}
	if c.MidHighWindow != 0 && c.MidHighWindow < 2 {
		return fmt.Errorf("indicators: mid_high_window must be 0 or >= 2, got %d", c.MidHighWindow)
	}
	if c.ExtremeHighWindow != 0 && c.ExtremeHighWindow < 2 {
		return fmt.Errorf("indicators: extreme_high_window must be 0 or >= 2, got %d", c.ExtremeHighWindow)
	}
	if s := c.Streak; s != nil {
		if s.Short < 2 || s.Mid < 2 || s.Long < 2 {
			return fmt.Errorf("indicators: streak windows must be >= 2")
		}
	}
	return nil
}

// IndicatorEngine computes trailing technical indicators for one series
// ⭐ SSOT: 기술적 지표 계산은 여기서만 (순수 함수, 티커 단위)
type IndicatorEngine struct {
	cfg       IndicatorConfig
	maWindows []int
	names     []string
	warmup    int
}

// NewIndicatorEngine creates a new indicator engine
func NewIndicatorEngine(cfg IndicatorConfig) (*IndicatorEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 중복 제거 + 정렬
	seen := make(map[int]bool)
	maWindows := make([]int, 0, len(cfg.MAWindows))
	for _, k := range cfg.MAWindows {
		if !seen[k] {
			seen[k] = true
			maWindows = append(maWindows, k)
		}
	}
	sort.Ints(maWindows)

	e := &IndicatorEngine{cfg: cfg, maWindows: maWindows}
	e.names = e.buildNames()
	e.warmup = e.firstIndex()
	return e, nil
}

// Config returns the engine configuration
func (e *IndicatorEngine) Config() IndicatorConfig {
	return e.cfg
}

// Names returns every indicator name a snapshot may contain
func (e *IndicatorEngine) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// HasIndicator reports whether the engine produces the named indicator
func (e *IndicatorEngine) HasIndicator(name string) bool {
	for _, n := range e.names {
		if n == name {
			return true
		}
	}
	return false
}

// MinBars returns the number of bars needed for the first snapshot
func (e *IndicatorEngine) MinBars() int {
	return e.warmup + 1
}

func (e *IndicatorEngine) buildNames() []string {
	names := []string{
		IndClose, IndVolume, IndAvgDollarVolume, IndATR, IndATRPct,
		IndRangeHigh, IndRangeLow, IndRange, IndDistHighPct, IndDistLowPct,
		IndUpVolume, IndDownVolume, IndVolumeFlow,
	}
	for _, k := range e.maWindows {
		names = append(names, MAName(k), MAPrevName(k), MAGapName(k))
	}
	if e.cfg.MidHighWindow > 0 {
		names = append(names, IndHighMid)
	}
	if e.cfg.ExtremeHighWindow > 0 {
		names = append(names, IndHighExtreme)
	}
	if e.cfg.Streak != nil {
		names = append(names, IndBullishStreak)
	}
	return names
}

// firstIndex returns the first bar index at which every window is populated
func (e *IndicatorEngine) firstIndex() int {
	idx := 0
	need := func(i int) {
		if i > idx {
			idx = i
		}
	}

	need(e.cfg.DollarVolumeWindow - 1)
	need(e.cfg.ATRWindow - 1)
	need(e.cfg.RangeWindow - 1)
	need(e.cfg.FlowWindow) // 첫 bar는 전일 종가가 없음
	for _, k := range e.maWindows {
		need(k) // ma_k_prev
	}
	if e.cfg.MidHighWindow > 0 {
		need(e.cfg.MidHighWindow - 1)
	}
	if e.cfg.ExtremeHighWindow > 0 {
		need(e.cfg.ExtremeHighWindow - 1)
	}
	if s := e.cfg.Streak; s != nil {
		need(maxInt(s.Short, s.Mid, s.Long) - 1)
	}
	return idx
}

// Compute returns one snapshot per bar once every trailing window is populated.
// A series shorter than MinBars yields no snapshots.
// Values whose denominator is zero are omitted from the snapshot.
func (e *IndicatorEngine) Compute(series contracts.Series) []contracts.IndicatorSnapshot {
	n := series.Len()
	if n <= e.warmup {
		return nil
	}

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	volumes := series.Volumes()

	avgVolume := talib.Sma(volumes, e.cfg.DollarVolumeWindow)

	tr := talib.TRange(highs, lows, closes)
	tr[0] = highs[0] - lows[0] // 전일 종가 없음
	atr := talib.Sma(tr, e.cfg.ATRWindow)

	ma := make(map[int][]float64, len(e.maWindows))
	for _, k := range e.maWindows {
		ma[k] = talib.Sma(closes, k)
	}

	rangeHigh := talib.Max(highs, e.cfg.RangeWindow)
	rangeLow := talib.Min(lows, e.cfg.RangeWindow)

	upFlow := make([]float64, n)
	downFlow := make([]float64, n)
	for i := 1; i < n; i++ {
		flow := volumes[i] * (closes[i] - closes[i-1])
		if flow > 0 {
			upFlow[i] = flow
		} else if flow < 0 {
			downFlow[i] = -flow
		}
	}
	upSum := talib.Sum(upFlow, e.cfg.FlowWindow)
	downSum := talib.Sum(downFlow, e.cfg.FlowWindow)

	var highMid, highExtreme []float64
	if e.cfg.MidHighWindow > 0 {
		highMid = talib.Max(highs, e.cfg.MidHighWindow)
	}
	if e.cfg.ExtremeHighWindow > 0 {
		highExtreme = talib.Max(highs, e.cfg.ExtremeHighWindow)
	}

	var streak []float64
	if e.cfg.Streak != nil {
		streak = bullishStreak(closes, *e.cfg.Streak)
	}

	snapshots := make([]contracts.IndicatorSnapshot, 0, n-e.warmup)
	for i := e.warmup; i < n; i++ {
		c := closes[i]
		v := make(map[string]float64, len(e.names))

		v[IndClose] = c
		v[IndVolume] = volumes[i]
		v[IndAvgDollarVolume] = c * avgVolume[i]

		v[IndATR] = atr[i]
		if c != 0 {
			v[IndATRPct] = atr[i] / c * 100
		}

		for _, k := range e.maWindows {
			v[MAName(k)] = ma[k][i]
			v[MAPrevName(k)] = ma[k][i-1]
			v[MAGapName(k)] = math.Abs(c - ma[k][i])
		}

		hi, lo := rangeHigh[i], rangeLow[i]
		v[IndRangeHigh] = hi
		v[IndRangeLow] = lo
		v[IndRange] = hi - lo
		if hi != 0 {
			v[IndDistHighPct] = (hi - c) / hi * 100
		}
		if lo != 0 {
			v[IndDistLowPct] = (c - lo) / lo * 100
		}

		v[IndUpVolume] = upSum[i]
		v[IndDownVolume] = downSum[i]
		v[IndVolumeFlow] = upSum[i] - downSum[i]

		if highMid != nil {
			v[IndHighMid] = highMid[i]
		}
		if highExtreme != nil {
			v[IndHighExtreme] = highExtreme[i]
		}
		if streak != nil {
			v[IndBullishStreak] = streak[i]
		}

		snapshots = append(snapshots, contracts.IndicatorSnapshot{
			Ticker: series.Ticker,
			Date:   series.Bars[i].Date,
			Values: v,
		})
	}

	return snapshots
}

// bullishStreak counts consecutive bars with
// close > ma_mid && ma_short > ma_mid && ma_mid > ma_long
func bullishStreak(closes []float64, cfg StreakConfig) []float64 {
	n := len(closes)
	out := make([]float64, n)

	longest := maxInt(cfg.Short, cfg.Mid, cfg.Long)
	if n < longest {
		return out
	}

	short := talib.Sma(closes, cfg.Short)
	mid := talib.Sma(closes, cfg.Mid)
	long := talib.Sma(closes, cfg.Long)

	count := 0.0
	for i := longest - 1; i < n; i++ {
		if closes[i] > mid[i] && short[i] > mid[i] && mid[i] > long[i] {
			count++
		} else {
			count = 0
		}
		out[i] = count
	}
	return out
}

func maxInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
