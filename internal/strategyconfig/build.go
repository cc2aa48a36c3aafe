package strategyconfig

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/wonny/rsscreen/internal/s1_universe"
	"github.com/wonny/rsscreen/internal/s2_signals"
	"github.com/wonny/rsscreen/internal/selection"
	"github.com/wonny/rsscreen/pkg/logger"
)

// VariantNames returns variant names in sorted order
func (c *Config) VariantNames() []string {
	names := make([]string, 0, len(c.Variants))
	for name := range c.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Variant returns a variant by name
func (c *Config) Variant(name string) (Variant, error) {
	v, ok := c.Variants[name]
	if !ok {
		return Variant{}, fmt.Errorf("unknown variant %q (available: %v)", name, c.VariantNames())
	}
	return v, nil
}

// RSConfig maps the rs section to the scorer configuration
func (c *Config) RSConfig() s2_signals.RSConfig {
	return s2_signals.RSConfig{
		LookbacksDays: append([]int(nil), c.RS.LookbacksDays...),
		Weights:       append([]float64(nil), c.RS.Weights...),
		MinBars:       c.RS.MinBars,
	}
}

// RankerConfig maps the benchmark section to the ranker configuration
func (c *Config) RankerConfig() selection.RankerConfig {
	return selection.RankerConfig{
		BenchmarkTicker: c.Benchmark.Ticker,
		BenchmarkPolicy: selection.BenchmarkPolicy(c.Benchmark.Policy),
	}
}

// UniverseConfig maps the universe section to the S1 builder configuration
func (c *Config) UniverseConfig() s1_universe.Config {
	return s1_universe.Config{
		Source:           s1_universe.Source(c.Universe.Source),
		File:             c.Universe.File,
		Indexes:          append([]string(nil), c.Universe.Indexes...),
		MaxTickers:       c.Universe.MaxTickers,
		Benchmark:        c.Benchmark.Ticker,
		ExcludeBenchmark: selection.BenchmarkPolicy(c.Benchmark.Policy) == selection.BenchmarkExclude,
	}
}

// NewPipeline wires scorer, ranker, engine and screener for one variant
func (c *Config) NewPipeline(name string, workers int, log *logger.Logger) (*selection.Pipeline, error) {
	v, err := c.Variant(name)
	if err != nil {
		return nil, err
	}

	scorer, err := s2_signals.NewRSCalculator(c.RSConfig())
	if err != nil {
		return nil, fmt.Errorf("rs scorer: %w", err)
	}
	engine, err := s2_signals.NewIndicatorEngine(v.IndicatorConfig())
	if err != nil {
		return nil, fmt.Errorf("variant %s indicators: %w", name, err)
	}
	criteria, err := v.BuildCriteria()
	if err != nil {
		return nil, fmt.Errorf("variant %s criteria: %w", name, err)
	}

	return selection.NewPipeline(
		scorer,
		selection.NewRanker(c.RankerConfig(), log),
		engine,
		selection.NewScreener(criteria, log),
		selection.PipelineConfig{Workers: workers},
		log,
	)
}

// IndicatorConfig maps the indicators section to the engine configuration
func (v Variant) IndicatorConfig() s2_signals.IndicatorConfig {
	ind := v.Indicators
	cfg := s2_signals.IndicatorConfig{
		DollarVolumeWindow: ind.DollarVolumeWindow,
		ATRWindow:          ind.ATRWindow,
		MAWindows:          append([]int(nil), ind.MAWindows...),
		RangeWindow:        ind.RangeWindow,
		FlowWindow:         ind.FlowWindow,
		MidHighWindow:      ind.MidHighWindow,
		ExtremeHighWindow:  ind.ExtremeHighWindow,
	}
	if ind.Streak != nil {
		cfg.Streak = &s2_signals.StreakConfig{
			Short: ind.Streak.Short,
			Mid:   ind.Streak.Mid,
			Long:  ind.Streak.Long,
		}
	}
	return cfg
}

// RuleTexts expands named criteria into rule text, followed by the free-form rules.
//
//	min_avg_dollar_volume: X  → avg_dollar_volume >= X
//	atr_pct_range: {min, max} → atr_pct >= min, atr_pct <= max (max 0 = 상한 없음)
//	trend_predicates          → 그대로
//	proximity_max_pct: X      → dist_high_pct <= X, dist_low_pct <= X
func (v Variant) RuleTexts() []string {
	var rules []string
	c := v.Criteria

	if c.MinAvgDollarVolume > 0 {
		rules = append(rules, s2_signals.IndAvgDollarVolume+" >= "+formatFloat(c.MinAvgDollarVolume))
	}
	if r := c.ATRPctRange; r != nil {
		if r.Min > 0 {
			rules = append(rules, s2_signals.IndATRPct+" >= "+formatFloat(r.Min))
		}
		if r.Max > 0 {
			rules = append(rules, s2_signals.IndATRPct+" <= "+formatFloat(r.Max))
		}
	}
	rules = append(rules, c.TrendPredicates...)
	if c.ProximityMaxPct != nil {
		rules = append(rules,
			s2_signals.IndDistHighPct+" <= "+formatFloat(*c.ProximityMaxPct),
			s2_signals.IndDistLowPct+" <= "+formatFloat(*c.ProximityMaxPct),
		)
	}
	return append(rules, v.Rules...)
}

// BuildCriteria parses the variant rules into ScreenCriteria
// ⭐ SSOT: YAML → ScreenCriteria 변환은 여기서만
func (v Variant) BuildCriteria() (selection.ScreenCriteria, error) {
	texts := v.RuleTexts()
	predicates := make([]selection.Predicate, 0, len(texts))
	for _, text := range texts {
		p, err := selection.ParsePredicate(text)
		if err != nil {
			return selection.ScreenCriteria{}, err
		}
		predicates = append(predicates, p)
	}

	return selection.ScreenCriteria{
		MinPercentile: v.MinPercentile,
		Predicates:    predicates,
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
