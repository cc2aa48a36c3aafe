package strategyconfig

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/internal/s1_universe"
	"github.com/wonny/rsscreen/pkg/logger"
)

const samplePath = "../../config/screen.yaml"

const minimalYAML = `
meta:
  strategy_id: test
benchmark:
  ticker: SPY
rs:
  lookbacks_days: [63, 126, 189, 252]
  weights: [0.4, 0.2, 0.2, 0.2]
  min_bars: 30
universe:
  source: file
  file: tickers.txt
data:
  provider: yahoo
  history_days: 400
variants:
  breakout:
    min_percentile: 90
    indicators:
      dollar_volume_window: 10
      atr_window: 20
      ma_windows: [10, 20, 50, 200]
      range_window: 5
      flow_window: 20
    criteria:
      min_avg_dollar_volume: 100000000
      atr_pct_range: {min: 1, max: 0}
      trend_predicates: ["close > ma_50", "ma_50 > ma_200"]
      proximity_max_pct: 10
`

func TestLoad(t *testing.T) {
	cfg, yamlData, err := Load(samplePath)
	require.NoError(t, err)
	assert.NotEmpty(t, yamlData)

	assert.Equal(t, "us_rs_screen", cfg.Meta.StrategyID)
	assert.Equal(t, []string{"bounce", "breakout"}, cfg.VariantNames())
	assert.Equal(t, 30, cfg.RS.MinBars)

	// 해시 생성
	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte(minimalYAML + "\nunknown_section: 1\n"))
	assert.Error(t, err)
}

func TestBuildCriteria(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	v, err := cfg.Variant("breakout")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"avg_dollar_volume >= 100000000",
		"atr_pct >= 1",
		"close > ma_50",
		"ma_50 > ma_200",
		"dist_high_pct <= 10",
		"dist_low_pct <= 10",
	}, v.RuleTexts())

	criteria, err := v.BuildCriteria()
	require.NoError(t, err)
	assert.Equal(t, 90, criteria.MinPercentile)
	assert.Len(t, criteria.Predicates, 6)

	_, err = cfg.Variant("missing")
	assert.Error(t, err)
}

func TestConfigMapping(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	rs := cfg.RSConfig()
	assert.Equal(t, []int{63, 126, 189, 252}, rs.LookbacksDays)
	assert.Equal(t, 30, rs.MinBars)

	ranker := cfg.RankerConfig()
	assert.Equal(t, "SPY", ranker.BenchmarkTicker)

	ind := cfg.Variants["breakout"].IndicatorConfig()
	assert.Equal(t, 20, ind.ATRWindow)
	assert.Nil(t, ind.Streak)

	u := cfg.UniverseConfig()
	assert.Equal(t, s1_universe.SourceFile, u.Source)
	assert.Equal(t, "tickers.txt", u.File)
	assert.Equal(t, "SPY", u.Benchmark)
	assert.False(t, u.ExcludeBenchmark)
}

func TestNewPipeline(t *testing.T) {
	cfg, _, err := Load(samplePath)
	require.NoError(t, err)

	for _, name := range cfg.VariantNames() {
		p, err := cfg.NewPipeline(name, 4, logger.NewNop())
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}

	_, err = cfg.NewPipeline("missing", 4, logger.NewNop())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		field   string
		wantErr error
	}{
		{"weights sum", "weights: [0.4, 0.2, 0.2, 0.2]", "weights: [0.4, 0.2, 0.2, 0.3]", "rs.weights", nil},
		{"weights length", "weights: [0.4, 0.2, 0.2, 0.2]", "weights: [0.5, 0.5]", "rs", nil},
		{"min_percentile range", "min_percentile: 90", "min_percentile: 100", "variants[breakout].min_percentile", nil},
		{"unknown indicator", `"ma_50 > ma_200"`, `"ma_50 > ma_13"`, "variants.breakout.rules", contracts.ErrUnknownIndicator},
		{"bad rule", `"ma_50 > ma_200"`, `"ma_50 >> ma_200"`, "variants.breakout.rules", nil},
		{"universe file", "file: tickers.txt", "file: \"\"", "universe.file", nil},
		{"atr range", "{min: 1, max: 0}", "{min: 5, max: 2}", "variants.breakout.criteria.atr_pct_range", nil},
		{"provider", "provider: yahoo", "provider: ftp", "data.provider", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yml := strings.Replace(minimalYAML, tt.from, tt.to, 1)
			require.NotEqual(t, minimalYAML, yml, "replacement did not apply")

			_, err := Parse([]byte(yml))
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
			if tt.wantErr != nil {
				assert.Contains(t, verr.Message, tt.wantErr.Error())
			}
		})
	}
}

func TestVariantHash(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	before, err := VariantHash(cfg, "breakout")
	require.NoError(t, err)

	// 다른 섹션 변경은 variant 해시에 영향 없음
	cfg.Data.HistoryDays = 500
	after, err := VariantHash(cfg, "breakout")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	cfg.RS.MinBars = 20
	changed, err := VariantHash(cfg, "breakout")
	require.NoError(t, err)
	assert.NotEqual(t, before, changed)

	snap, err := NewRunSnapshot(cfg, []byte(minimalYAML), "breakout")
	require.NoError(t, err)
	assert.Equal(t, changed, snap.ConfigHash)
	assert.Equal(t, "test", snap.StrategyID)
}

func TestWarn(t *testing.T) {
	cfg, err := Parse([]byte(strings.Replace(minimalYAML, "min_bars: 30", "min_bars: 20", 1)))
	require.NoError(t, err)

	codes := make([]string, 0)
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, "SHORT_MIN_BARS")
	assert.NotContains(t, codes, "WIDE_GATE")
}
