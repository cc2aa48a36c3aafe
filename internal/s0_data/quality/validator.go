package quality

import (
	"fmt"
	"time"

	"github.com/wonny/rsscreen/internal/contracts"
)

// Config holds quality gate thresholds (0~1)
type Config struct {
	MinLoadedCoverage float64 `yaml:"min_loaded_coverage"` // 로딩 성공 비율
	MinFreshCoverage  float64 `yaml:"min_fresh_coverage"`  // as-of 당일 bar 보유 비율
	MinHistoryBars    int     `yaml:"min_history_bars"`    // history 커버리지 기준 bar 수
}

// DefaultConfig returns default thresholds
func DefaultConfig() Config {
	return Config{
		MinLoadedCoverage: 0.95,
		MinFreshCoverage:  0.90,
		MinHistoryBars:    30,
	}
}

// Snapshot summarizes the quality of one loaded universe
type Snapshot struct {
	Date         time.Time          `json:"date"`
	TotalTickers int                `json:"total_tickers"`
	ValidTickers int                `json:"valid_tickers"`
	Coverage     map[string]float64 `json:"coverage"`
	QualityScore float64            `json:"quality_score"`
	Passed       bool               `json:"passed"`
	Reasons      []string           `json:"reasons,omitempty"`
}

// QualityGate validates loaded series before screening
type QualityGate struct {
	config Config
}

// NewQualityGate creates a new QualityGate instance
func NewQualityGate(config Config) *QualityGate {
	return &QualityGate{config: config}
}

// Check validates data coverage for the as-of date
// ⭐ SSOT: S0 → S1 품질 검증
func (g *QualityGate) Check(series []contracts.Series, failed map[string]string, asOf time.Time) *Snapshot {
	asOf = contracts.DateOf(asOf)
	total := len(series) + len(failed)

	snapshot := &Snapshot{
		Date:         asOf,
		TotalTickers: total,
		Coverage:     make(map[string]float64),
	}
	if total == 0 {
		snapshot.Reasons = append(snapshot.Reasons, "empty universe")
		return snapshot
	}

	fresh, history := 0, 0
	for _, s := range series {
		last, ok := s.UpTo(asOf).Last()
		if ok && last.Date.Equal(asOf) {
			fresh++
		}
		if s.UpTo(asOf).Len() >= g.config.MinHistoryBars {
			history++
		}
	}

	snapshot.Coverage["loaded"] = float64(len(series)) / float64(total)
	snapshot.Coverage["fresh"] = float64(fresh) / float64(total)
	snapshot.Coverage["history"] = float64(history) / float64(total)
	snapshot.ValidTickers = history
	snapshot.QualityScore = g.calculateScore(snapshot.Coverage)

	if c := snapshot.Coverage["loaded"]; c < g.config.MinLoadedCoverage {
		snapshot.Reasons = append(snapshot.Reasons,
			fmt.Sprintf("loaded coverage %.3f < %.3f", c, g.config.MinLoadedCoverage))
	}
	if c := snapshot.Coverage["fresh"]; c < g.config.MinFreshCoverage {
		snapshot.Reasons = append(snapshot.Reasons,
			fmt.Sprintf("fresh coverage %.3f < %.3f", c, g.config.MinFreshCoverage))
	}
	snapshot.Passed = len(snapshot.Reasons) == 0

	return snapshot
}

// calculateScore calculates overall quality score using weighted average
func (g *QualityGate) calculateScore(coverage map[string]float64) float64 {
	// 가중치 (합계 = 1.0)
	weights := map[string]float64{
		"loaded":  0.40,
		"fresh":   0.40, // 휴장일/상장폐지 후보
		"history": 0.20,
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}

	return score
}
