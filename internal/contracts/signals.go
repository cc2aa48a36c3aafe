package contracts

import "time"

// RankStatus describes how a score participates in the percentile population
type RankStatus string

const (
	// RankStatusRanked valid raw score with a computed percentile (1~99)
	RankStatusRanked RankStatus = "RANKED"

	// RankStatusUnranked ineligible raw score, no percentile
	RankStatusUnranked RankStatus = "UNRANKED"

	// RankStatusReference benchmark ticker, fixed percentile, never competes
	RankStatusReference RankStatus = "REFERENCE"
)

// ReferencePercentile is reported for the benchmark's own ticker
const ReferencePercentile = 100

// RSScore represents one ticker's relative strength result
// ⭐ SSOT: RS 점수/백분위 전달 구조체
type RSScore struct {
	Ticker     string     `json:"ticker"`
	Raw        float64    `json:"raw"`
	Eligible   bool       `json:"eligible"`
	Percentile int        `json:"percentile"`
	Status     RankStatus `json:"status"`
	Bars       int        `json:"bars"`
}

// IsRanked reports whether the score received a computed percentile
func (s RSScore) IsRanked() bool {
	return s.Status == RankStatusRanked
}

// IndicatorSnapshot holds every indicator value for one ticker at one bar
type IndicatorSnapshot struct {
	Ticker string             `json:"ticker"`
	Date   time.Time          `json:"date"`
	Values map[string]float64 `json:"values"`
}

// Get returns an indicator value by name
func (s *IndicatorSnapshot) Get(name string) (float64, bool) {
	v, ok := s.Values[name]
	return v, ok
}
