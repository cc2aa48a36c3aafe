package selection

import (
	"fmt"
	"sort"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/logger"
)

// BenchmarkPolicy decides how the benchmark's own ticker is reported
type BenchmarkPolicy string

const (
	// BenchmarkReference reports the benchmark with a fixed percentile of 100
	BenchmarkReference BenchmarkPolicy = "reference"

	// BenchmarkExclude drops the benchmark from the result entirely
	BenchmarkExclude BenchmarkPolicy = "exclude"
)

// RankerConfig defines percentile ranking options
type RankerConfig struct {
	BenchmarkTicker string
	BenchmarkPolicy BenchmarkPolicy
}

// Ranker converts raw RS scores to 1~99 percentiles
// ⭐ SSOT: 백분위 계산은 여기서만
type Ranker struct {
	config RankerConfig
	logger *logger.Logger
}

// NewRanker creates a new ranker
func NewRanker(config RankerConfig, logger *logger.Logger) *Ranker {
	if config.BenchmarkPolicy == "" {
		config.BenchmarkPolicy = BenchmarkReference
	}
	return &Ranker{
		config: config,
		logger: logger,
	}
}

// Rank assigns percentiles over eligible scores only.
//
// Scores are sorted ascending by raw value. Tied raw values share the
// average of their ordinal ranks, so equal scores always get the same
// percentile. percentile = clamp(ceil(rank / N * 99), 1, 99).
//
// Ineligible scores come back UNRANKED with percentile 0. The benchmark
// ticker never competes for a slot. ErrEmptyPopulation is returned when
// no eligible score remains.
func (r *Ranker) Rank(scores []contracts.RSScore) ([]contracts.RSScore, error) {
	out := make([]contracts.RSScore, 0, len(scores))
	population := make([]int, 0, len(scores)) // index into out

	for _, s := range scores {
		s.Percentile = 0
		s.Status = contracts.RankStatusUnranked

		if r.isBenchmark(s.Ticker) {
			if r.config.BenchmarkPolicy == BenchmarkExclude {
				continue
			}
			s.Percentile = contracts.ReferencePercentile
			s.Status = contracts.RankStatusReference
			out = append(out, s)
			continue
		}

		out = append(out, s)
		if s.Eligible {
			population = append(population, len(out)-1)
		}
	}

	n := len(population)
	if n == 0 {
		return nil, fmt.Errorf("rank %d scores: %w", len(scores), contracts.ErrEmptyPopulation)
	}

	// 오름차순, 동점은 티커순 (결정적 순서)
	sort.SliceStable(population, func(i, j int) bool {
		a, b := out[population[i]], out[population[j]]
		if a.Raw != b.Raw {
			return a.Raw < b.Raw
		}
		return a.Ticker < b.Ticker
	})

	for first := 0; first < n; {
		last := first
		for last+1 < n && out[population[last+1]].Raw == out[population[first]].Raw {
			last++
		}

		p := percentileOf(first+1, last+1, n)
		for k := first; k <= last; k++ {
			idx := population[k]
			out[idx].Percentile = p
			out[idx].Status = contracts.RankStatusRanked
		}
		first = last + 1
	}

	if r.logger != nil {
		r.logger.WithFields(map[string]interface{}{
			"input":      len(scores),
			"population": n,
			"unranked":   len(out) - n,
		}).Debug("Percentile ranking completed")
	}

	return out, nil
}

// isBenchmark reports whether the ticker is the configured benchmark
func (r *Ranker) isBenchmark(ticker string) bool {
	return r.config.BenchmarkTicker != "" && ticker == r.config.BenchmarkTicker
}

// percentileOf maps the 1-based ordinal range [firstRank, lastRank] of a tie
// group in a population of n to ceil(avg_rank / n * 99) clamped to [1, 99].
// 정수 연산: avg_rank = (first+last)/2 → ceil((first+last)*99 / 2n)
func percentileOf(firstRank, lastRank, n int) int {
	num := (firstRank + lastRank) * 99
	den := 2 * n
	p := (num + den - 1) / den
	if p < 1 {
		return 1
	}
	if p > 99 {
		return 99
	}
	return p
}
