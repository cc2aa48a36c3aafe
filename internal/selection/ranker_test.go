package selection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/logger"
)

func eligible(ticker string, raw float64) contracts.RSScore {
	return contracts.RSScore{Ticker: ticker, Raw: raw, Eligible: true}
}

func byTicker(scores []contracts.RSScore) map[string]contracts.RSScore {
	m := make(map[string]contracts.RSScore, len(scores))
	for _, s := range scores {
		m[s.Ticker] = s
	}
	return m
}

func TestRanker_UniformHundred(t *testing.T) {
	ranker := NewRanker(RankerConfig{}, logger.NewNop())

	scores := make([]contracts.RSScore, 0, 100)
	for i := 100; i >= 1; i-- {
		scores = append(scores, eligible(fmt.Sprintf("T%03d", i), float64(i)))
	}

	ranked, err := ranker.Rank(scores)
	require.NoError(t, err)

	m := byTicker(ranked)
	assert.Equal(t, 1, m["T001"].Percentile)
	assert.Equal(t, 99, m["T100"].Percentile)
	assert.Equal(t, 50, m["T050"].Percentile) // ceil(50/100*99) = ceil(49.5)
}

func TestRanker_MonotonicAndInRange(t *testing.T) {
	ranker := NewRanker(RankerConfig{}, logger.NewNop())

	raws := []float64{88.1, 120, 120, 95.5, 310, 42, 101, 101, 101, 77, 150.25, 0.5, 99}
	scores := make([]contracts.RSScore, len(raws))
	for i, raw := range raws {
		scores[i] = eligible(fmt.Sprintf("X%02d", i), raw)
	}

	ranked, err := ranker.Rank(scores)
	require.NoError(t, err)
	require.Len(t, ranked, len(raws))

	for _, a := range ranked {
		assert.GreaterOrEqual(t, a.Percentile, 1)
		assert.LessOrEqual(t, a.Percentile, 99)
		for _, b := range ranked {
			if a.Raw > b.Raw {
				assert.GreaterOrEqual(t, a.Percentile, b.Percentile, "%s(%v) vs %s(%v)", a.Ticker, a.Raw, b.Ticker, b.Raw)
			}
			if a.Raw == b.Raw {
				assert.Equal(t, a.Percentile, b.Percentile, "ties share a percentile")
			}
		}
	}
}

func TestRanker_IneligibleExcludedFromPopulation(t *testing.T) {
	ranker := NewRanker(RankerConfig{}, logger.NewNop())

	ranked, err := ranker.Rank([]contracts.RSScore{
		eligible("LOW", 90),
		{Ticker: "NEW", Bars: 29},
		eligible("HIGH", 110),
	})
	require.NoError(t, err)

	m := byTicker(ranked)
	assert.Equal(t, contracts.RankStatusUnranked, m["NEW"].Status)
	assert.Equal(t, 0, m["NEW"].Percentile)

	// population of 2: ceil(1/2*99)=50, ceil(2/2*99)=99
	assert.Equal(t, 50, m["LOW"].Percentile)
	assert.Equal(t, 99, m["HIGH"].Percentile)
	assert.True(t, m["HIGH"].IsRanked())
}

func TestRanker_EmptyPopulation(t *testing.T) {
	ranker := NewRanker(RankerConfig{}, logger.NewNop())

	_, err := ranker.Rank([]contracts.RSScore{{Ticker: "A"}, {Ticker: "B"}})
	assert.ErrorIs(t, err, contracts.ErrEmptyPopulation)

	_, err = ranker.Rank(nil)
	assert.ErrorIs(t, err, contracts.ErrEmptyPopulation)
}

func TestRanker_BenchmarkPolicy(t *testing.T) {
	scores := []contracts.RSScore{
		eligible("SPY", 100),
		eligible("AAA", 80),
		eligible("BBB", 120),
	}

	t.Run("reference", func(t *testing.T) {
		ranker := NewRanker(RankerConfig{BenchmarkTicker: "SPY"}, logger.NewNop())
		ranked, err := ranker.Rank(scores)
		require.NoError(t, err)

		m := byTicker(ranked)
		assert.Equal(t, contracts.ReferencePercentile, m["SPY"].Percentile)
		assert.Equal(t, contracts.RankStatusReference, m["SPY"].Status)
		assert.False(t, m["SPY"].IsRanked())
		// benchmark does not consume a slot
		assert.Equal(t, 50, m["AAA"].Percentile)
		assert.Equal(t, 99, m["BBB"].Percentile)
	})

	t.Run("exclude", func(t *testing.T) {
		ranker := NewRanker(RankerConfig{BenchmarkTicker: "SPY", BenchmarkPolicy: BenchmarkExclude}, logger.NewNop())
		ranked, err := ranker.Rank(scores)
		require.NoError(t, err)

		_, found := byTicker(ranked)["SPY"]
		assert.False(t, found)
		assert.Len(t, ranked, 2)
	})
}

func TestPercentileOf(t *testing.T) {
	tests := []struct {
		first, last, n int
		want           int
	}{
		{1, 1, 1, 99},
		{1, 1, 100, 1},
		{100, 100, 100, 99},
		{1, 1, 1000, 1},
		{2, 3, 4, 62}, // avg 2.5 → ceil(61.875)
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%d_of_%d", tt.first, tt.last, tt.n), func(t *testing.T) {
			assert.Equal(t, tt.want, percentileOf(tt.first, tt.last, tt.n))
		})
	}
}
