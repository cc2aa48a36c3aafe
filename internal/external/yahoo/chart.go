package yahoo

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/rsscreen/internal/contracts"
)

// chartResponse mirrors /v8/finance/chart. Every quote array is nullable per element.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// toSeries converts the columnar payload into bars.
// Rows with a missing OHLC value (halts, holidays the API still lists) are skipped.
func (r *chartResult) toSeries(ticker string, adjusted bool, from, to time.Time) (contracts.Series, error) {
	if len(r.Indicators.Quote) == 0 {
		return contracts.NewSeries(ticker, nil)
	}
	q := r.Indicators.Quote[0]

	var adj []*float64
	if adjusted && len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]contracts.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		open, okO := at(q.Open, i)
		high, okH := at(q.High, i)
		low, okL := at(q.Low, i)
		closePx, okC := at(q.Close, i)
		if !okO || !okH || !okL || !okC {
			continue
		}
		volume, _ := at(q.Volume, i)

		// 거래소 현지 날짜 기준
		date := contracts.DateOf(time.Unix(ts+r.Meta.GMTOffset, 0))
		if date.Before(from) || date.After(to) {
			continue
		}

		if a, ok := at(adj, i); ok && closePx > 0 {
			ratio := a / closePx
			open, high, low, closePx = open*ratio, high*ratio, low*ratio, a
		}

		bars = append(bars, contracts.Bar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: int64(math.Round(volume)),
		})
	}

	series, err := contracts.NewSeries(ticker, bars)
	if err != nil {
		return contracts.Series{}, fmt.Errorf("invalid chart payload: %w", err)
	}
	return series, nil
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	v := *values[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
