package strategy

import (
	"sort"

	"github.com/shopspring/decimal"

	"main/internal/market"
)

// Momentum ranks tickers by trailing return over the lookback window and
// splits weight equally across the top N. Tickers with incomplete
// history or a non-positive trailing return get zero weight.
type Momentum struct {
	lookback int
	topN     int
}

// NewMomentum creates a momentum strategy ranking over lookback bars and
// holding the top n tickers.
func NewMomentum(lookback, n int) *Momentum {
	if lookback < 2 {
		lookback = 2
	}
	if n < 1 {
		n = 1
	}
	return &Momentum{lookback: lookback, topN: n}
}

func (s *Momentum) Name() string {
	return "momentum"
}

func (s *Momentum) Lookback() int {
	return s.lookback
}

func (s *Momentum) Alphas(cursor market.Cursor) (map[string]decimal.Decimal, error) {
	type ranked struct {
		ticker string
		ret    decimal.Decimal
	}

	tickers := cursor.Tickers()
	candidates := make([]ranked, 0, len(tickers))
	for _, ticker := range tickers {
		closes, err := cursor.CloseSeries(ticker)
		if err != nil {
			return nil, err
		}
		if len(closes) < s.lookback {
			continue
		}
		first := closes[len(closes)-s.lookback]
		last := closes[len(closes)-1]
		if first.IsZero() {
			continue
		}
		ret := last.Sub(first).Div(first)
		if ret.IsPositive() {
			candidates = append(candidates, ranked{ticker: ticker, ret: ret})
		}
	}

	out := make(map[string]decimal.Decimal, len(tickers))
	for _, ticker := range tickers {
		out[ticker] = decimal.Zero
	}
	if len(candidates) == 0 {
		return out, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ret.Equal(candidates[j].ret) {
			return candidates[i].ticker < candidates[j].ticker
		}
		return candidates[i].ret.GreaterThan(candidates[j].ret)
	})

	n := s.topN
	if n > len(candidates) {
		n = len(candidates)
	}
	weight := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(n)))
	for _, c := range candidates[:n] {
		out[c.ticker] = weight
	}
	return out, nil
}
