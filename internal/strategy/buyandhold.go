package strategy

import (
	"github.com/shopspring/decimal"

	"main/internal/market"
)

// BuyAndHold allocates equal positive weight to every ticker on the first
// bar and then holds: subsequent signals repeat the same weights, which
// sizes to (near) zero deltas.
type BuyAndHold struct{}

// NewBuyAndHold creates the strategy.
func NewBuyAndHold() *BuyAndHold {
	return &BuyAndHold{}
}

func (s *BuyAndHold) Name() string {
	return "buy_and_hold"
}

func (s *BuyAndHold) Lookback() int {
	return 1
}

func (s *BuyAndHold) Alphas(cursor market.Cursor) (map[string]decimal.Decimal, error) {
	tickers := cursor.Tickers()
	out := make(map[string]decimal.Decimal, len(tickers))
	weight := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(tickers))))
	for _, ticker := range tickers {
		out[ticker] = weight
	}
	return out, nil
}
