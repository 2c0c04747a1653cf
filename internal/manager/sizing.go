package manager

import (
	"sort"

	"github.com/shopspring/decimal"

	"main/internal/ledger"
	"main/internal/market"
	"main/internal/schema"
	"main/pkg/exception"
)

// BuildOrder converts one signal into an order batch against the
// account's current equity and the cursor's current closes.
//
// unitCapital = equity / Σ|alpha|; each ticker targets
// alpha × unitCapital / close, truncated toward zero to whole shares, and
// the order leg is the delta against the held position. Sell legs are
// emitted strictly before buy legs so their proceeds fund the buys under
// same-day settlement.
func BuildOrder(record *ledger.TradeRecord, cursor market.Cursor, sig schema.Signal) (schema.Order, error) {
	if record == nil || cursor == nil {
		return schema.Order{}, exception.ErrNilInstance
	}

	sumAbs := decimal.Zero
	for _, alpha := range sig.Alphas {
		sumAbs = sumAbs.Add(alpha.Abs())
	}
	if sumAbs.IsZero() {
		return schema.Order{}, exception.ErrZeroAlpha
	}

	equity, err := record.Equity()
	if err != nil {
		return schema.Order{}, err
	}
	unitCapital := equity.Div(sumAbs)

	tickers := make([]string, 0, len(sig.Alphas))
	for ticker := range sig.Alphas {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	var sells, buys []schema.OrderLeg
	for _, ticker := range tickers {
		close, err := cursor.CloseOf(ticker)
		if err != nil {
			return schema.Order{}, err
		}
		if close.IsZero() {
			return schema.Order{}, exception.ErrDataUnavailable
		}
		target := sig.Alphas[ticker].Mul(unitCapital).Div(close).IntPart()
		delta := target - record.Position(ticker)
		switch {
		case delta < 0:
			sells = append(sells, schema.OrderLeg{Ticker: ticker, Kind: schema.OrderKindMarket, Qty: delta})
		case delta > 0:
			buys = append(buys, schema.OrderLeg{Ticker: ticker, Kind: schema.OrderKindMarket, Qty: delta})
		}
	}

	return schema.Order{
		Session: sig.Session,
		Ts:      sig.Ts,
		Legs:    append(sells, buys...),
	}, nil
}
