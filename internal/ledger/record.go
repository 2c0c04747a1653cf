package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
	"main/pkg/exception"
)

// AssetValue is one ticker's mark-to-market entry inside a snapshot.
type AssetValue struct {
	Qty   int64           `json:"qty"`
	Price decimal.Decimal `json:"price"`
	MTM   decimal.Decimal `json:"mtm"`
}

// Snapshot is a point-in-time valuation of the account. Snapshots are
// append-only and ordered by non-decreasing timestamp.
type Snapshot struct {
	Ts         time.Time             `json:"ts"`
	Assets     map[string]AssetValue `json:"assets"`
	Commission decimal.Decimal       `json:"commission"`
	Cash       decimal.Decimal       `json:"cash"`
	Equity     decimal.Decimal       `json:"equity"`
}

// TradeRecord is the cash/position/commission bookkeeping of one account,
// plus its snapshot history. The equity of the last snapshot is the
// usable equity for the next sizing computation.
type TradeRecord struct {
	Cash        decimal.Decimal            `json:"cash"`
	Tickers     []string                   `json:"tickers"`
	Positions   map[string]int64           `json:"positions"`
	Commissions map[string]decimal.Decimal `json:"commissions"`
	Snapshots   []Snapshot                 `json:"snapshots"`
}

// New creates a record holding capital in cash and takes the zero
// snapshot, so Equity is defined before the first fill.
func New(ts time.Time, capital decimal.Decimal, tickers []string) *TradeRecord {
	r := &TradeRecord{
		Cash:        capital,
		Tickers:     tickers,
		Positions:   make(map[string]int64, len(tickers)),
		Commissions: make(map[string]decimal.Decimal, len(tickers)),
	}
	zero := make(map[string]decimal.Decimal, len(tickers))
	for _, ticker := range tickers {
		r.Positions[ticker] = 0
		r.Commissions[ticker] = decimal.Zero
		zero[ticker] = decimal.Zero
	}
	// Cannot regress: the history is empty.
	_ = r.TakeSnapshot(ts, zero)
	return r
}

// Apply books one executed leg: cash -= qty*price, position += qty,
// commission accumulates. The cash check happens before any mutation, so
// a rejected leg leaves the record untouched.
func (r *TradeRecord) Apply(ticker string, qty int64, price, commission decimal.Decimal) error {
	if _, ok := r.Positions[ticker]; !ok {
		return exception.ErrUnknownPosition
	}
	delta := price.Mul(decimal.NewFromInt(qty))
	if delta.GreaterThan(r.Cash) {
		return exception.ErrCashNegative
	}
	r.Cash = r.Cash.Sub(delta)
	r.Positions[ticker] += qty
	r.Commissions[ticker] = r.Commissions[ticker].Add(commission)
	return nil
}

// ApplyFill books a fill batch leg by leg, in order: sell legs release
// the cash the buy legs behind them consume.
func (r *TradeRecord) ApplyFill(fill schema.Fill) error {
	for _, leg := range fill.Legs {
		if err := r.Apply(leg.Ticker, leg.Qty, leg.Price, leg.Commission); err != nil {
			return err
		}
	}
	return nil
}

// Position returns the signed quantity held for ticker.
func (r *TradeRecord) Position(ticker string) int64 {
	return r.Positions[ticker]
}

// TakeSnapshot marks every position to market at the given closes and
// appends the valuation. Timestamps must not regress.
func (r *TradeRecord) TakeSnapshot(ts time.Time, closes map[string]decimal.Decimal) error {
	if n := len(r.Snapshots); n > 0 && ts.Before(r.Snapshots[n-1].Ts) {
		return exception.ErrSnapshotOutOfOrder
	}

	assets := make(map[string]AssetValue, len(r.Tickers))
	total := decimal.Zero
	for _, ticker := range r.Tickers {
		price := closes[ticker]
		qty := r.Positions[ticker]
		mtm := price.Mul(decimal.NewFromInt(qty))
		assets[ticker] = AssetValue{Qty: qty, Price: price, MTM: mtm}
		total = total.Add(mtm)
	}

	commission := decimal.Zero
	for _, c := range r.Commissions {
		commission = commission.Add(c)
	}
	cash := r.Cash.Sub(commission)

	r.Snapshots = append(r.Snapshots, Snapshot{
		Ts:         ts,
		Assets:     assets,
		Commission: commission,
		Cash:       cash,
		Equity:     total.Add(cash),
	})
	return nil
}

// Equity returns the total equity of the most recent snapshot.
func (r *TradeRecord) Equity() (decimal.Decimal, error) {
	if len(r.Snapshots) == 0 {
		return decimal.Zero, exception.ErrNoSnapshot
	}
	return r.Snapshots[len(r.Snapshots)-1].Equity, nil
}

// LastTs returns the timestamp of the most recent snapshot.
func (r *TradeRecord) LastTs() time.Time {
	if len(r.Snapshots) == 0 {
		return time.Time{}
	}
	return r.Snapshots[len(r.Snapshots)-1].Ts
}
