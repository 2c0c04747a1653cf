package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteFunc receives the closes of one bar while a cursor catches up to a
// target timestamp. The coordinator uses it to mark accounts to market.
type QuoteFunc func(ts time.Time, closes map[string]decimal.Decimal)

// Cursor is the uniform stepping interface over heterogeneous data
// sources. A historical cursor walks a finite series; a live cursor
// blocks until the next aggregated bar closes.
type Cursor interface {
	// Advance moves to the next bar. It returns false once the source is
	// exhausted (historical) or the owning agent shuts down (live); no
	// state changes on a false return.
	Advance(ctx context.Context) bool

	// SetLookback declares how many trailing bars consumers need. Must be
	// called before the first Advance that relies on it. The historical
	// variant fast-forwards to the lookback-th bar.
	SetLookback(period int)

	// SyncTo advances until Now reaches or passes ts, calling onQuote once
	// per bar advanced. Live cursors advance independently and ignore it.
	SyncTo(ts time.Time, onQuote QuoteFunc) error

	// CloseOf returns the last known close for ticker. A ticker outside
	// the cursor's set fails loudly, as does calling before the first
	// successful Advance.
	CloseOf(ticker string) (decimal.Decimal, error)

	// Closes returns the last known close of every ticker.
	Closes() (map[string]decimal.Decimal, error)

	// CloseSeries returns the visible close history for ticker, oldest
	// first. Live cursors cap it at the lookback window.
	CloseSeries(ticker string) ([]decimal.Decimal, error)

	// Now is the timestamp of the current bar, monotonically
	// non-decreasing across successive advances.
	Now() time.Time

	// Tickers lists the cursor's tickers in declared order.
	Tickers() []string
}
