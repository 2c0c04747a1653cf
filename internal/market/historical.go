package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"main/pkg/exception"
)

// HistoricalCursor walks a finite series. The visible window is the
// prefix of the series up to the current bar.
type HistoricalCursor struct {
	series   *Series
	idx      int // bars consumed so far
	lookback int
	now      time.Time
}

// NewHistoricalCursor creates a cursor at the start of series.
func NewHistoricalCursor(series *Series) (*HistoricalCursor, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return &HistoricalCursor{series: series}, nil
}

// Advance consumes the next bar. Once the series is exhausted it returns
// false forever and makes no change.
func (c *HistoricalCursor) Advance(_ context.Context) bool {
	if c.idx >= c.series.Len() {
		return false
	}
	c.now = c.series.Timestamps[c.idx]
	c.idx++
	return true
}

// SetLookback fast-forwards the cursor to the period-th bar so the first
// consumer-visible bar already has a full window behind it.
func (c *HistoricalCursor) SetLookback(period int) {
	c.lookback = period
	for c.idx < period && c.Advance(context.Background()) {
	}
}

// SyncTo advances until now reaches or passes ts, emitting one quote per
// bar advanced. Running off the end of the series is the terminal
// condition, not an error.
func (c *HistoricalCursor) SyncTo(ts time.Time, onQuote QuoteFunc) error {
	for c.now.Before(ts) {
		if !c.Advance(context.Background()) {
			return nil
		}
		if onQuote != nil {
			closes, err := c.Closes()
			if err != nil {
				return err
			}
			onQuote(c.now, closes)
		}
	}
	return nil
}

// CloseOf returns the current bar's close for ticker.
func (c *HistoricalCursor) CloseOf(ticker string) (decimal.Decimal, error) {
	if c.idx == 0 {
		return decimal.Zero, exception.ErrNoBarYet
	}
	col := c.series.Column(ticker)
	if col < 0 {
		return decimal.Zero, exception.ErrUnknownTicker
	}
	return c.series.Close[c.idx-1][col], nil
}

// Closes returns the current bar's close for every ticker.
func (c *HistoricalCursor) Closes() (map[string]decimal.Decimal, error) {
	if c.idx == 0 {
		return nil, exception.ErrNoBarYet
	}
	row := c.series.Close[c.idx-1]
	out := make(map[string]decimal.Decimal, len(c.series.Tickers))
	for i, ticker := range c.series.Tickers {
		out[ticker] = row[i]
	}
	return out, nil
}

// CloseSeries returns the visible close prefix for ticker, oldest first.
func (c *HistoricalCursor) CloseSeries(ticker string) ([]decimal.Decimal, error) {
	col := c.series.Column(ticker)
	if col < 0 {
		return nil, exception.ErrUnknownTicker
	}
	out := make([]decimal.Decimal, 0, c.idx)
	for row := 0; row < c.idx; row++ {
		out = append(out, c.series.Close[row][col])
	}
	return out, nil
}

// Now returns the current bar's timestamp.
func (c *HistoricalCursor) Now() time.Time {
	return c.now
}

// Tickers lists the series tickers.
func (c *HistoricalCursor) Tickers() []string {
	return c.series.Tickers
}

// Remaining returns the number of unconsumed bars.
func (c *HistoricalCursor) Remaining() int {
	return c.series.Len() - c.idx
}
