package market

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"main/pkg/exception"
)

const defaultLiveLookback = 5

// LiveCursor aggregates an unbounded tick stream into bars. A collector
// feeds ticks through AddTick from its own goroutine; Advance blocks
// until the next aggregation boundary fires, then rebuilds the bounded
// window, dropping the oldest row once the lookback length is reached.
type LiveCursor struct {
	tickers  []string
	interval time.Duration

	mu         sync.Mutex
	pending    map[string]*Bar
	rows       []liveRow
	lookback   int
	now        time.Time
	lastBucket time.Time

	ready     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

type liveRow struct {
	ts     time.Time
	closes []decimal.Decimal
}

// NewLiveCursor creates a live cursor for tickers with the given bar
// interval.
func NewLiveCursor(tickers []string, interval time.Duration) *LiveCursor {
	if interval <= 0 {
		interval = time.Minute
	}
	pending := make(map[string]*Bar, len(tickers))
	for _, ticker := range tickers {
		pending[ticker] = &Bar{}
	}
	return &LiveCursor{
		tickers:  tickers,
		interval: interval,
		pending:  pending,
		lookback: defaultLiveLookback,
		ready:    make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

// AddTick folds one tick into the pending bar of its ticker. A tick
// landing exactly on an aggregation boundary closes the bar including
// itself; the first tick past a boundary no tick landed on closes the
// previous bar without itself. Either way the next Advance unblocks.
// Ticks for tickers outside the cursor's set are dropped.
func (c *LiveCursor) AddTick(ticker string, ts time.Time, price decimal.Decimal) {
	c.mu.Lock()
	bar, ok := c.pending[ticker]
	if !ok {
		c.mu.Unlock()
		return
	}
	bucket := ts.Truncate(c.interval)
	closed := false
	switch {
	case ts.Equal(bucket):
		bar.Add(price)
		c.closeBar(ts)
		closed = true
	case !c.lastBucket.IsZero() && bucket.After(c.lastBucket):
		c.closeBar(c.lastBucket.Add(c.interval))
		closed = true
		bar.Add(price)
	default:
		bar.Add(price)
	}
	c.lastBucket = bucket
	c.mu.Unlock()

	if closed {
		select {
		case c.ready <- struct{}{}:
		default:
		}
	}
}

// closeBar snapshots every pending bar into one window row stamped ts.
// Callers hold mu.
func (c *LiveCursor) closeBar(ts time.Time) {
	closes := make([]decimal.Decimal, len(c.tickers))
	for i, ticker := range c.tickers {
		bar, _ := c.pending[ticker].Take()
		closes[i] = bar.Close
	}
	c.rows = append(c.rows, liveRow{ts: ts, closes: closes})
	if c.lookback > 0 && len(c.rows) > c.lookback {
		c.rows = c.rows[1:]
	}
	if ts.After(c.now) {
		c.now = ts
	}
}

// Advance blocks until the next bar closes. It returns false only on
// shutdown or context cancellation.
func (c *LiveCursor) Advance(ctx context.Context) bool {
	select {
	case <-c.closed:
		return false
	case <-ctx.Done():
		return false
	case <-c.ready:
		return true
	}
}

// SetLookback bounds the window length.
func (c *LiveCursor) SetLookback(period int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if period > 0 {
		c.lookback = period
	}
}

// SyncTo is a no-op: a live cursor advances with the feed, not with
// client-reported strategy time.
func (c *LiveCursor) SyncTo(_ time.Time, _ QuoteFunc) error {
	return nil
}

// CloseOf returns the latest bar's close for ticker.
func (c *LiveCursor) CloseOf(ticker string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rows) == 0 {
		return decimal.Zero, exception.ErrNoBarYet
	}
	for i, t := range c.tickers {
		if t == ticker {
			return c.rows[len(c.rows)-1].closes[i], nil
		}
	}
	return decimal.Zero, exception.ErrUnknownTicker
}

// Closes returns the latest bar's close for every ticker.
func (c *LiveCursor) Closes() (map[string]decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rows) == 0 {
		return nil, exception.ErrNoBarYet
	}
	last := c.rows[len(c.rows)-1]
	out := make(map[string]decimal.Decimal, len(c.tickers))
	for i, ticker := range c.tickers {
		out[ticker] = last.closes[i]
	}
	return out, nil
}

// CloseSeries returns the windowed close history for ticker, oldest first.
func (c *LiveCursor) CloseSeries(ticker string) ([]decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col := -1
	for i, t := range c.tickers {
		if t == ticker {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, exception.ErrUnknownTicker
	}
	out := make([]decimal.Decimal, 0, len(c.rows))
	for _, row := range c.rows {
		out = append(out, row.closes[col])
	}
	return out, nil
}

// Now returns the latest bar timestamp.
func (c *LiveCursor) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Tickers lists the cursor's tickers.
func (c *LiveCursor) Tickers() []string {
	return c.tickers
}

// Close releases any blocked Advance. Idempotent.
func (c *LiveCursor) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}
