package market

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"main/pkg/exception"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testSeries(t *testing.T, closes map[string][]string) *Series {
	t.Helper()
	var tickers []string
	var n int
	for ticker, prices := range closes {
		tickers = append(tickers, ticker)
		n = len(prices)
	}
	// Deterministic column order for assertions.
	if len(tickers) == 2 && tickers[0] > tickers[1] {
		tickers[0], tickers[1] = tickers[1], tickers[0]
	}

	s := &Series{Tickers: tickers}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		row := make([]decimal.Decimal, len(tickers))
		for c, ticker := range tickers {
			row[c] = d(closes[ticker][i])
		}
		s.Timestamps = append(s.Timestamps, base.Add(time.Duration(i)*time.Hour))
		s.Open = append(s.Open, row)
		s.High = append(s.High, row)
		s.Low = append(s.Low, row)
		s.Close = append(s.Close, row)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("series invalid: %v", err)
	}
	return s
}

func TestHistoricalAdvanceExactlyLenTimes(t *testing.T) {
	s := testSeries(t, map[string][]string{"A": {"10", "11", "12"}})
	c, err := NewHistoricalCursor(s)
	if err != nil {
		t.Fatalf("NewHistoricalCursor: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if !c.Advance(ctx) {
			t.Fatalf("Advance %d returned false", i)
		}
	}
	for i := 0; i < 5; i++ {
		if c.Advance(ctx) {
			t.Fatalf("Advance past the end must return false")
		}
	}
	// Terminal state is unchanged.
	if got := c.Now(); !got.Equal(s.Timestamps[2]) {
		t.Fatalf("Now moved after exhaustion: %s", got)
	}
}

func TestHistoricalCloseOfTracksCurrentBar(t *testing.T) {
	s := testSeries(t, map[string][]string{"A": {"10", "11"}, "B": {"20", "22"}})
	c, err := NewHistoricalCursor(s)
	if err != nil {
		t.Fatalf("NewHistoricalCursor: %v", err)
	}

	if _, err := c.CloseOf("A"); err != exception.ErrNoBarYet {
		t.Fatalf("CloseOf before first Advance: expected ErrNoBarYet, got %v", err)
	}

	ctx := context.Background()
	c.Advance(ctx)
	got, err := c.CloseOf("A")
	if err != nil {
		t.Fatalf("CloseOf: %v", err)
	}
	if !got.Equal(d("10")) {
		t.Fatalf("bar 1 close mismatch: %s", got)
	}

	c.Advance(ctx)
	got, _ = c.CloseOf("B")
	if !got.Equal(d("22")) {
		t.Fatalf("bar 2 close mismatch: %s", got)
	}

	if _, err := c.CloseOf("Z"); err != exception.ErrUnknownTicker {
		t.Fatalf("expected ErrUnknownTicker, got %v", err)
	}
}

func TestHistoricalSetLookbackFastForwards(t *testing.T) {
	s := testSeries(t, map[string][]string{"A": {"1", "2", "3", "4", "5"}})
	c, _ := NewHistoricalCursor(s)

	c.SetLookback(3)
	closes, err := c.CloseSeries("A")
	if err != nil {
		t.Fatalf("CloseSeries: %v", err)
	}
	if len(closes) != 3 {
		t.Fatalf("visible window length mismatch: %d", len(closes))
	}
	if got, _ := c.CloseOf("A"); !got.Equal(d("3")) {
		t.Fatalf("lookback-th close mismatch: %s", got)
	}
	if c.Remaining() != 2 {
		t.Fatalf("remaining mismatch: %d", c.Remaining())
	}
}

func TestHistoricalSyncToEmitsOneQuotePerBar(t *testing.T) {
	s := testSeries(t, map[string][]string{"A": {"10", "11", "12", "13"}})
	c, _ := NewHistoricalCursor(s)

	var got []string
	err := c.SyncTo(s.Timestamps[2], func(ts time.Time, closes map[string]decimal.Decimal) {
		got = append(got, closes["A"].String())
	})
	if err != nil {
		t.Fatalf("SyncTo: %v", err)
	}
	if len(got) != 3 || got[0] != "10" || got[2] != "12" {
		t.Fatalf("quote sequence mismatch: %v", got)
	}
	if !c.Now().Equal(s.Timestamps[2]) {
		t.Fatalf("Now mismatch after sync: %s", c.Now())
	}

	// Syncing past the end is terminal, not an error.
	if err := c.SyncTo(s.Timestamps[3].Add(time.Hour), nil); err != nil {
		t.Fatalf("SyncTo past end: %v", err)
	}
}
