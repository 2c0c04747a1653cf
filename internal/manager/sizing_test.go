package manager

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/ledger"
	"main/internal/market"
	"main/internal/schema"
	"main/pkg/exception"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func twoBarCursor(t *testing.T) (*market.HistoricalCursor, []time.Time) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := []time.Time{base, base.Add(time.Hour)}
	rows := func(a, b string) []decimal.Decimal { return []decimal.Decimal{d(a), d(b)} }
	series := &market.Series{
		Tickers:    []string{"A", "B"},
		Timestamps: ts,
		Open:       [][]decimal.Decimal{rows("10", "20"), rows("11", "22")},
		High:       [][]decimal.Decimal{rows("10", "20"), rows("11", "22")},
		Low:        [][]decimal.Decimal{rows("10", "20"), rows("11", "22")},
		Close:      [][]decimal.Decimal{rows("10", "20"), rows("11", "22")},
	}
	cursor, err := market.NewHistoricalCursor(series)
	require.NoError(t, err)
	return cursor, ts
}

func TestBuildOrderSizesAndOrdersSellsFirst(t *testing.T) {
	cursor, ts := twoBarCursor(t)
	ctx := context.Background()
	require.True(t, cursor.Advance(ctx))
	require.True(t, cursor.Advance(ctx))

	record := ledger.New(ts[0], d("10000"), []string{"A", "B"})
	sig := schema.Signal{
		Session: "s1",
		Ts:      ts[1],
		Alphas:  map[string]decimal.Decimal{"A": d("1"), "B": d("-1")},
	}

	order, err := BuildOrder(record, cursor, sig)
	require.NoError(t, err)

	// unitCapital = 10000/2 = 5000; A targets 5000/11 -> 454,
	// B targets -5000/22 -> -227, truncated toward zero.
	require.Len(t, order.Legs, 2)
	assert.Equal(t, "B", order.Legs[0].Ticker)
	assert.Equal(t, int64(-227), order.Legs[0].Qty)
	assert.Equal(t, "A", order.Legs[1].Ticker)
	assert.Equal(t, int64(454), order.Legs[1].Qty)
}

func TestBuildOrderDeltaAgainstHeldPosition(t *testing.T) {
	cursor, ts := twoBarCursor(t)
	ctx := context.Background()
	require.True(t, cursor.Advance(ctx))
	require.True(t, cursor.Advance(ctx))

	record := ledger.New(ts[0], d("10000"), []string{"A", "B"})
	require.NoError(t, record.Apply("A", 500, d("10"), decimal.Zero))
	require.NoError(t, record.TakeSnapshot(ts[0], map[string]decimal.Decimal{"A": d("10"), "B": d("20")}))

	sig := schema.Signal{
		Session: "s1",
		Ts:      ts[1],
		Alphas:  map[string]decimal.Decimal{"A": d("1")},
	}
	order, err := BuildOrder(record, cursor, sig)
	require.NoError(t, err)

	// equity = 500*10 + 5000 = 10000, target = 10000/11 = 909, held 500.
	require.Len(t, order.Legs, 1)
	assert.Equal(t, int64(409), order.Legs[0].Qty)
}

func TestBuildOrderZeroAlphaSum(t *testing.T) {
	cursor, ts := twoBarCursor(t)
	require.True(t, cursor.Advance(context.Background()))

	record := ledger.New(ts[0], d("10000"), []string{"A", "B"})
	sig := schema.Signal{
		Session: "s1",
		Ts:      ts[0],
		Alphas:  map[string]decimal.Decimal{"A": decimal.Zero, "B": decimal.Zero},
	}
	_, err := BuildOrder(record, cursor, sig)
	assert.ErrorIs(t, err, exception.ErrZeroAlpha)
}

func TestBuildOrderUnknownTicker(t *testing.T) {
	cursor, ts := twoBarCursor(t)
	require.True(t, cursor.Advance(context.Background()))

	record := ledger.New(ts[0], d("10000"), []string{"A", "B"})
	sig := schema.Signal{
		Session: "s1",
		Ts:      ts[0],
		Alphas:  map[string]decimal.Decimal{"Z": d("1")},
	}
	_, err := BuildOrder(record, cursor, sig)
	assert.ErrorIs(t, err, exception.ErrUnknownTicker)
}

func TestSimulatedExchangeFillsAtClose(t *testing.T) {
	cursor, ts := twoBarCursor(t)
	ctx := context.Background()
	require.True(t, cursor.Advance(ctx))
	require.True(t, cursor.Advance(ctx))

	exchange := NewSimulatedExchange(d("0.001"))
	order := schema.Order{
		Session: "s1",
		Ts:      ts[1],
		Legs: []schema.OrderLeg{
			{Ticker: "B", Kind: schema.OrderKindMarket, Qty: -227},
			{Ticker: "A", Kind: schema.OrderKindMarket, Qty: 454},
		},
	}
	fill, err := exchange.Execute(order, cursor)
	require.NoError(t, err)
	require.Len(t, fill.Legs, 2)

	assert.True(t, fill.Legs[0].Price.Equal(d("22")), "sell priced at current close")
	assert.True(t, fill.Legs[0].Commission.Equal(d("0.001").Mul(d("4994"))), "commission on absolute notional")
	assert.True(t, fill.Legs[1].Price.Equal(d("11")))
}
