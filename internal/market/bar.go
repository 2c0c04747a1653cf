package market

import "github.com/shopspring/decimal"

// Bar aggregates ticks into an OHLC bar.
type Bar struct {
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	filled bool
}

// Add folds a tick price into the bar.
func (b *Bar) Add(price decimal.Decimal) {
	if !b.filled {
		b.Open = price
		b.High = price
		b.Low = price
		b.Close = price
		b.filled = true
		return
	}
	if price.GreaterThan(b.High) {
		b.High = price
	}
	if price.LessThan(b.Low) {
		b.Low = price
	}
	b.Close = price
}

// Take returns the aggregated bar and resets it. ok is false when no tick
// arrived since the last Take; the previous close is carried so a quiet
// ticker still produces a flat bar.
func (b *Bar) Take() (Bar, bool) {
	if !b.filled {
		carried := Bar{Open: b.Close, High: b.Close, Low: b.Close, Close: b.Close}
		return carried, false
	}
	out := *b
	*b = Bar{Close: b.Close}
	return out, true
}
