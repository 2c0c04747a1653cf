package market

import (
	"time"

	"github.com/shopspring/decimal"

	"main/pkg/exception"
)

// Series is an immutable finite price series: one row per timestamp, one
// column per ticker, in the tickers' declared order. It is embedded in
// historical dispatcher descriptors so a remote process can rebuild the
// same cursor locally.
type Series struct {
	Tickers    []string            `json:"tickers"`
	Timestamps []time.Time         `json:"timestamps"`
	Open       [][]decimal.Decimal `json:"open"`
	High       [][]decimal.Decimal `json:"high"`
	Low        [][]decimal.Decimal `json:"low"`
	Close      [][]decimal.Decimal `json:"close"`
}

// Len returns the number of bars.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Timestamps)
}

// Validate checks the series shape: every plane must have one row per
// timestamp and one column per ticker.
func (s *Series) Validate() error {
	if s == nil || s.Len() == 0 {
		return exception.ErrEmptySeries
	}
	planes := [][][]decimal.Decimal{s.Open, s.High, s.Low, s.Close}
	for _, plane := range planes {
		if len(plane) != s.Len() {
			return exception.ErrSeriesShape
		}
		for _, row := range plane {
			if len(row) != len(s.Tickers) {
				return exception.ErrSeriesShape
			}
		}
	}
	return nil
}

// Column returns the index of ticker, or -1 if absent.
func (s *Series) Column(ticker string) int {
	for i, t := range s.Tickers {
		if t == ticker {
			return i
		}
	}
	return -1
}
