package dataserver

import (
	"context"
	"sort"
	"time"

	"main/internal/market"
	"main/pkg/exception"
)

// Store serves price bars for a set of tickers over a closed time range.
type Store interface {
	// Series returns one bar row per timestamp at which every requested
	// ticker has a bar, ordered by time ascending.
	Series(ctx context.Context, tickers []string, start, end time.Time) (*market.Series, error)
}

// MemStore is an in-memory Store backed by a single full series. It
// serves subsets of that series by ticker and time range.
type MemStore struct {
	full *market.Series
}

// NewMemStore creates a store over series. The series is not copied.
func NewMemStore(series *market.Series) (*MemStore, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return &MemStore{full: series}, nil
}

// Series implements Store.
func (s *MemStore) Series(_ context.Context, tickers []string, start, end time.Time) (*market.Series, error) {
	if s == nil || s.full == nil {
		return nil, exception.ErrNilInstance
	}
	if len(tickers) == 0 {
		return nil, exception.ErrInvalidArgument
	}

	cols := make([]int, 0, len(tickers))
	for _, t := range tickers {
		col := s.full.Column(t)
		if col < 0 {
			return nil, exception.ErrUnknownTicker
		}
		cols = append(cols, col)
	}

	ts := s.full.Timestamps
	lo := sort.Search(len(ts), func(i int) bool { return !ts[i].Before(start) })
	hi := sort.Search(len(ts), func(i int) bool { return ts[i].After(end) })
	if lo >= hi {
		return nil, exception.ErrEmptySeries
	}

	out := &market.Series{Tickers: append([]string(nil), tickers...)}
	for i := lo; i < hi; i++ {
		out.Timestamps = append(out.Timestamps, ts[i])
		out.Open = append(out.Open, pick(s.full.Open[i], cols))
		out.High = append(out.High, pick(s.full.High[i], cols))
		out.Low = append(out.Low, pick(s.full.Low[i], cols))
		out.Close = append(out.Close, pick(s.full.Close[i], cols))
	}
	return out, nil
}

func pick[T any](row []T, cols []int) []T {
	out := make([]T, len(cols))
	for i, c := range cols {
		out[i] = row[c]
	}
	return out
}
