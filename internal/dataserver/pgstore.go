package dataserver

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/market"
	"main/pkg/conn"
	"main/pkg/exception"
)

// BarRow is the persisted form of one price bar.
type BarRow struct {
	Ticker string          `gorm:"column:ticker;primaryKey"`
	Ts     time.Time       `gorm:"column:ts;primaryKey"`
	Open   decimal.Decimal `gorm:"column:open;type:numeric"`
	High   decimal.Decimal `gorm:"column:high;type:numeric"`
	Low    decimal.Decimal `gorm:"column:low;type:numeric"`
	Close  decimal.Decimal `gorm:"column:close;type:numeric"`
}

// TableName implements gorm's table naming hook.
func (BarRow) TableName() string {
	return "bars"
}

// PGStore serves bars from PostgreSQL.
type PGStore struct {
	client *conn.Client
}

// NewPGStore opens a PostgreSQL-backed store and ensures the bars table
// exists.
func NewPGStore(opt conn.Option) (*PGStore, error) {
	client, err := conn.New(opt)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := client.DB().AutoMigrate(&BarRow{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate bars")
	}
	return &PGStore{client: client}, nil
}

// Close releases the connection pool.
func (s *PGStore) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

// Insert writes bars, replacing rows that share a (ticker, ts) key.
func (s *PGStore) Insert(ctx context.Context, rows []BarRow) error {
	if s == nil {
		return exception.ErrNilInstance
	}
	if len(rows) == 0 {
		return nil
	}
	return s.client.DB().WithContext(ctx).Save(rows).Error
}

// Series implements Store. Only timestamps at which every requested
// ticker has a bar are included, so the returned planes are rectangular.
func (s *PGStore) Series(ctx context.Context, tickers []string, start, end time.Time) (*market.Series, error) {
	if s == nil {
		return nil, exception.ErrNilInstance
	}
	if len(tickers) == 0 {
		return nil, exception.ErrInvalidArgument
	}

	var rows []BarRow
	err := s.client.DB().WithContext(ctx).
		Where("ticker IN ?", tickers).
		Where("ts >= ? AND ts <= ?", start, end).
		Order("ts ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query bars")
	}
	if len(rows) == 0 {
		return nil, exception.ErrEmptySeries
	}

	col := make(map[string]int, len(tickers))
	for i, t := range tickers {
		col[t] = i
	}

	// Group rows by timestamp, then keep only complete rows.
	type barRowSet struct {
		ts   time.Time
		bars []*BarRow
		n    int
	}
	var groups []*barRowSet
	byTs := make(map[int64]*barRowSet)
	for i := range rows {
		r := &rows[i]
		key := r.Ts.UnixNano()
		g, ok := byTs[key]
		if !ok {
			g = &barRowSet{ts: r.Ts, bars: make([]*BarRow, len(tickers))}
			byTs[key] = g
			groups = append(groups, g)
		}
		c, ok := col[r.Ticker]
		if !ok {
			continue
		}
		if g.bars[c] == nil {
			g.n++
		}
		g.bars[c] = r
	}

	out := &market.Series{Tickers: append([]string(nil), tickers...)}
	for _, g := range groups {
		if g.n != len(tickers) {
			continue
		}
		open := make([]decimal.Decimal, len(tickers))
		high := make([]decimal.Decimal, len(tickers))
		low := make([]decimal.Decimal, len(tickers))
		closes := make([]decimal.Decimal, len(tickers))
		for c, b := range g.bars {
			open[c], high[c], low[c], closes[c] = b.Open, b.High, b.Low, b.Close
		}
		out.Timestamps = append(out.Timestamps, g.ts)
		out.Open = append(out.Open, open)
		out.High = append(out.High, high)
		out.Low = append(out.Low, low)
		out.Close = append(out.Close, closes)
	}
	if out.Len() == 0 {
		return nil, exception.ErrEmptySeries
	}
	return out, nil
}
