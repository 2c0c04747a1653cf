package market

import (
	"time"

	"main/pkg/exception"
)

// CursorKind tags the concrete cursor variant of a descriptor.
type CursorKind uint16

const (
	CursorUnknown CursorKind = iota
	CursorHistorical
	CursorLive
)

// Dispatcher is a serializable cursor descriptor. It lets a remote
// process construct the correct concrete cursor locally: historical
// descriptors embed the underlying series, live descriptors carry only
// the tickers and the feed address.
type Dispatcher struct {
	Kind        CursorKind    `json:"kind"`
	Tickers     []string      `json:"tickers"`
	Series      *Series       `json:"series,omitempty"`
	FeedAddr    string        `json:"feedAddr,omitempty"`
	BarInterval time.Duration `json:"barInterval,omitempty"`
}

// HistoricalDispatcher describes a cursor over series.
func HistoricalDispatcher(series *Series) Dispatcher {
	return Dispatcher{
		Kind:    CursorHistorical,
		Tickers: series.Tickers,
		Series:  series,
	}
}

// LiveDispatcher describes a cursor fed from the quote stream at addr.
func LiveDispatcher(tickers []string, addr string, interval time.Duration) Dispatcher {
	return Dispatcher{
		Kind:        CursorLive,
		Tickers:     tickers,
		FeedAddr:    addr,
		BarInterval: interval,
	}
}

// Build constructs the concrete cursor the descriptor names. A live
// cursor still needs its collector attached by the caller.
func (d Dispatcher) Build() (Cursor, error) {
	switch d.Kind {
	case CursorHistorical:
		if d.Series == nil {
			return nil, exception.ErrMissingSeries
		}
		return NewHistoricalCursor(d.Series)
	case CursorLive:
		return NewLiveCursor(d.Tickers, d.BarInterval), nil
	default:
		return nil, exception.ErrUnknownCursor
	}
}
