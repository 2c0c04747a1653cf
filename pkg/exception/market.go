package exception

import "errors"

// Market data errors
var (
	ErrUnknownTicker    = errors.New("market: ticker not in cursor set")
	ErrNoBarYet         = errors.New("market: no bar advanced yet")
	ErrEmptySeries      = errors.New("market: series has no rows")
	ErrSeriesShape      = errors.New("market: series rows do not match tickers")
	ErrMissingSeries    = errors.New("market: historical descriptor has no series")
	ErrUnknownCursor    = errors.New("market: unrecognized cursor kind")
	ErrDataUnavailable  = errors.New("market: requested data unavailable")
	ErrTimeRangeMissing = errors.New("market: simulated request needs a time range")
)
