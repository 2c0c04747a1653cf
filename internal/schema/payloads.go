package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// BrokerKind selects the market data / execution backend for an account.
type BrokerKind uint16

const (
	BrokerUnknown BrokerKind = iota
	BrokerSimulated
	BrokerLive
)

func (b BrokerKind) String() string {
	switch b {
	case BrokerSimulated:
		return "simulated"
	case BrokerLive:
		return "live"
	default:
		return "unknown"
	}
}

// OrderKind describes order type. The simulator fills everything at the
// bar close, so the kind is informational.
type OrderKind uint16

const (
	OrderKindUnknown OrderKind = iota
	OrderKindLimit
	OrderKindMarket
)

// DataRequest is the payload for EventDataRequest. A simulated request
// must carry a time range; a live request needs only tickers.
type DataRequest struct {
	Broker  BrokerKind `json:"broker"`
	Tickers []string   `json:"tickers"`
	Start   time.Time  `json:"start,omitempty"`
	End     time.Time  `json:"end,omitempty"`
}

// AccountOpen is the payload for EventAccountOpen.
type AccountOpen struct {
	Session string          `json:"session"`
	Capital decimal.Decimal `json:"capital"`
	Request DataRequest     `json:"request"`
}

// AccountClose is the payload for EventAccountClose.
type AccountClose struct {
	Session string `json:"session"`
}

// Signal is the payload for EventSignal: per-ticker signed target weights
// produced by a strategy at the given strategy time.
type Signal struct {
	Session string                     `json:"session"`
	Ts      time.Time                  `json:"ts"`
	Alphas  map[string]decimal.Decimal `json:"alphas"`
}

// OrderLeg is one entry of an order batch. Qty is signed: negative sells,
// positive buys.
type OrderLeg struct {
	Ticker string    `json:"ticker"`
	Kind   OrderKind `json:"kind"`
	Qty    int64     `json:"qty"`
}

// Order is the payload for EventOrder: the batch built atomically from one
// signal. Legs are ordered, sell legs strictly before buy legs, so the
// sell proceeds fund the buys that follow.
type Order struct {
	Session string     `json:"session"`
	Ts      time.Time  `json:"ts"`
	Legs    []OrderLeg `json:"legs"`
}

// Add appends a leg. Zero-quantity legs are dropped.
func (o *Order) Add(ticker string, kind OrderKind, qty int64) {
	if qty == 0 {
		return
	}
	o.Legs = append(o.Legs, OrderLeg{Ticker: ticker, Kind: kind, Qty: qty})
}

// Empty reports whether the order carries no legs.
func (o Order) Empty() bool {
	return len(o.Legs) == 0
}

// FillLeg is one executed entry of a fill batch.
type FillLeg struct {
	Ticker     string          `json:"ticker"`
	Qty        int64           `json:"qty"`
	Price      decimal.Decimal `json:"price"`
	Commission decimal.Decimal `json:"commission"`
}

// Fill is the payload for EventFill. Legs keep the execution order of the
// originating order batch.
type Fill struct {
	Session string    `json:"session"`
	Ts      time.Time `json:"ts"`
	Legs    []FillLeg `json:"legs"`
}

// Quote is the payload for EventQuote: closes of one bar, emitted while a
// server-side cursor catches up to strategy time.
type Quote struct {
	Session string                     `json:"session"`
	Ts      time.Time                  `json:"ts"`
	Closes  map[string]decimal.Decimal `json:"closes"`
}

// ErrorCode identifies a typed error reply.
type ErrorCode uint16

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeDuplicateAccount
	ErrCodeUnknownAccount
	ErrCodeZeroAlpha
	ErrCodeDataUnavailable
	ErrCodeAccounting
	ErrCodeBadRequest
)

// ErrorReply is the payload for EventError. Callers can distinguish
// "your account already exists" from "data collaborator unavailable".
type ErrorReply struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e ErrorReply) Error() string {
	return e.Message
}
