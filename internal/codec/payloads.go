package codec

import (
	"encoding/json"

	"main/internal/ledger"
	"main/internal/market"
	"main/internal/schema"
)

// DecodeAccountOpen parses an account open payload.
func DecodeAccountOpen(src []byte) (schema.AccountOpen, bool) {
	var v schema.AccountOpen
	if err := json.Unmarshal(src, &v); err != nil {
		return schema.AccountOpen{}, false
	}
	return v, true
}

// DecodeAccountClose parses an account close payload.
func DecodeAccountClose(src []byte) (schema.AccountClose, bool) {
	var v schema.AccountClose
	if err := json.Unmarshal(src, &v); err != nil {
		return schema.AccountClose{}, false
	}
	return v, true
}

// DecodeSignal parses a signal payload.
func DecodeSignal(src []byte) (schema.Signal, bool) {
	var v schema.Signal
	if err := json.Unmarshal(src, &v); err != nil {
		return schema.Signal{}, false
	}
	return v, true
}

// DecodeOrder parses an order payload.
func DecodeOrder(src []byte) (schema.Order, bool) {
	var v schema.Order
	if err := json.Unmarshal(src, &v); err != nil {
		return schema.Order{}, false
	}
	return v, true
}

// DecodeFill parses a fill payload.
func DecodeFill(src []byte) (schema.Fill, bool) {
	var v schema.Fill
	if err := json.Unmarshal(src, &v); err != nil {
		return schema.Fill{}, false
	}
	return v, true
}

// DecodeQuote parses a quote payload.
func DecodeQuote(src []byte) (schema.Quote, bool) {
	var v schema.Quote
	if err := json.Unmarshal(src, &v); err != nil {
		return schema.Quote{}, false
	}
	return v, true
}

// DecodeDataRequest parses a data request payload.
func DecodeDataRequest(src []byte) (schema.DataRequest, bool) {
	var v schema.DataRequest
	if err := json.Unmarshal(src, &v); err != nil {
		return schema.DataRequest{}, false
	}
	return v, true
}

// DecodeDispatcher parses a cursor descriptor payload.
func DecodeDispatcher(src []byte) (market.Dispatcher, bool) {
	var v market.Dispatcher
	if err := json.Unmarshal(src, &v); err != nil {
		return market.Dispatcher{}, false
	}
	return v, true
}

// DecodeRecord parses a final ledger payload.
func DecodeRecord(src []byte) (ledger.TradeRecord, bool) {
	var v ledger.TradeRecord
	if err := json.Unmarshal(src, &v); err != nil {
		return ledger.TradeRecord{}, false
	}
	return v, true
}

// DecodeErrorReply parses a typed error payload.
func DecodeErrorReply(src []byte) (schema.ErrorReply, bool) {
	var v schema.ErrorReply
	if err := json.Unmarshal(src, &v); err != nil {
		return schema.ErrorReply{}, false
	}
	return v, true
}
