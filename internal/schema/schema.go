package schema

import "time"

// SchemaVersion is the current message schema version.
const SchemaVersion uint16 = 1

// EventType defines the category of a message exchanged between the
// trader clients, the portfolio manager and the data server.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventAccountOpen
	EventAccountClose
	EventSignal
	EventOrder
	EventFill
	EventQuote
	EventDataRequest
	EventDispatcher
	EventRecord
	EventError
)

var eventNames = map[EventType]string{
	EventUnknown:      "unknown",
	EventAccountOpen:  "account_open",
	EventAccountClose: "account_close",
	EventSignal:       "signal",
	EventOrder:        "order",
	EventFill:         "fill",
	EventQuote:        "quote",
	EventDataRequest:  "data_request",
	EventDispatcher:   "dispatcher",
	EventRecord:       "record",
	EventError:        "error",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// EventHeader is the common metadata attached to every message. Seq is
// a per-connection correlation id: request/reply exchanges carry a
// non-zero Seq assigned by the requester and echoed in the reply, while
// one-way messages (and replies to them) leave it zero.
type EventHeader struct {
	Type    EventType `json:"type"`
	Version uint16    `json:"version"`
	Session string    `json:"session,omitempty"`
	Seq     uint64    `json:"seq,omitempty"`
	Ts      time.Time `json:"ts"`
}

// NewHeader builds a header with the current schema version.
func NewHeader(eventType EventType, session string, ts time.Time) EventHeader {
	return EventHeader{
		Type:    eventType,
		Version: SchemaVersion,
		Session: session,
		Ts:      ts,
	}
}
