package codec

import (
	"encoding/json"

	"main/internal/schema"
)

// Envelope is the unit carried by a frame: a header plus the raw payload
// bytes for the header's event type.
type Envelope struct {
	Header  schema.EventHeader `json:"header"`
	Payload json.RawMessage    `json:"payload,omitempty"`
}

// EncodeEnvelope serializes an envelope.
func EncodeEnvelope(env Envelope) []byte {
	out, err := json.Marshal(env)
	if err != nil {
		// All payload types marshal without error; a failure here is a
		// programming error in the schema package.
		panic(err)
	}
	return out
}

// DecodeEnvelope parses an envelope.
func DecodeEnvelope(src []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(src, &env); err != nil {
		return Envelope{}, false
	}
	return env, true
}

// Pack builds an envelope from a header and payload value.
func Pack(header schema.EventHeader, payload any) Envelope {
	if payload == nil {
		return Envelope{Header: header}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return Envelope{Header: header, Payload: raw}
}
