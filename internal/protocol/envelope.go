package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event types carried by the envelope. Subscribe/unsubscribe are
// client-to-server control events; the rest are fanned out to channel
// subscribers. Liveness probes use transport ping/pong frames and never
// appear here.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeMessage     = "message"
	TypeTyping      = "typing"
	TypeRead        = "read"
	TypeConnected   = "connected"
	TypeJoin        = "join"
	TypeLeave       = "leave"
)

// ErrMalformedEnvelope marks a frame that could not be parsed or carries an
// unknown type. The frame is dropped; the connection stays open.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the JSON wire format exchanged over a relay connection.
//
// SenderID and Timestamp are server-assigned on every server-emitted event;
// values supplied by clients are discarded during stamping.
type Envelope struct {
	Type      string          `json:"type"`
	ChannelID string          `json:"channelId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	SenderID  string          `json:"senderId,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	// ActionID is a client-generated id attached to mutations so offline
	// replays can be deduplicated server-side.
	ActionID string `json:"actionId,omitempty"`
}

// KnownType reports whether t is a defined envelope type.
func KnownType(t string) bool {
	switch t {
	case TypeSubscribe, TypeUnsubscribe, TypeMessage, TypeTyping, TypeRead,
		TypeConnected, TypeJoin, TypeLeave:
		return true
	}
	return false
}

// Decode parses a wire frame into an Envelope. Unparseable frames and
// unknown types yield ErrMalformedEnvelope.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if !KnownType(env.Type) {
		return Envelope{}, fmt.Errorf("%w: unknown type %q", ErrMalformedEnvelope, env.Type)
	}
	return env, nil
}

// Encode serializes the envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// SubscribeData is the optional payload of a subscribe envelope.
type SubscribeData struct {
	// Filter is an optional CEL expression evaluated against content
	// messages before delivery to this subscriber.
	Filter string `json:"filter,omitempty"`
}
