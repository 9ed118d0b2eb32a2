package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeRoundTrip(t *testing.T) {
	in := Envelope{
		Type:      TypeMessage,
		ChannelID: "room",
		Data:      json.RawMessage(`{"body":"hi"}`),
		SenderID:  "alice",
		Timestamp: 1234,
		ActionID:  "act-1",
	}
	b, err := in.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Type != in.Type || out.ChannelID != in.ChannelID || out.SenderID != in.SenderID ||
		out.Timestamp != in.Timestamp || out.ActionID != in.ActionID {
		t.Fatalf("round trip changed envelope: %+v", out)
	}
	if string(out.Data) != string(in.Data) {
		t.Fatalf("data changed: %s", out.Data)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, frame := range []string{"", "not json", `{"type":"teleport"}`, `{"type":""}`} {
		if _, err := Decode([]byte(frame)); !errors.Is(err, ErrMalformedEnvelope) {
			t.Fatalf("frame %q: err=%v, want ErrMalformedEnvelope", frame, err)
		}
	}
}

func TestKnownType(t *testing.T) {
	for _, typ := range []string{TypeSubscribe, TypeUnsubscribe, TypeMessage, TypeTyping, TypeRead, TypeConnected, TypeJoin, TypeLeave} {
		if !KnownType(typ) {
			t.Fatalf("%s not known", typ)
		}
	}
	if KnownType("ping") {
		t.Fatalf("ping is a transport frame, not an envelope type")
	}
}
