package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// envelope is the wire frame exchanged on a signaling connection.
//
//	{"event": "check-presence", "data": ["room-1"], "ackId": 7}
//
// Replies to a frame carrying an ackId are sent as an "ack" envelope with the
// same ackId and the reply values in data.
type envelope struct {
	Event string            `json:"event"`
	Data  []json.RawMessage `json:"data,omitempty"`
	AckID *int64            `json:"ackId,omitempty"`
}

const eventAck = "ack"

var (
	errEnvelopeTrailing = errors.New("signaling: trailing data after envelope")
	errEnvelopeNoEvent  = errors.New("signaling: envelope has no event")
)

func parseEnvelope(data []byte) (envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("signaling: decode envelope: %w", err)
	}
	if dec.More() {
		return envelope{}, errEnvelopeTrailing
	}
	if _, err := dec.Token(); err != io.EOF {
		return envelope{}, errEnvelopeTrailing
	}
	if env.Event == "" {
		return envelope{}, errEnvelopeNoEvent
	}
	return env, nil
}

// marshalEnvelope builds an outgoing frame. Each arg is marshalled into one
// entry of data; args that are already json.RawMessage pass through untouched.
func marshalEnvelope(event string, ackID *int64, args []any) ([]byte, error) {
	env := envelope{Event: event, AckID: ackID}
	for _, a := range args {
		raw, err := toRaw(a)
		if err != nil {
			return nil, fmt.Errorf("signaling: marshal %q arg: %w", event, err)
		}
		env.Data = append(env.Data, raw)
	}
	return json.Marshal(env)
}

func toRaw(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage("null"), nil
		}
		return raw, nil
	}
	return json.Marshal(v)
}

// argString reads data[i] as a JSON string.
func (e envelope) argString(i int) (string, bool) {
	if i >= len(e.Data) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(e.Data[i], &s); err != nil {
		return "", false
	}
	return s, true
}

// argRaw reads data[i] verbatim.
func (e envelope) argRaw(i int) (json.RawMessage, bool) {
	if i >= len(e.Data) || len(e.Data[i]) == 0 {
		return nil, false
	}
	return e.Data[i], true
}
