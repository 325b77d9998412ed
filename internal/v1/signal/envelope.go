// Package signal implements the wire codec for the relay's text-frame
// protocol: a single envelope shape {type, data} carrying a small set
// of recognized signal types.
package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

// Type enumerates the recognized envelope kinds.
type Type string

const (
	TypeConnected Type = "connected"
	TypeJoin      Type = "join"
	TypeLeave     Type = "leave"
	TypeMessage   Type = "message"
	TypePing      Type = "ping"
	TypePong      Type = "pong"
)

var (
	// ErrMalformedFrame is returned when a frame is not valid JSON or is
	// missing the required `type` field.
	ErrMalformedFrame = errors.New("signal: malformed frame")
	// ErrUnknownSignalType is returned when `type` is not one of the
	// recognized values.
	ErrUnknownSignalType = errors.New("signal: unknown type")
)

// Envelope is the top-level shape of every text frame exchanged with a
// peer, and every payload carried over the distribution bridge.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MessagePayload is the `data` shape carried by a `message` envelope.
// Arbitrary additional payload fields travel inside Data untouched,
// since the router never inspects payload semantics beyond routing.
type MessagePayload struct {
	ClientID       types.ClientID  `json:"clientId"`
	TargetClientID types.ClientID  `json:"targetClientId"`
	SessionID      string          `json:"sessionId,omitempty"`
	Type           string          `json:"type,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// Decode parses a raw text frame into an Envelope. It fails with
// ErrMalformedFrame on invalid JSON or a missing `type`, and with
// ErrUnknownSignalType when `type` is not recognized. Neither error
// should close the session; the caller logs and drops the frame.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	switch env.Type {
	case TypeConnected, TypeJoin, TypeLeave, TypeMessage, TypePing, TypePong:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSignalType, env.Type)
	}
	return &env, nil
}

// Encode serializes a signal type and its data payload into a raw text
// frame.
func Encode(t Type, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("signal: marshal data: %w", err)
	}
	env := Envelope{Type: t, Data: raw}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("signal: marshal envelope: %w", err)
	}
	return out, nil
}

// EncodeBare serializes an envelope carrying no data, such as `ping`.
func EncodeBare(t Type) ([]byte, error) {
	out, err := json.Marshal(Envelope{Type: t})
	if err != nil {
		return nil, fmt.Errorf("signal: marshal envelope: %w", err)
	}
	return out, nil
}

// Descriptor decodes Data as a ClientDescriptor, as carried by `join`
// and `leave` envelopes.
func (e *Envelope) Descriptor() (types.ClientDescriptor, error) {
	var d types.ClientDescriptor
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return d, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return d, nil
}

// Message decodes Data as a MessagePayload, as carried by `message`
// envelopes.
func (e *Envelope) Message() (MessagePayload, error) {
	var m MessagePayload
	if err := json.Unmarshal(e.Data, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return m, nil
}
