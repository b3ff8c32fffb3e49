package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound event names.
const (
	EventJoinRoom    = "joinRoom"
	EventChatMessage = "chatMessage"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"

	legacyStopTyping = "stop typing"
)

// Outbound event names. typing and stopTyping reuse the inbound names.
const (
	EventMessage = "message"
)

// ErrMalformedFrame is returned by DecodeInbound for frames that do not match
// the envelope format.
var ErrMalformedFrame = errors.New("malformed frame")

// Envelope is the JSON shape of every frame exchanged with a client.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is a decoded client event. Arg carries the username for joinRoom and
// the text for chatMessage; it is empty for the other events.
type Inbound struct {
	Event string
	Arg   string
}

// DecodeInbound parses a raw client frame.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return Inbound{}, fmt.Errorf("%w: missing event", ErrMalformedFrame)
	}

	in := Inbound{Event: env.Event}
	if in.Event == legacyStopTyping {
		in.Event = EventStopTyping
	}

	switch in.Event {
	case EventJoinRoom, EventChatMessage:
		if len(env.Data) == 0 {
			return Inbound{}, fmt.Errorf("%w: %s requires data", ErrMalformedFrame, in.Event)
		}
		if err := json.Unmarshal(env.Data, &in.Arg); err != nil {
			return Inbound{}, fmt.Errorf("%w: %s data must be a string", ErrMalformedFrame, in.Event)
		}
	}
	return in, nil
}

// EncodeFrame builds the outbound frame for event with payload as its data.
func EncodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
