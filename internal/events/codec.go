package events

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire and storage form of an event.
type Envelope struct {
	Seq     int64           `json:"seq"`
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps an event in an envelope.
func Encode(seq int64, e Event) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", e.Type(), err)
	}
	return Envelope{Seq: seq, Type: e.Type(), Payload: payload}, nil
}

// Marshal encodes an event as a JSON envelope.
func Marshal(seq int64, e Event) ([]byte, error) {
	env, err := Encode(seq, e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode returns the typed event held by an envelope.
func Decode(env Envelope) (Event, error) {
	var (
		e   Event
		err error
	)
	switch env.Type {
	case EventTypeAdd:
		e, err = decodeAs[Add](env.Payload)
	case EventTypeStartGame:
		e = StartGame{}
	case EventTypeNextRound:
		e = NextRound{}
	case EventTypeFight:
		e, err = decodeAs[Fight](env.Payload)
	case EventTypeMate:
		e, err = decodeAs[Mate](env.Payload)
	case EventTypeRetire:
		e, err = decodeAs[Retire](env.Payload)
	case EventTypeOverpopulation:
		e, err = decodeAs[Overpopulation](env.Payload)
	case EventTypeExplode:
		e, err = decodeAs[Explode](env.Payload)
	case EventTypeEndGame:
		e, err = decodeAs[EndGame](env.Payload)
	default:
		return nil, fmt.Errorf("events: unknown type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("events: decode %s: %w", env.Type, err)
	}
	return e, nil
}

// Unmarshal decodes a JSON envelope.
func Unmarshal(data []byte) (int64, Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, nil, fmt.Errorf("events: unmarshal envelope: %w", err)
	}
	e, err := Decode(env)
	return env.Seq, e, err
}

func decodeAs[T Event](payload json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(payload, &v)
	return v, err
}
