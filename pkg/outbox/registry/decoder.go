package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/enums"
	"github.com/coownly/esign-backend/pkg/outbox"
)

// ErrUnknownPayload means no decoder exists for the event type and version.
var ErrUnknownPayload = errors.New("no decoder for payload")

type decodeFunc func(json.RawMessage) (any, error)

type payloadKey struct {
	eventType enums.OutboxEventType
	version   int
}

// Decoders maps (event type, envelope version) to a typed payload decoder.
// It is filled once at startup and read-only afterwards.
type Decoders struct {
	byKey map[payloadKey]decodeFunc
	types map[enums.OutboxEventType]struct{}
}

func NewDecoders() *Decoders {
	return &Decoders{
		byKey: map[payloadKey]decodeFunc{},
		types: map[enums.OutboxEventType]struct{}{},
	}
}

// Register binds version of eventType to payload type T.
func Register[T any](d *Decoders, eventType enums.OutboxEventType, version int) {
	d.byKey[payloadKey{eventType, version}] = func(raw json.RawMessage) (any, error) {
		var payload T
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
	d.types[eventType] = struct{}{}
}

// Handles reports whether any version of eventType is registered.
func (d *Decoders) Handles(eventType enums.OutboxEventType) bool {
	_, ok := d.types[eventType]
	return ok
}

// Delivery is a decoded message body.
type Delivery struct {
	EventID uuid.UUID
	Version int
	Actor   *outbox.ActorRef
	Payload any
}

// Decode parses a published envelope and its typed payload. Every error is
// permanent: the same bytes fail the same way on redelivery.
func (d *Decoders) Decode(eventType enums.OutboxEventType, body []byte) (Delivery, error) {
	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Delivery{}, fmt.Errorf("decode envelope: %w", err)
	}
	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		return Delivery{}, fmt.Errorf("envelope event id: %w", err)
	}

	decode, ok := d.byKey[payloadKey{eventType, env.Version}]
	if !ok {
		return Delivery{EventID: eventID}, fmt.Errorf("%w: %s v%d", ErrUnknownPayload, eventType, env.Version)
	}
	payload, err := decode(env.Data)
	if err != nil {
		return Delivery{EventID: eventID}, fmt.Errorf("decode %s v%d payload: %w", eventType, env.Version, err)
	}
	return Delivery{EventID: eventID, Version: env.Version, Actor: env.Actor, Payload: payload}, nil
}
