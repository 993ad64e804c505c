package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/config"
	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
	"github.com/coownly/esign-backend/pkg/outbox"
	"github.com/coownly/esign-backend/pkg/outbox/payloads"
)

// EventDescriptor is the publishing route of one event type.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

// ResolvedEvent is an outbox row whose envelope and payload decoded cleanly.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks rows that will never publish and belong in the DLQ.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// EventRegistry routes lifecycle facts to the domain topic and anything a
// signer must hear about to the notification topic.
type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.DomainTopic == "":
		return nil, errors.New("domain topic is required")
	case cfg.NotificationTopic == "":
		return nil, errors.New("notification topic is required")
	}

	domain, inbox := cfg.DomainTopic, cfg.NotificationTopic
	routes := []EventDescriptor{
		route[payloads.DocumentUploadedEvent](enums.EventDocumentUploaded, enums.AggregateDocument, domain),
		route[payloads.DocumentVersionedEvent](enums.EventDocumentVersioned, enums.AggregateDocument, domain),
		route[payloads.DocumentDeletedEvent](enums.EventDocumentDeleted, enums.AggregateDocument, domain),
		route[payloads.DocumentSignedEvent](enums.EventDocumentSigned, enums.AggregateSignature, domain),
		route[payloads.CertificateGeneratedEvent](enums.EventCertificateGenerated, enums.AggregateCertificate, domain),

		route[payloads.SigningRequestedEvent](enums.EventSigningRequested, enums.AggregateSignature, inbox),
		route[payloads.DocumentFullySignedEvent](enums.EventDocumentFullySigned, enums.AggregateDocument, inbox),
		route[payloads.SigningExpiredEvent](enums.EventSigningExpired, enums.AggregateSignature, inbox),
		route[payloads.CertificateRevokedEvent](enums.EventCertificateRevoked, enums.AggregateCertificate, inbox),
	}

	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]EventDescriptor, len(routes))}
	for _, r := range routes {
		reg.routes[r.EventType] = r
	}
	return reg, nil
}

func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.routes[eventType]
	return desc, ok
}

// Resolve checks the row against its route and decodes the typed payload.
// Every failure is a NonRetryableError: retrying a malformed row cannot help.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("missing aggregate_id")
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("payload missing for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
