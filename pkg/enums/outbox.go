package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateDocument    OutboxAggregateType = "document"
	AggregateSignature   OutboxAggregateType = "signature"
	AggregateCertificate OutboxAggregateType = "certificate"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateDocument,
	AggregateSignature,
	AggregateCertificate,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventDocumentUploaded     OutboxEventType = "document_uploaded"
	EventDocumentVersioned    OutboxEventType = "document_versioned"
	EventDocumentDeleted      OutboxEventType = "document_deleted"
	EventSigningRequested     OutboxEventType = "signing_requested"
	EventDocumentSigned       OutboxEventType = "document_signed"
	EventDocumentFullySigned  OutboxEventType = "document_fully_signed"
	EventSigningExpired       OutboxEventType = "signing_window_expired"
	EventCertificateGenerated OutboxEventType = "certificate_generated"
	EventCertificateRevoked   OutboxEventType = "certificate_revoked"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDocumentUploaded,
	EventDocumentVersioned,
	EventDocumentDeleted,
	EventSigningRequested,
	EventDocumentSigned,
	EventDocumentFullySigned,
	EventSigningExpired,
	EventCertificateGenerated,
	EventCertificateRevoked,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
