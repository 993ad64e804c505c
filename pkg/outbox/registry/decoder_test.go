package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/enums"
	"github.com/coownly/esign-backend/pkg/outbox"
	"github.com/coownly/esign-backend/pkg/outbox/payloads"
)

func envelopeBytes(t *testing.T, version int, eventID string, data string) []byte {
	t.Helper()
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: version, EventID: eventID, Data: json.RawMessage(data)})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

func TestDecodersDecodeTypedPayload(t *testing.T) {
	d := NewDecoders()
	Register[payloads.CertificateRevokedEvent](d, enums.EventCertificateRevoked, 1)

	eventID := uuid.New()
	body := envelopeBytes(t, 1, eventID.String(), `{"certificate_id":"CERT-7QK2","reason":"key compromised"}`)

	got, err := d.Decode(enums.EventCertificateRevoked, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EventID != eventID || got.Version != 1 {
		t.Fatalf("unexpected delivery %+v", got)
	}
	payload, ok := got.Payload.(payloads.CertificateRevokedEvent)
	if !ok || payload.CertificateID != "CERT-7QK2" {
		t.Fatalf("unexpected payload %#v", got.Payload)
	}
}

func TestDecodersUnknownVersion(t *testing.T) {
	d := NewDecoders()
	Register[payloads.SigningRequestedEvent](d, enums.EventSigningRequested, 1)

	_, err := d.Decode(enums.EventSigningRequested, envelopeBytes(t, 2, uuid.NewString(), `{}`))
	if !errors.Is(err, ErrUnknownPayload) {
		t.Fatalf("expected ErrUnknownPayload, got %v", err)
	}
	if !d.Handles(enums.EventSigningRequested) || d.Handles(enums.EventDocumentUploaded) {
		t.Fatal("Handles must follow registrations")
	}
}

func TestDecodersRejectBadEnvelope(t *testing.T) {
	d := NewDecoders()
	if _, err := d.Decode(enums.EventSigningRequested, []byte("not json")); err == nil {
		t.Fatal("expected envelope error")
	}
	if _, err := d.Decode(enums.EventSigningRequested, envelopeBytes(t, 1, "nope", `{}`)); err == nil {
		t.Fatal("expected event id error")
	}
}
