package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/enums"
)

// DocumentUploadedEvent is emitted when a document and its first version are created.
type DocumentUploadedEvent struct {
	DocumentID    uuid.UUID          `json:"document_id"`
	GroupID       uuid.UUID          `json:"group_id"`
	DocumentType  enums.DocumentType `json:"document_type"`
	VersionNumber int                `json:"version_number"`
	FileName      string             `json:"file_name"`
	UploadedBy    uuid.UUID          `json:"uploaded_by"`
}

// DocumentVersionedEvent is emitted for every version after the first.
type DocumentVersionedEvent struct {
	DocumentID        uuid.UUID `json:"document_id"`
	GroupID           uuid.UUID `json:"group_id"`
	VersionNumber     int       `json:"version_number"`
	FileName          string    `json:"file_name"`
	UploadedBy        uuid.UUID `json:"uploaded_by"`
	ChangeDescription *string   `json:"change_description,omitempty"`
}

// DocumentDeletedEvent is emitted when a document is soft-deleted.
type DocumentDeletedEvent struct {
	DocumentID uuid.UUID `json:"document_id"`
	GroupID    uuid.UUID `json:"group_id"`
	DeletedBy  uuid.UUID `json:"deleted_by"`
	DeletedAt  time.Time `json:"deleted_at"`
}

// SigningRequestedEvent asks the notification pipeline to invite a signer.
// It never carries the signing token; delivery of the token is the caller's job.
type SigningRequestedEvent struct {
	DocumentID     uuid.UUID         `json:"document_id"`
	GroupID        uuid.UUID         `json:"group_id"`
	SignatureID    uuid.UUID         `json:"signature_id"`
	SignerID       uuid.UUID         `json:"signer_id"`
	SignOrder      int               `json:"sign_order"`
	Mode           enums.SigningMode `json:"mode"`
	TokenExpiresAt time.Time         `json:"token_expires_at"`
	Message        *string           `json:"message,omitempty"`
}

// DocumentSignedEvent records one signer completing their signature.
type DocumentSignedEvent struct {
	DocumentID      uuid.UUID            `json:"document_id"`
	GroupID         uuid.UUID            `json:"group_id"`
	SignatureID     uuid.UUID            `json:"signature_id"`
	SignerID        uuid.UUID            `json:"signer_id"`
	SignedAt        time.Time            `json:"signed_at"`
	AggregateStatus enums.DocumentStatus `json:"aggregate_status"`
	CompletedCount  int                  `json:"completed_count"`
	TotalSigners    int                  `json:"total_signers"`
}

// DocumentFullySignedEvent is emitted once, when the last signature lands.
type DocumentFullySignedEvent struct {
	DocumentID   uuid.UUID `json:"document_id"`
	GroupID      uuid.UUID `json:"group_id"`
	TotalSigners int       `json:"total_signers"`
	CompletedAt  time.Time `json:"completed_at"`
}

// SigningExpiredEvent tells the group that a pending signer let their window lapse.
type SigningExpiredEvent struct {
	DocumentID     uuid.UUID `json:"document_id"`
	GroupID        uuid.UUID `json:"group_id"`
	SignatureID    uuid.UUID `json:"signature_id"`
	SignerID       uuid.UUID `json:"signer_id"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

// CertificateGeneratedEvent announces a new completion certificate.
type CertificateGeneratedEvent struct {
	CertificateID       string    `json:"certificate_id"`
	DocumentID          uuid.UUID `json:"document_id"`
	GroupID             uuid.UUID `json:"group_id"`
	DocumentContentHash string    `json:"document_content_hash"`
	ExpiresAt           time.Time `json:"expires_at"`
}

// CertificateRevokedEvent announces that a certificate can no longer be trusted.
type CertificateRevokedEvent struct {
	CertificateID string    `json:"certificate_id"`
	DocumentID    uuid.UUID `json:"document_id"`
	Reason        string    `json:"reason"`
	RevokedAt     time.Time `json:"revoked_at"`
}

// OrderingDocumentID lets the publisher order every event of one document.
func (e DocumentUploadedEvent) OrderingDocumentID() uuid.UUID     { return e.DocumentID }
func (e DocumentVersionedEvent) OrderingDocumentID() uuid.UUID    { return e.DocumentID }
func (e DocumentDeletedEvent) OrderingDocumentID() uuid.UUID      { return e.DocumentID }
func (e SigningRequestedEvent) OrderingDocumentID() uuid.UUID     { return e.DocumentID }
func (e DocumentSignedEvent) OrderingDocumentID() uuid.UUID       { return e.DocumentID }
func (e DocumentFullySignedEvent) OrderingDocumentID() uuid.UUID  { return e.DocumentID }
func (e SigningExpiredEvent) OrderingDocumentID() uuid.UUID       { return e.DocumentID }
func (e CertificateGeneratedEvent) OrderingDocumentID() uuid.UUID { return e.DocumentID }
func (e CertificateRevokedEvent) OrderingDocumentID() uuid.UUID   { return e.DocumentID }
