package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Certificate is the completion record of a fully signed document. Only the
// revocation columns change after insert.
type Certificate struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	DocumentID          uuid.UUID       `gorm:"column:document_id;type:uuid;not null;uniqueIndex:ux_certificates_document"`
	CertificateID       string          `gorm:"column:certificate_id;not null;uniqueIndex:ux_certificates_certificate_id"`
	DocumentContentHash string          `gorm:"column:document_content_hash;not null"`
	FileName            string          `gorm:"column:file_name;not null"`
	TotalSigners        int             `gorm:"column:total_signers;not null"`
	SignerSummary       json.RawMessage `gorm:"column:signer_summary_json;type:jsonb;not null"`
	Seal                string          `gorm:"column:seal;not null"`
	GeneratedBy         uuid.UUID       `gorm:"column:generated_by;type:uuid;not null"`
	GeneratedAt         time.Time       `gorm:"column:generated_at;not null"`
	ExpiresAt           time.Time       `gorm:"column:expires_at;not null"`
	IsRevoked           bool            `gorm:"column:is_revoked;not null;default:false"`
	RevocationReason    *string         `gorm:"column:revocation_reason"`
	RevokedAt           *time.Time      `gorm:"column:revoked_at"`
}
