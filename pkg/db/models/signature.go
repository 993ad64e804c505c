package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/enums"
)

// Signature is the per-signer record created when a document is sent for
// signing. Status only ever moves pending -> signed.
type Signature struct {
	ID                     uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	DocumentID             uuid.UUID             `gorm:"column:document_id;type:uuid;not null;uniqueIndex:ux_signatures_document_signer,priority:1"`
	SignerID               uuid.UUID             `gorm:"column:signer_id;type:uuid;not null;uniqueIndex:ux_signatures_document_signer,priority:2"`
	SignOrder              int                   `gorm:"column:sign_order;not null"`
	SigningMode            enums.SigningMode     `gorm:"column:signing_mode;type:text;not null"`
	Status                 enums.SignatureStatus `gorm:"column:status;type:text;not null"`
	SignedAt               *time.Time            `gorm:"column:signed_at"`
	SignatureArtifactKey   *string               `gorm:"column:signature_artifact_key"`
	IssuedTokenFingerprint string                `gorm:"column:issued_token_fingerprint;not null"`
	TokenExpiresAt         time.Time             `gorm:"column:token_expires_at;not null"`
	IPAddress              *string               `gorm:"column:ip_address"`
	DeviceInfo             *string               `gorm:"column:device_info"`
	CreatedAt              time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
