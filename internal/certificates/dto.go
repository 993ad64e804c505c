package certificates

import (
	"time"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/db/models"
)

// CertificateDTO is the transport shape of a certificate. The seal stays
// internal.
type CertificateDTO struct {
	CertificateID       string          `json:"certificate_id"`
	DocumentID          uuid.UUID       `json:"document_id"`
	DocumentContentHash string          `json:"document_content_hash"`
	FileName            string          `json:"file_name"`
	TotalSigners        int             `json:"total_signers"`
	Signers             []SignerSummary `json:"signers"`
	GeneratedAt         time.Time       `json:"generated_at"`
	ExpiresAt           time.Time       `json:"expires_at"`
	IsRevoked           bool            `json:"is_revoked"`
	RevocationReason    *string         `json:"revocation_reason,omitempty"`
	RevokedAt           *time.Time      `json:"revoked_at,omitempty"`
}

func ToCertificateDTO(cert *models.Certificate) (CertificateDTO, error) {
	signers, err := DecodeSummary(cert.SignerSummary)
	if err != nil {
		return CertificateDTO{}, err
	}
	return CertificateDTO{
		CertificateID:       cert.CertificateID,
		DocumentID:          cert.DocumentID,
		DocumentContentHash: cert.DocumentContentHash,
		FileName:            cert.FileName,
		TotalSigners:        cert.TotalSigners,
		Signers:             signers,
		GeneratedAt:         cert.GeneratedAt,
		ExpiresAt:           cert.ExpiresAt,
		IsRevoked:           cert.IsRevoked,
		RevocationReason:    cert.RevocationReason,
		RevokedAt:           cert.RevokedAt,
	}, nil
}
