package signing

import (
	"time"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
)

// SignatureDTO is the transport shape of a signature. The token fingerprint
// and artifact key stay internal.
type SignatureDTO struct {
	ID             uuid.UUID             `json:"id"`
	DocumentID     uuid.UUID             `json:"document_id"`
	SignerID       uuid.UUID             `json:"signer_id"`
	Order          int                   `json:"order"`
	Mode           enums.SigningMode     `json:"mode"`
	Status         enums.SignatureStatus `json:"status"`
	SignedAt       *time.Time            `json:"signed_at,omitempty"`
	TokenExpiresAt time.Time             `json:"token_expires_at"`
}

// IssuedSignatureDTO carries the one-time signing token next to its signature.
type IssuedSignatureDTO struct {
	SignatureDTO
	Token string `json:"token"`
}

type SendResultDTO struct {
	DocumentID      uuid.UUID            `json:"document_id"`
	AggregateStatus enums.DocumentStatus `json:"aggregate_status"`
	Mode            enums.SigningMode    `json:"mode"`
	TokenExpiresAt  time.Time            `json:"token_expires_at"`
	Signatures      []IssuedSignatureDTO `json:"signatures"`
}

type SignResultDTO struct {
	Signature       SignatureDTO         `json:"signature"`
	AggregateStatus enums.DocumentStatus `json:"aggregate_status"`
	CompletedCount  int                  `json:"completed_count"`
	TotalSigners    int                  `json:"total_signers"`
}

func ToSignatureDTO(sig models.Signature) SignatureDTO {
	return SignatureDTO{
		ID:             sig.ID,
		DocumentID:     sig.DocumentID,
		SignerID:       sig.SignerID,
		Order:          sig.SignOrder,
		Mode:           sig.SigningMode,
		Status:         sig.Status,
		SignedAt:       sig.SignedAt,
		TokenExpiresAt: sig.TokenExpiresAt,
	}
}

func ToSendResultDTO(res *SendResult) SendResultDTO {
	out := SendResultDTO{
		DocumentID:      res.DocumentID,
		AggregateStatus: res.AggregateStatus,
		Mode:            res.Mode,
		TokenExpiresAt:  res.TokenExpiresAt,
		Signatures:      make([]IssuedSignatureDTO, 0, len(res.Signatures)),
	}
	for _, issued := range res.Signatures {
		out.Signatures = append(out.Signatures, IssuedSignatureDTO{
			SignatureDTO: ToSignatureDTO(issued.Signature),
			Token:        issued.Token,
		})
	}
	return out
}

func ToSignResultDTO(res *SignResult) SignResultDTO {
	return SignResultDTO{
		Signature:       ToSignatureDTO(res.Signature),
		AggregateStatus: res.AggregateStatus,
		CompletedCount:  res.CompletedCount,
		TotalSigners:    res.TotalSigners,
	}
}
