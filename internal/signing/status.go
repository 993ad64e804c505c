package signing

import (
	"time"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
)

// SignerState is the read-time view of a signature. Expired is never
// persisted; it is derived from the token window.
type SignerState string

const (
	SignerStatePending SignerState = "pending"
	SignerStateSigned  SignerState = "signed"
	SignerStateExpired SignerState = "expired"
)

// StateAt derives the signer's state at now.
func StateAt(sig models.Signature, now time.Time) SignerState {
	if sig.Status == enums.SignatureStatusSigned {
		return SignerStateSigned
	}
	if now.After(sig.TokenExpiresAt) {
		return SignerStateExpired
	}
	return SignerStatePending
}

// SignerView is one row of the status report.
type SignerView struct {
	SignatureID    uuid.UUID   `json:"signature_id"`
	SignerID       uuid.UUID   `json:"signer_id"`
	Order          int         `json:"order"`
	State          SignerState `json:"status"`
	SignedAt       *time.Time  `json:"signed_at,omitempty"`
	TokenExpiresAt time.Time   `json:"token_expires_at"`
}

// StatusView summarizes a document's signing progress.
type StatusView struct {
	DocumentID           uuid.UUID            `json:"document_id"`
	AggregateStatus      enums.DocumentStatus `json:"aggregate_status"`
	Mode                 *enums.SigningMode   `json:"mode,omitempty"`
	TotalSigners         int                  `json:"total_signers"`
	CompletedCount       int                  `json:"completed_count"`
	PendingCount         int                  `json:"pending_count"`
	ExpiredCount         int                  `json:"expired_count"`
	CompletionPercentage float64              `json:"completion_percentage"`
	Signers              []SignerView         `json:"signers"`
}

// BuildStatus computes the report from the signature set. The aggregate status
// comes from the signatures, not from the stored column.
func BuildStatus(documentID uuid.UUID, sigs []models.Signature, now time.Time) StatusView {
	view := StatusView{
		DocumentID:   documentID,
		TotalSigners: len(sigs),
		Signers:      make([]SignerView, 0, len(sigs)),
	}
	for _, sig := range sigs {
		state := StateAt(sig, now)
		switch state {
		case SignerStateSigned:
			view.CompletedCount++
		case SignerStateExpired:
			view.ExpiredCount++
		}
		if view.Mode == nil {
			mode := sig.SigningMode
			view.Mode = &mode
		}
		view.Signers = append(view.Signers, SignerView{
			SignatureID:    sig.ID,
			SignerID:       sig.SignerID,
			Order:          sig.SignOrder,
			State:          state,
			SignedAt:       sig.SignedAt,
			TokenExpiresAt: sig.TokenExpiresAt,
		})
	}
	view.PendingCount = view.TotalSigners - view.CompletedCount
	view.AggregateStatus = enums.DeriveDocumentStatus(view.TotalSigners, view.CompletedCount)
	if view.TotalSigners > 0 {
		view.CompletionPercentage = 100 * float64(view.CompletedCount) / float64(view.TotalSigners)
	}
	return view
}

// countSigned returns how many signatures are signed.
func countSigned(sigs []models.Signature) int {
	signed := 0
	for _, sig := range sigs {
		if sig.Status == enums.SignatureStatusSigned {
			signed++
		}
	}
	return signed
}

// blockingSigner returns the first lower-order signature that is not yet
// signed, or nil when sig may sign now.
func blockingSigner(sig models.Signature, sigs []models.Signature) *models.Signature {
	if sig.SigningMode != enums.SigningModeSequential {
		return nil
	}
	for i := range sigs {
		other := sigs[i]
		if other.ID == sig.ID {
			continue
		}
		if other.SignOrder < sig.SignOrder && other.Status != enums.SignatureStatusSigned {
			return &other
		}
	}
	return nil
}
