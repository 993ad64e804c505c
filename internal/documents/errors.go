package documents

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/internal/locks"
	"github.com/coownly/esign-backend/pkg/db/models"
	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
)

func validationError(field, message string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"field": field})
}

func notFoundError(documentID uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "document not found").
		WithDetails(map[string]any{"document_id": documentID})
}

func notDraftError(doc *models.Document) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, "document has already been sent for signing").
		WithDetails(map[string]any{"document_id": doc.ID, "aggregate_status": doc.AggregateStatus})
}

func fullySignedError(documentID uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, "fully signed documents cannot be deleted").
		WithDetails(map[string]any{"document_id": documentID})
}

// mapPersistenceError keeps typed errors and translates lock and row-level
// failures for the caller.
func mapPersistenceError(err error, documentID uuid.UUID, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFoundError(documentID)
	case errors.Is(err, ErrStaleDocument), errors.Is(err, locks.ErrNotAcquired):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "document is being modified, retry").
			WithDetails(map[string]any{"document_id": documentID})
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
