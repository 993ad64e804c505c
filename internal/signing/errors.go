package signing

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/internal/documents"
	"github.com/coownly/esign-backend/internal/locks"
	"github.com/coownly/esign-backend/internal/tokens"
	"github.com/coownly/esign-backend/pkg/db/models"
	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
	"github.com/coownly/esign-backend/pkg/metrics"
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

// tokenError converts token failures to the API taxonomy and passes other
// errors through.
func tokenError(err error) error {
	var failure *tokens.Failure
	if errors.As(err, &failure) {
		return failure.APIError()
	}
	return err
}

func mapPersistenceError(err error, documentID uuid.UUID, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFoundError(documentID)
	case errors.Is(err, ErrNotPending):
		return pkgerrors.Wrap(pkgerrors.CodeAlreadySigned, err, "signature already recorded").
			WithDetails(map[string]any{"document_id": documentID})
	case errors.Is(err, documents.ErrStaleDocument), errors.Is(err, locks.ErrNotAcquired):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "document is being modified, retry").
			WithDetails(map[string]any{"document_id": documentID})
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSigned
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeInvalidToken:
		return metrics.OutcomeInvalidToken
	case pkgerrors.CodeExpired:
		return metrics.OutcomeExpired
	case pkgerrors.CodeAlreadySigned:
		return metrics.OutcomeAlreadySigned
	case pkgerrors.CodeOutOfOrder:
		return metrics.OutcomeOutOfOrder
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeConflict:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
