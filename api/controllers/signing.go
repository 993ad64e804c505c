package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/api/middleware"
	"github.com/coownly/esign-backend/api/responses"
	"github.com/coownly/esign-backend/api/validators"
	"github.com/coownly/esign-backend/internal/signing"
	"github.com/coownly/esign-backend/pkg/enums"
	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
	"github.com/coownly/esign-backend/pkg/logger"
)

const (
	signingTokenHeader     = "X-Signing-Token"
	signatureArtifactField = "signature"
	deviceInfoMaxLen       = 512
)

type sendForSigningRequest struct {
	SignerIDs []string   `json:"signer_ids" validate:"required,min=1,dive,uuid"`
	Mode      string     `json:"mode" validate:"required"`
	DueDate   *time.Time `json:"due_date"`
	Message   *string    `json:"message" validate:"omitempty,max=2000"`
}

func (req sendForSigningRequest) toInput(documentID, requester uuid.UUID) (signing.SendInput, error) {
	mode, err := enums.ParseSigningMode(strings.TrimSpace(req.Mode))
	if err != nil {
		return signing.SendInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid signing mode").WithDetails(map[string]any{"field": "mode"})
	}

	signers := make([]uuid.UUID, 0, len(req.SignerIDs))
	for _, raw := range req.SignerIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return signing.SendInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid signer id").WithDetails(map[string]any{"field": "signer_ids"})
		}
		signers = append(signers, id)
	}

	var message *string
	if req.Message != nil {
		if trimmed := strings.TrimSpace(*req.Message); trimmed != "" {
			message = &trimmed
		}
	}

	return signing.SendInput{
		DocumentID: documentID,
		Requester:  requester,
		SignerIDs:  signers,
		Mode:       mode,
		DueDate:    req.DueDate,
		Message:    message,
	}, nil
}

// DocumentSend opens a signing round and returns each signer's one-time token.
func DocumentSend(svc signing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signing service unavailable"))
			return
		}

		requester, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		documentID, err := pathUUID(r, "documentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload sendForSigningRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(documentID, requester)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SendForSigning(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, signing.ToSendResultDTO(result))
	}
}

func DocumentStatus(svc signing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		documentID, err := pathUUID(r, "documentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetStatus(r.Context(), documentID, requester)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// PublicSignDocument records a signature. The signing token is the only
// credential; it arrives in X-Signing-Token or as a bearer token.
func PublicSignDocument(svc signing.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signing service unavailable"))
			return
		}

		documentID, err := pathUUID(r, "documentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token := strings.TrimSpace(r.Header.Get(signingTokenHeader))
		if token == "" {
			token = validators.BearerToken(r.Header.Get("Authorization"))
		}
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInvalidToken, "signing token required"))
			return
		}

		// a missing artifact is judged after the token, inside the workflow
		artifact, err := validators.ReadOptionalMultipartFile(w, r, signatureArtifactField, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SignDocument(r.Context(), signing.SignInput{
			DocumentID:  documentID,
			Token:       token,
			Artifact:    artifact.Data,
			ContentType: artifact.ContentType,
			IPAddress:   middleware.ClientIP(r),
			DeviceInfo:  validators.SanitizeString(r.UserAgent(), deviceInfoMaxLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, signing.ToSignResultDTO(result))
	}
}
