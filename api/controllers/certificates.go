package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/coownly/esign-backend/api/responses"
	"github.com/coownly/esign-backend/api/validators"
	"github.com/coownly/esign-backend/internal/certificates"
	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
	"github.com/coownly/esign-backend/pkg/logger"
)

type revokeCertificateRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func certificateParam(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "certificateId"))
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "certificate id required").WithDetails(map[string]any{"field": "certificateId"})
	}
	return id, nil
}

func writeCertificate(w http.ResponseWriter, r *http.Request, logg *logger.Logger, status int, svcErr error, dto func() (certificates.CertificateDTO, error)) {
	if svcErr != nil {
		responses.WriteError(r.Context(), logg, w, svcErr)
		return
	}
	out, err := dto()
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode certificate"))
		return
	}
	responses.WriteSuccessStatus(w, status, out)
}

// CertificateGenerate issues (or returns the existing) certificate of
// completion for a fully signed document.
func CertificateGenerate(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "certificate service unavailable"))
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

		cert, err := svc.GenerateCertificate(r.Context(), documentID, requester)
		writeCertificate(w, r, logg, http.StatusCreated, err, func() (certificates.CertificateDTO, error) {
			return certificates.ToCertificateDTO(cert)
		})
	}
}

// PublicCertificateVerify checks a certificate, optionally against the hash
// of a file the caller holds.
func PublicCertificateVerify(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		certificateID, err := certificateParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var supplied *string
		if r.URL.Query().Has("hash") {
			hash := r.URL.Query().Get("hash")
			supplied = &hash
		}

		result, err := svc.VerifyCertificate(r.Context(), certificateID, supplied)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func PublicCertificateGet(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		certificateID, err := certificateParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cert, err := svc.GetCertificate(r.Context(), certificateID)
		writeCertificate(w, r, logg, http.StatusOK, err, func() (certificates.CertificateDTO, error) {
			return certificates.ToCertificateDTO(cert)
		})
	}
}

// AdminCertificateRevoke permanently revokes a certificate.
func AdminCertificateRevoke(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		certificateID, err := certificateParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload revokeCertificateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cert, err := svc.RevokeCertificate(r.Context(), certificateID, strings.TrimSpace(payload.Reason), actor)
		writeCertificate(w, r, logg, http.StatusOK, err, func() (certificates.CertificateDTO, error) {
			return certificates.ToCertificateDTO(cert)
		})
	}
}
