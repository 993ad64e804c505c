package controllers

import (
	"net/http"

	"github.com/coownly/esign-backend/api/responses"
	"github.com/coownly/esign-backend/api/validators"
	"github.com/coownly/esign-backend/internal/documents"
	"github.com/coownly/esign-backend/pkg/enums"
	pkgerrors "github.com/coownly/esign-backend/pkg/errors"
	"github.com/coownly/esign-backend/pkg/logger"
)

const (
	uploadFileField          = "file"
	changeDescriptionMaxLen  = 500
	documentTypeFormField    = "document_type"
	changeDescriptionFormKey = "change_description"
)

// DocumentUpload stores a new document in a group from a multipart upload.
func DocumentUpload(svc documents.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "document service unavailable"))
			return
		}

		requester, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		file, err := validators.ReadMultipartFile(w, r, uploadFileField, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		docType := enums.DocumentTypeOther
		if raw := validators.FormValue(r, documentTypeFormField, 64); raw != nil {
			parsed, parseErr := enums.ParseDocumentType(*raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid document_type").WithDetails(map[string]any{"field": documentTypeFormField}))
				return
			}
			docType = parsed
		}

		doc, err := svc.CreateDocument(r.Context(), groupID, requester, documents.FileMeta{
			FileName:     file.FileName,
			ContentType:  file.ContentType,
			SizeBytes:    int64(len(file.Data)),
			DocumentType: docType,
		}, file.Data)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, documents.ToDocumentDTO(doc))
	}
}

func DocumentGet(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
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

		doc, err := svc.GetDocument(r.Context(), documentID, requester)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, documents.ToDocumentDTO(doc))
	}
}

// DocumentVersionUpload appends a version to an existing document.
func DocumentVersionUpload(svc documents.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
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

		file, err := validators.ReadMultipartFile(w, r, uploadFileField, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		description := validators.FormValue(r, changeDescriptionFormKey, changeDescriptionMaxLen)

		version, err := svc.UploadNewVersion(r.Context(), documentID, requester, documents.FileMeta{
			FileName:    file.FileName,
			ContentType: file.ContentType,
			SizeBytes:   int64(len(file.Data)),
		}, file.Data, description)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, documents.ToVersionDTO(*version))
	}
}

func DocumentVersionsList(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
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

		versions, err := svc.ListVersions(r.Context(), documentID, requester)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, documents.ToVersionDTOs(versions))
	}
}

// DocumentDownload redirects to a short-lived URL for the current version.
func DocumentDownload(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
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

		link, err := svc.DownloadURL(r.Context(), documentID, requester)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		http.Redirect(w, r, link.URL, http.StatusFound)
	}
}

func DocumentDelete(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.SoftDelete(r.Context(), documentID, requester); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
