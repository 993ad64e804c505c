package documents

import (
	"time"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
)

// DocumentDTO is the transport shape of a document. Storage keys stay internal.
type DocumentDTO struct {
	ID              uuid.UUID            `json:"id"`
	GroupID         uuid.UUID            `json:"group_id"`
	DocumentType    enums.DocumentType   `json:"document_type"`
	FileName        string               `json:"file_name"`
	ContentType     string               `json:"content_type"`
	FileSizeBytes   int64                `json:"file_size_bytes"`
	AggregateStatus enums.DocumentStatus `json:"aggregate_status"`
	SigningMode     *enums.SigningMode   `json:"signing_mode,omitempty"`
	UploadedBy      uuid.UUID            `json:"uploaded_by"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// VersionDTO is the transport shape of one document version.
type VersionDTO struct {
	ID                uuid.UUID `json:"id"`
	VersionNumber     int       `json:"version_number"`
	FileName          string    `json:"file_name"`
	FileSizeBytes     int64     `json:"file_size_bytes"`
	ContentType       string    `json:"content_type"`
	ContentSHA256     string    `json:"content_sha256"`
	UploadedBy        uuid.UUID `json:"uploaded_by"`
	UploadedAt        time.Time `json:"uploaded_at"`
	ChangeDescription *string   `json:"change_description,omitempty"`
	IsCurrent         bool      `json:"is_current"`
}

func ToDocumentDTO(doc *models.Document) DocumentDTO {
	return DocumentDTO{
		ID:              doc.ID,
		GroupID:         doc.GroupID,
		DocumentType:    doc.DocumentType,
		FileName:        doc.CurrentFileName,
		ContentType:     doc.ContentType,
		FileSizeBytes:   doc.FileSizeBytes,
		AggregateStatus: doc.AggregateStatus,
		SigningMode:     doc.SigningMode,
		UploadedBy:      doc.UploadedBy,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func ToVersionDTO(v models.DocumentVersion) VersionDTO {
	return VersionDTO{
		ID:                v.ID,
		VersionNumber:     v.VersionNumber,
		FileName:          v.FileName,
		FileSizeBytes:     v.FileSizeBytes,
		ContentType:       v.ContentType,
		ContentSHA256:     v.ContentSHA256,
		UploadedBy:        v.UploadedBy,
		UploadedAt:        v.UploadedAt,
		ChangeDescription: v.ChangeDescription,
		IsCurrent:         v.IsCurrent,
	}
}

func ToVersionDTOs(rows []models.DocumentVersion) []VersionDTO {
	out := make([]VersionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToVersionDTO(row))
	}
	return out
}
