package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentVersion is one immutable upload of a document's bytes.
type DocumentVersion struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DocumentID        uuid.UUID `gorm:"column:document_id;type:uuid;not null;uniqueIndex:ux_document_versions_number,priority:1;uniqueIndex:ux_document_versions_current,where:is_current = true"`
	VersionNumber     int       `gorm:"column:version_number;not null;uniqueIndex:ux_document_versions_number,priority:2"`
	StorageKey        string    `gorm:"column:storage_key;not null"`
	FileName          string    `gorm:"column:file_name;not null"`
	FileSizeBytes     int64     `gorm:"column:file_size_bytes;not null"`
	ContentType       string    `gorm:"column:content_type;not null"`
	ContentSHA256     string    `gorm:"column:content_sha256;not null"`
	UploadedBy        uuid.UUID `gorm:"column:uploaded_by;type:uuid;not null"`
	UploadedAt        time.Time `gorm:"column:uploaded_at;not null"`
	ChangeDescription *string   `gorm:"column:change_description"`
	IsCurrent         bool      `gorm:"column:is_current;not null;default:false"`
}
