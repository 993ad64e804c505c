package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/enums"
)

// Document is the signable record owned by a co-ownership group. The current
// file attributes mirror the DocumentVersion flagged is_current.
type Document struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	GroupID           uuid.UUID            `gorm:"column:group_id;type:uuid;not null"`
	DocumentType      enums.DocumentType   `gorm:"column:document_type;type:text;not null"`
	CurrentFileName   string               `gorm:"column:current_file_name;not null"`
	CurrentStorageKey string               `gorm:"column:current_storage_key;not null"`
	ContentType       string               `gorm:"column:content_type;not null"`
	FileSizeBytes     int64                `gorm:"column:file_size_bytes;not null"`
	AggregateStatus   enums.DocumentStatus `gorm:"column:aggregate_status;type:text;not null"`
	SigningMode       *enums.SigningMode   `gorm:"column:signing_mode;type:text"`
	UploadedBy        uuid.UUID            `gorm:"column:uploaded_by;type:uuid;not null"`
	LockVersion       int64                `gorm:"column:lock_version;not null;default:0"`
	IsDeleted         bool                 `gorm:"column:is_deleted;not null;default:false"`
	DeletedAt         *time.Time           `gorm:"column:deleted_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
