package documents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
)

// ErrStaleDocument is returned when a compare-and-swap on lock_version lost
// against a concurrent writer.
var ErrStaleDocument = errors.New("document was modified concurrently")

// Repository persists documents and their versions.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *Repository) CreateVersion(ctx context.Context, version *models.DocumentVersion) error {
	return r.db.WithContext(ctx).Create(version).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByIDForUpdate loads the document row under a row lock. Only meaningful
// inside a transaction.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// MaxVersionNumber returns the highest version number of the document, 0 when
// none exist.
func (r *Repository) MaxVersionNumber(ctx context.Context, documentID uuid.UUID) (int, error) {
	var highest int
	err := r.db.WithContext(ctx).
		Model(&models.DocumentVersion{}).
		Select("COALESCE(MAX(version_number), 0)").
		Where("document_id = ?", documentID).
		Scan(&highest).Error
	if err != nil {
		return 0, err
	}
	return highest, nil
}

// ClearCurrentVersion unsets is_current on every version of the document.
func (r *Repository) ClearCurrentVersion(ctx context.Context, documentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DocumentVersion{}).
		Where("document_id = ? AND is_current = ?", documentID, true).
		Update("is_current", false).Error
}

// ListVersions returns versions newest first.
func (r *Repository) ListVersions(ctx context.Context, documentID uuid.UUID) ([]models.DocumentVersion, error) {
	var rows []models.DocumentVersion
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("version_number DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) CurrentVersion(ctx context.Context, documentID uuid.UUID) (*models.DocumentVersion, error) {
	var version models.DocumentVersion
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND is_current = ?", documentID, true).
		First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// UpdateCurrentFile points the document at a new current version. The update
// only applies when lock_version still equals expectedLock.
func (r *Repository) UpdateCurrentFile(ctx context.Context, doc *models.Document, expectedLock int64) error {
	return r.casUpdate(ctx, doc.ID, expectedLock, map[string]any{
		"current_file_name":   doc.CurrentFileName,
		"current_storage_key": doc.CurrentStorageKey,
		"content_type":        doc.ContentType,
		"file_size_bytes":     doc.FileSizeBytes,
	})
}

// UpdateSigningState persists a recomputed aggregate status and signing mode.
func (r *Repository) UpdateSigningState(ctx context.Context, id uuid.UUID, status enums.DocumentStatus, mode *enums.SigningMode, expectedLock int64) error {
	updates := map[string]any{"aggregate_status": status}
	if mode != nil {
		updates["signing_mode"] = *mode
	}
	return r.casUpdate(ctx, id, expectedLock, updates)
}

// MarkDeleted soft-deletes the document.
func (r *Repository) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time, expectedLock int64) error {
	return r.casUpdate(ctx, id, expectedLock, map[string]any{
		"is_deleted": true,
		"deleted_at": at,
	})
}

func (r *Repository) casUpdate(ctx context.Context, id uuid.UUID, expectedLock int64, updates map[string]any) error {
	updates["lock_version"] = gorm.Expr("lock_version + 1")
	res := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ? AND lock_version = ?", id, expectedLock).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleDocument
	}
	return nil
}
