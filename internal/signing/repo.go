package signing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
)

// ErrNotPending is returned when a conditional Pending -> Signed update found
// the signature already signed.
var ErrNotPending = errors.New("signature is not pending")

// Repository persists signatures.
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

// CreateBatch inserts the signatures of one send.
func (r *Repository) CreateBatch(ctx context.Context, rows []models.Signature) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// ListByDocument returns the document's signatures in signing order.
func (r *Repository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]models.Signature, error) {
	var rows []models.Signature
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("sign_order ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) CountByDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Signature{}).
		Where("document_id = ?", documentID).
		Count(&count).Error
	return count, err
}

// FindByDocumentAndSigner resolves the signature a token is bound to.
func (r *Repository) FindByDocumentAndSigner(ctx context.Context, documentID, signerID uuid.UUID) (*models.Signature, error) {
	var sig models.Signature
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND signer_id = ?", documentID, signerID).
		First(&sig).Error
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

// MarkSigned moves a pending signature to signed. The status predicate makes
// the transition happen at most once.
func (r *Repository) MarkSigned(ctx context.Context, sig *models.Signature) error {
	res := r.db.WithContext(ctx).
		Model(&models.Signature{}).
		Where("id = ? AND status = ?", sig.ID, enums.SignatureStatusPending).
		Updates(map[string]any{
			"status":                 enums.SignatureStatusSigned,
			"signed_at":              sig.SignedAt,
			"signature_artifact_key": sig.SignatureArtifactKey,
			"ip_address":             sig.IPAddress,
			"device_info":            sig.DeviceInfo,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

// LapsedSignature is a pending signature whose window closed.
type LapsedSignature struct {
	SignatureID    uuid.UUID
	DocumentID     uuid.UUID
	GroupID        uuid.UUID
	SignerID       uuid.UUID
	TokenExpiresAt time.Time
}

// ListLapsedPending returns pending signatures of live documents whose window
// closed in [from, to).
func (r *Repository) ListLapsedPending(ctx context.Context, from, to time.Time, limit int) ([]LapsedSignature, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []LapsedSignature
	err := r.db.WithContext(ctx).
		Table("signatures").
		Select("signatures.id AS signature_id, signatures.document_id, documents.group_id, signatures.signer_id, signatures.token_expires_at").
		Joins("JOIN documents ON documents.id = signatures.document_id").
		Where("signatures.status = ?", enums.SignatureStatusPending).
		Where("signatures.token_expires_at >= ? AND signatures.token_expires_at < ?", from, to).
		Where("documents.is_deleted = ?", false).
		Order("signatures.token_expires_at ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
