package certificates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/pkg/db/models"
)

// Repository persists completion certificates.
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

func (r *Repository) Create(ctx context.Context, cert *models.Certificate) error {
	return r.db.WithContext(ctx).Create(cert).Error
}

func (r *Repository) FindByCertificateID(ctx context.Context, certificateID string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := r.db.WithContext(ctx).Where("certificate_id = ?", certificateID).First(&cert).Error; err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *Repository) FindByDocumentID(ctx context.Context, documentID uuid.UUID) (*models.Certificate, error) {
	var cert models.Certificate
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&cert).Error; err != nil {
		return nil, err
	}
	return &cert, nil
}

// Revoke flags the certificate only if it is not revoked yet and reports
// whether this call made the change.
func (r *Repository) Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Certificate{}).
		Where("id = ? AND is_revoked = ?", id, false).
		Updates(map[string]any{
			"is_revoked":        true,
			"revocation_reason": reason,
			"revoked_at":        at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
