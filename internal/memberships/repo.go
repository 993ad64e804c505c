package memberships

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
)

// Repository exposes group membership persistence operations.
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

// IsMember reports whether the user belongs to the group and, if so, their role.
func (r *Repository) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, enums.GroupRole, error) {
	membership, err := r.GetMembership(ctx, groupID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, membership.Role, nil
}

// GetMembership retrieves a membership by group and user.
func (r *Repository) GetMembership(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMembership, error) {
	var membership models.GroupMembership
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// CreateMembership persists a new membership record.
func (r *Repository) CreateMembership(ctx context.Context, groupID, userID uuid.UUID, role enums.GroupRole) (*models.GroupMembership, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid group role %q", role)
	}

	membership := &models.GroupMembership{
		ID:      uuid.New(),
		GroupID: groupID,
		UserID:  userID,
		Role:    role,
	}
	if err := r.db.WithContext(ctx).Create(membership).Error; err != nil {
		return nil, err
	}
	return membership, nil
}

// UserHasRole reports whether the user holds one of the provided roles for the group.
func (r *Repository) UserHasRole(ctx context.Context, groupID, userID uuid.UUID, roles ...enums.GroupRole) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ? AND role IN ?", groupID, userID, roles).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListGroupMembers returns the group's memberships in join order.
func (r *Repository) ListGroupMembers(ctx context.Context, groupID uuid.UUID) ([]models.GroupMembership, error) {
	var rows []models.GroupMembership
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
