package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/enums"
)

// GroupMembership links a user with a co-ownership group and captures their role.
type GroupMembership struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	GroupID   uuid.UUID       `gorm:"column:group_id;type:uuid;not null;uniqueIndex:ux_group_memberships_group_user,priority:1"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_group_memberships_group_user,priority:2"`
	Role      enums.GroupRole `gorm:"column:role;type:text;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
