package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/enums"
)

// Notification is one entry in a user's signing inbox. EventID ties it back
// to the outbox event that produced it; a user gets at most one row per event.
type Notification struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_notifications_user_event,priority:1;index:ix_notifications_user_created,priority:1"`
	EventID    uuid.UUID              `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_notifications_user_event,priority:2"`
	DocumentID *uuid.UUID             `gorm:"column:document_id;type:uuid"`
	Type       enums.NotificationType `gorm:"column:type;type:text;not null"`
	Title      string                 `gorm:"column:title;type:text;not null"`
	Message    string                 `gorm:"column:message;type:text;not null"`
	Link       *string                `gorm:"column:link;type:text"`
	ReadAt     *time.Time             `gorm:"column:read_at"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime;index:ix_notifications_user_created,priority:2"`
}
