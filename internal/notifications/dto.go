package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/db/models"
	"github.com/coownly/esign-backend/pkg/enums"
)

type NotificationDTO struct {
	ID         uuid.UUID              `json:"id"`
	Type       enums.NotificationType `json:"type"`
	Title      string                 `json:"title"`
	Message    string                 `json:"message"`
	DocumentID *uuid.UUID             `json:"document_id,omitempty"`
	Link       *string                `json:"link,omitempty"`
	ReadAt     *time.Time             `json:"read_at,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

func ToNotificationDTO(n models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:         n.ID,
		Type:       n.Type,
		Title:      n.Title,
		Message:    n.Message,
		DocumentID: n.DocumentID,
		Link:       n.Link,
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
}
