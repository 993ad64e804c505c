package enums

import "fmt"

// NotificationType classifies entries in a user's signing inbox.
type NotificationType string

const (
	NotificationTypeSignatureRequested NotificationType = "signature_requested"
	NotificationTypeDocumentCompleted  NotificationType = "document_completed"
	NotificationTypeSigningExpired     NotificationType = "signing_expired"
	NotificationTypeCertificateRevoked NotificationType = "certificate_revoked"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeSignatureRequested,
	NotificationTypeDocumentCompleted,
	NotificationTypeSigningExpired,
	NotificationTypeCertificateRevoked,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
