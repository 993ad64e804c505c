package enums

import "fmt"

// DocumentStatus is the aggregate signing state of a document. It is always
// derived from the document's signatures and never set independently.
type DocumentStatus string

const (
	DocumentStatusDraft           DocumentStatus = "draft"
	DocumentStatusSentForSigning  DocumentStatus = "sent_for_signing"
	DocumentStatusPartiallySigned DocumentStatus = "partially_signed"
	DocumentStatusFullySigned     DocumentStatus = "fully_signed"
)

var validDocumentStatuses = []DocumentStatus{
	DocumentStatusDraft,
	DocumentStatusSentForSigning,
	DocumentStatusPartiallySigned,
	DocumentStatusFullySigned,
}

// String implements fmt.Stringer.
func (s DocumentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DocumentStatus.
func (s DocumentStatus) IsValid() bool {
	for _, candidate := range validDocumentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDocumentStatus converts raw input into a DocumentStatus.
func ParseDocumentStatus(value string) (DocumentStatus, error) {
	for _, candidate := range validDocumentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document status %q", value)
}

// DeriveDocumentStatus computes the aggregate state from signature counts.
func DeriveDocumentStatus(total, signed int) DocumentStatus {
	switch {
	case total <= 0:
		return DocumentStatusDraft
	case signed <= 0:
		return DocumentStatusSentForSigning
	case signed < total:
		return DocumentStatusPartiallySigned
	default:
		return DocumentStatusFullySigned
	}
}
