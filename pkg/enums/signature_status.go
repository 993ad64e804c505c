package enums

import "fmt"

// SignatureStatus is the persisted per-signer state.
type SignatureStatus string

const (
	SignatureStatusPending SignatureStatus = "pending"
	SignatureStatusSigned  SignatureStatus = "signed"
)

var validSignatureStatuses = []SignatureStatus{
	SignatureStatusPending,
	SignatureStatusSigned,
}

// String implements fmt.Stringer.
func (s SignatureStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SignatureStatus.
func (s SignatureStatus) IsValid() bool {
	for _, candidate := range validSignatureStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSignatureStatus converts raw input into a SignatureStatus.
func ParseSignatureStatus(value string) (SignatureStatus, error) {
	for _, candidate := range validSignatureStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid signature status %q", value)
}

// SignerState is the read-side view of a signature. Expired is computed from
// the token horizon and never stored.
type SignerState string

const (
	SignerStatePending SignerState = "pending"
	SignerStateSigned  SignerState = "signed"
	SignerStateExpired SignerState = "expired"
)
