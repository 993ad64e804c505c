package enums

import "fmt"

// SigningMode controls whether signers must follow their assigned order.
type SigningMode string

const (
	SigningModeParallel   SigningMode = "parallel"
	SigningModeSequential SigningMode = "sequential"
)

var validSigningModes = []SigningMode{
	SigningModeParallel,
	SigningModeSequential,
}

// String implements fmt.Stringer.
func (m SigningMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known SigningMode.
func (m SigningMode) IsValid() bool {
	for _, candidate := range validSigningModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseSigningMode converts raw input into a SigningMode.
func ParseSigningMode(value string) (SigningMode, error) {
	for _, candidate := range validSigningModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid signing mode %q", value)
}
