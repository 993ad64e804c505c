package enums

import "fmt"

// PlatformRole is the account-wide role carried in access tokens.
type PlatformRole string

const (
	PlatformRoleUser  PlatformRole = "user"
	PlatformRoleAdmin PlatformRole = "admin"
)

var validPlatformRoles = []PlatformRole{
	PlatformRoleUser,
	PlatformRoleAdmin,
}

// String implements fmt.Stringer.
func (r PlatformRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known PlatformRole.
func (r PlatformRole) IsValid() bool {
	for _, candidate := range validPlatformRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParsePlatformRole converts raw input into a PlatformRole.
func ParsePlatformRole(value string) (PlatformRole, error) {
	for _, candidate := range validPlatformRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid platform role %q", value)
}
