package enums

import "fmt"

// GroupRole represents a co-ownership group permissions role.
type GroupRole string

const (
	GroupRoleOwner  GroupRole = "owner"
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

var validGroupRoles = []GroupRole{
	GroupRoleOwner,
	GroupRoleAdmin,
	GroupRoleMember,
}

// String implements fmt.Stringer.
func (r GroupRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known GroupRole.
func (r GroupRole) IsValid() bool {
	for _, candidate := range validGroupRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role may manage documents it did not upload.
func (r GroupRole) IsAdmin() bool {
	return r == GroupRoleOwner || r == GroupRoleAdmin
}

// ParseGroupRole converts raw input into a GroupRole.
func ParseGroupRole(value string) (GroupRole, error) {
	for _, candidate := range validGroupRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid group role %q", value)
}
