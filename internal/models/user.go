package models

// Role is the caller's role as carried in the session token
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ValidRoles defines the available roles in the system
var ValidRoles = []string{
	string(RoleAdmin),
	string(RoleUser),
}

// IsValidRole checks if a role is valid
func IsValidRole(role string) bool {
	for _, validRole := range ValidRoles {
		if role == validRole {
			return true
		}
	}
	return false
}

// ValidateRoles checks if all provided roles are valid
func ValidateRoles(roles []string) bool {
	for _, role := range roles {
		if !IsValidRole(role) {
			return false
		}
	}
	return len(roles) > 0
}

// EffectiveRole collapses a role list to the strongest role it contains.
// Unknown roles are ignored; a list without admin resolves to user.
func EffectiveRole(roles []string) Role {
	for _, r := range roles {
		if r == string(RoleAdmin) {
			return RoleAdmin
		}
	}
	return RoleUser
}
