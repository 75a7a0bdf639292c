package rbac

import "fmt"

// Role is a tenant membership role
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleEditor Role = "EDITOR"
	RoleViewer Role = "VIEWER"
)

// AllRoles lists every role from highest to lowest rank
var AllRoles = []Role{RoleOwner, RoleAdmin, RoleEditor, RoleViewer}

var roleRank = map[Role]int{
	RoleOwner:  40,
	RoleAdmin:  30,
	RoleEditor: 20,
	RoleViewer: 10,
}

// Rank returns the numeric rank of a role. Unknown roles rank 0 and never
// meet any minimum.
func Rank(role Role) int {
	return roleRank[role]
}

// Meets reports whether current is at or above minimum
func Meets(current, minimum Role) bool {
	rank := Rank(current)
	return rank > 0 && rank >= Rank(minimum)
}

// Valid reports whether r is one of the four known roles
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// ParseRole parses a role name. Matching is case-sensitive.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}
