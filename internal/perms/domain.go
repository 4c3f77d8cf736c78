package perms

import "fmt"

// Permission is a single dot-namespaced capability atom. BaseValue applies
// when no role in a user's inheritance chains carries an explicit override.
type Permission struct {
	ID        string
	BaseValue bool
}

// Role is a named bundle of permission overrides. BoardURI is empty for
// global roles. InheritID references at most one parent role (0 = none);
// the graph must stay a forest.
type Role struct {
	ID        int64
	Slug      string
	BoardURI  string
	Caste     string
	Name      string
	Capcode   string
	InheritID int64
	IsSystem  bool
}

// Override pins a permission to an explicit value for one role. Children
// re-derive through the chain walk; the row itself is never inherited.
type Override struct {
	RoleID       int64
	PermissionID string
	Value        bool
}

// UserRole links a user to a role they hold.
type UserRole struct {
	UserID int64
	RoleID int64
}

// Well-known system role IDs, fixed at seed time.
const (
	RoleAnonymous     int64 = 1
	RoleAdmin         int64 = 2
	RoleModerator     int64 = 3
	RoleOwner         int64 = 4
	RoleVolunteer     int64 = 5
	RoleUnaccountable int64 = 6
)

// Actor is the subject of a permission query. Anonymous actors hold the
// synthetic anonymous role (and unaccountable, when classified as such)
// and never hold board-scoped roles.
type Actor struct {
	UserID    int64
	Anonymous bool
	Roles     []Role
}

// HoldsRole reports whether the actor holds the role with the given ID.
func (a Actor) HoldsRole(id int64) bool {
	for _, r := range a.Roles {
		if r.ID == id {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor holds the site administrator role.
func (a Actor) IsAdmin() bool {
	return a.HoldsRole(RoleAdmin)
}

// Integrity error kinds.
const (
	IntegrityUnknownPermission = "unknown_permission"
	IntegrityInheritCycle      = "inherit_cycle"
	IntegrityDanglingParent    = "dangling_parent"
)

// IntegrityError reports a configuration fault discovered during
// resolution. Resolution always fails toward denial when one is raised.
type IntegrityError struct {
	Kind         string
	RoleID       int64
	PermissionID string
}

func (e *IntegrityError) Error() string {
	switch e.Kind {
	case IntegrityUnknownPermission:
		return fmt.Sprintf("perms: unknown permission %q", e.PermissionID)
	case IntegrityInheritCycle:
		return fmt.Sprintf("perms: inheritance cycle through role %d", e.RoleID)
	case IntegrityDanglingParent:
		return fmt.Sprintf("perms: role %d inherits from a nonexistent role", e.RoleID)
	}
	return fmt.Sprintf("perms: integrity fault %q", e.Kind)
}
