package perms

import "errors"

// Resolve computes the effective value of one permission atom for the actor
// on the given board (empty boardURI = site context).
//
// Unknown atoms resolve false and raise an integrity error; they never
// grant. The site administrator role short-circuits every declared atom to
// true. Otherwise each held role that is global or scoped to the board
// contributes the first explicit override found walking its inheritance
// chain upward, falling back to the catalog base value, and contributions
// combine with logical OR.
func (s *Snapshot) Resolve(actor Actor, boardURI, permissionID string) (bool, error) {
	perm, ok := s.perms[permissionID]
	if !ok {
		return false, &IntegrityError{Kind: IntegrityUnknownPermission, PermissionID: permissionID}
	}
	if actor.IsAdmin() {
		return true, nil
	}

	var faults []error
	granted := false
	for _, role := range actor.Roles {
		if role.BoardURI != "" && role.BoardURI != boardURI {
			continue
		}
		chain, err := s.chain(role)
		if err != nil {
			var integrity *IntegrityError
			if errors.As(err, &integrity) && integrity.Kind == IntegrityInheritCycle {
				// A cycle is a hard consistency fault; never silently succeed.
				return false, err
			}
			// Dangling parent: the chain collected so far still counts,
			// failing toward least privilege for the missing tail.
			faults = append(faults, err)
		}
		if s.contribution(chain, permissionID, perm.BaseValue) {
			granted = true
		}
	}
	return granted, errors.Join(faults...)
}

// ResolveAll computes every declared atom for bulk consumers. Integrity
// faults are joined into the returned error; the map always carries a safe
// value for every atom.
func (s *Snapshot) ResolveAll(actor Actor, boardURI string) (map[string]bool, error) {
	out := make(map[string]bool, len(s.perms))
	var faults []error
	for id := range s.perms {
		v, err := s.Resolve(actor, boardURI, id)
		if err != nil {
			faults = append(faults, err)
		}
		out[id] = v
	}
	return out, errors.Join(faults...)
}

// chain walks the inheritance chain from the role to its root, most
// specific first. Walks are bounded by the role count; revisiting a role
// is reported as a cycle rather than looping.
func (s *Snapshot) chain(role Role) ([]Role, error) {
	seen := map[int64]struct{}{role.ID: {}}
	out := []Role{role}
	cur := role
	for cur.InheritID != 0 {
		parent, ok := s.roles[cur.InheritID]
		if !ok {
			return out, &IntegrityError{Kind: IntegrityDanglingParent, RoleID: cur.ID}
		}
		if _, dup := seen[parent.ID]; dup {
			return out, &IntegrityError{Kind: IntegrityInheritCycle, RoleID: parent.ID}
		}
		seen[parent.ID] = struct{}{}
		out = append(out, parent)
		cur = parent
	}
	return out, nil
}

// contribution returns the chain's vote for a permission: the first
// explicit override found from the role itself upward wins, otherwise the
// catalog base value.
func (s *Snapshot) contribution(chain []Role, permissionID string, baseValue bool) bool {
	for _, role := range chain {
		if v, ok := s.overrides[overrideKey{roleID: role.ID, permissionID: permissionID}]; ok {
			return v
		}
	}
	return baseValue
}

// Capcode returns the display label for the role if the actor holds it and
// the role carries a nonempty capcode.
func (s *Snapshot) Capcode(actor Actor, roleID int64) (string, bool) {
	if actor.Anonymous {
		return "", false
	}
	for _, r := range actor.Roles {
		if r.ID == roleID {
			if role, ok := s.roles[r.ID]; ok && role.Capcode != "" {
				return role.Capcode, true
			}
			return "", false
		}
	}
	return "", false
}
