package perms

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository used by tests and local
// development seeding. Role IDs are allocated from 100 upward so they never
// collide with the system roles.
type MemoryRepository struct {
	mu          sync.Mutex
	permissions []Permission
	roles       []Role
	overrides   []Override
	userRoles   map[int64][]int64
	nextID      int64
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{userRoles: make(map[int64][]int64), nextID: 100}
}

var _ Repository = (*MemoryRepository)(nil)

func (m *MemoryRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Permission(nil), m.permissions...), nil
}

func (m *MemoryRepository) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Role(nil), m.roles...), nil
}

func (m *MemoryRepository) ListOverrides(ctx context.Context) ([]Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Override(nil), m.overrides...), nil
}

func (m *MemoryRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.ID == id {
			return r, nil
		}
	}
	return Role{}, ErrNotFound
}

func (m *MemoryRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if role.ID == 0 {
		m.nextID++
		role.ID = m.nextID
	}
	m.roles = append(m.roles, role)
	return role, nil
}

func (m *MemoryRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.roles {
		if r.ID == role.ID {
			role.Slug = r.Slug
			role.BoardURI = r.BoardURI
			role.IsSystem = r.IsSystem
			m.roles[i] = role
			return role, nil
		}
	}
	return Role{}, ErrNotFound
}

func (m *MemoryRepository) DeleteRole(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.roles {
		if r.ID == id {
			if r.IsSystem {
				return 0, nil
			}
			m.roles = append(m.roles[:i], m.roles[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *MemoryRepository) SetOverride(ctx context.Context, o Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.overrides {
		if existing.RoleID == o.RoleID && existing.PermissionID == o.PermissionID {
			m.overrides[i] = o
			return nil
		}
	}
	m.overrides = append(m.overrides, o)
	return nil
}

func (m *MemoryRepository) ClearOverride(ctx context.Context, roleID int64, permissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.overrides {
		if existing.RoleID == roleID && existing.PermissionID == permissionID {
			m.overrides = append(m.overrides[:i], m.overrides[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemoryRepository) UserRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.userRoles[userID]...), nil
}

func (m *MemoryRepository) AssignRole(ctx context.Context, userID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.userRoles[userID] {
		if id == roleID {
			return nil
		}
	}
	m.userRoles[userID] = append(m.userRoles[userID], roleID)
	return nil
}

func (m *MemoryRepository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.userRoles[userID]
	for i, id := range ids {
		if id == roleID {
			m.userRoles[userID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemoryRepository) Seed(ctx context.Context, permissions []Permission, roles []Role, overrides []Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permissions = permissions
	m.roles = roles
	m.overrides = overrides
	return nil
}
