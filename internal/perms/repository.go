package perms

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for the role graph, catalog
// and overrides.
type Repository interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListOverrides(ctx context.Context) ([]Override, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id int64) (int64, error)
	SetOverride(ctx context.Context, o Override) error
	ClearOverride(ctx context.Context, roleID int64, permissionID string) error
	UserRoleIDs(ctx context.Context, userID int64) ([]int64, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	Seed(ctx context.Context, permissions []Permission, roles []Role, overrides []Override) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const roleColumns = `role_id, slug, COALESCE(board_uri, ''), COALESCE(caste, ''), name, COALESCE(capcode, ''), COALESCE(inherit_id, 0), is_system`

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Slug, &r.BoardURI, &r.Caste, &r.Name, &r.Capcode, &r.InheritID, &r.IsSystem)
	return r, err
}

// ListPermissions returns the full permission catalog.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_id, base_value FROM permissions ORDER BY permission_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.BaseValue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListRoles returns every role.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY role_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// ListOverrides returns every role-permission override row.
func (r *PGRepository) ListOverrides(ctx context.Context) ([]Override, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id, permission_id, value FROM role_permissions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.RoleID, &o.PermissionID, &o.Value); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE role_id = $1`, id))
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `
		INSERT INTO roles (slug, board_uri, caste, name, capcode, inherit_id, is_system)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, 0), $7)
		RETURNING `+roleColumns,
		role.Slug, role.BoardURI, role.Caste, role.Name, role.Capcode, role.InheritID, role.IsSystem))
}

// UpdateRole updates an existing role's mutable attributes.
func (r *PGRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `
		UPDATE roles
		SET name = $2, capcode = NULLIF($3, ''), inherit_id = NULLIF($4, 0), caste = NULLIF($5, '')
		WHERE role_id = $1
		RETURNING `+roleColumns,
		role.ID, role.Name, role.Capcode, role.InheritID, role.Caste))
}

// DeleteRole removes a role and returns the number of rows deleted.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE role_id = $1 AND NOT is_system`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetOverride upserts one (role, permission) value.
func (r *PGRepository) SetOverride(ctx context.Context, o Override) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_id, permission_id) DO UPDATE SET value = EXCLUDED.value`,
		o.RoleID, o.PermissionID, o.Value)
	return err
}

// ClearOverride removes one (role, permission) row.
func (r *PGRepository) ClearOverride(ctx context.Context, roleID int64, permissionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return err
}

// UserRoleIDs returns the role IDs held by a user.
func (r *PGRepository) UserRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AssignRole links a role to a user.
func (r *PGRepository) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, roleID)
	return err
}

// RemoveRole unlinks a role from a user.
func (r *PGRepository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

// Seed upserts the built-in catalog, system roles and stock overrides.
func (r *PGRepository) Seed(ctx context.Context, permissions []Permission, roles []Role, overrides []Override) error {
	for _, p := range permissions {
		if _, err := r.pool.Exec(ctx, `
			INSERT INTO permissions (permission_id, base_value) VALUES ($1, $2)
			ON CONFLICT (permission_id) DO UPDATE SET base_value = EXCLUDED.base_value`,
			p.ID, p.BaseValue); err != nil {
			return err
		}
	}
	for _, role := range roles {
		if _, err := r.pool.Exec(ctx, `
			INSERT INTO roles (role_id, slug, board_uri, caste, name, capcode, inherit_id, is_system)
			VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, 0), $8)
			ON CONFLICT (role_id) DO UPDATE
			SET slug = EXCLUDED.slug, name = EXCLUDED.name, capcode = EXCLUDED.capcode,
			    inherit_id = EXCLUDED.inherit_id, is_system = EXCLUDED.is_system`,
			role.ID, role.Slug, role.BoardURI, role.Caste, role.Name, role.Capcode, role.InheritID, role.IsSystem); err != nil {
			return err
		}
	}
	for _, o := range overrides {
		if err := r.SetOverride(ctx, o); err != nil {
			return err
		}
	}
	return nil
}
