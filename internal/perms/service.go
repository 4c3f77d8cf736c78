package perms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("perms: not found")

// ErrSystemRole indicates an attempt to edit or delete a system role.
var ErrSystemRole = errors.New("perms: system roles cannot be modified")

// ErrWouldCycle indicates a role edit that would close an inheritance loop.
var ErrWouldCycle = errors.New("perms: inheritance would form a cycle")

// Service orchestrates permission resolution and role administration.
type Service struct {
	repo   Repository
	store  *Store
	logger *slog.Logger
}

// NewService constructs a Service around a snapshot store.
func NewService(repo Repository, store *Store, logger *slog.Logger) *Service {
	return &Service{repo: repo, store: store, logger: logger}
}

// Snapshot returns the current resolution snapshot.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	return s.store.Current(ctx)
}

// Resolve answers a single permission query, failing toward denial.
// Integrity faults are logged for operators; the caller gets a safe false.
func (s *Service) Resolve(ctx context.Context, actor Actor, boardURI, permissionID string) bool {
	v, err := s.ResolveErr(ctx, actor, boardURI, permissionID)
	if err != nil {
		s.logIntegrity(err, boardURI, permissionID)
	}
	return v
}

// ResolveErr answers a single permission query and surfaces integrity
// faults to the caller.
func (s *Service) ResolveErr(ctx context.Context, actor Actor, boardURI, permissionID string) (bool, error) {
	snap, err := s.store.Current(ctx)
	if err != nil {
		return false, err
	}
	return snap.Resolve(actor, boardURI, permissionID)
}

// ResolveAll computes every declared atom for the actor on a board.
func (s *Service) ResolveAll(ctx context.Context, actor Actor, boardURI string) (map[string]bool, error) {
	snap, err := s.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	all, err := snap.ResolveAll(actor, boardURI)
	if err != nil {
		s.logIntegrity(err, boardURI, "")
	}
	return all, err
}

// Invalidate publishes a fresh snapshot to every resolver instance. Gated
// on sys.cache at the HTTP layer.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.store.Invalidate(ctx)
}

// ListRoles returns every role in the current snapshot's backing store.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role after validating its inheritance target.
func (s *Service) CreateRole(ctx context.Context, role Role) (Role, error) {
	role.Slug = strings.TrimSpace(strings.ToLower(role.Slug))
	if role.Slug == "" {
		return Role{}, errors.New("perms: role slug required")
	}
	if role.Name == "" {
		role.Name = role.Slug
	}
	if err := s.checkInheritance(ctx, 0, role.InheritID); err != nil {
		return Role{}, err
	}
	created, err := s.repo.CreateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.invalidateAfterWrite(ctx)
	return created, nil
}

// UpdateRole updates a role's mutable attributes, rejecting edits that
// would close an inheritance cycle or touch a system role.
func (s *Service) UpdateRole(ctx context.Context, role Role) (Role, error) {
	existing, err := s.GetRole(ctx, role.ID)
	if err != nil {
		return Role{}, err
	}
	if existing.IsSystem {
		return Role{}, ErrSystemRole
	}
	if err := s.checkInheritance(ctx, role.ID, role.InheritID); err != nil {
		return Role{}, err
	}
	updated, err := s.repo.UpdateRole(ctx, role)
	if err != nil {
		if isNoRows(err) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	s.invalidateAfterWrite(ctx)
	return updated, nil
}

// DeleteRole removes a non-system role.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	rows, err := s.repo.DeleteRole(ctx, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		role, getErr := s.GetRole(ctx, id)
		if getErr == nil && role.IsSystem {
			return ErrSystemRole
		}
		return ErrNotFound
	}
	s.invalidateAfterWrite(ctx)
	return nil
}

// SetOverride pins an explicit value for (role, permission).
func (s *Service) SetOverride(ctx context.Context, o Override) error {
	snap, err := s.store.Current(ctx)
	if err != nil {
		return err
	}
	if _, ok := snap.PermissionByID(o.PermissionID); !ok {
		return &IntegrityError{Kind: IntegrityUnknownPermission, PermissionID: o.PermissionID}
	}
	if err := s.repo.SetOverride(ctx, o); err != nil {
		return err
	}
	s.invalidateAfterWrite(ctx)
	return nil
}

// ClearOverride removes the explicit value for (role, permission).
func (s *Service) ClearOverride(ctx context.Context, roleID int64, permissionID string) error {
	if err := s.repo.ClearOverride(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.invalidateAfterWrite(ctx)
	return nil
}

// AssignRole grants a role to a user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	return s.repo.AssignRole(ctx, userID, roleID)
}

// RemoveRole revokes a role from a user.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return s.repo.RemoveRole(ctx, userID, roleID)
}

// RolesForUser resolves a user's role assignments against the snapshot.
func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	ids, err := s.repo.UserRoleIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap, err := s.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	roles := make([]Role, 0, len(ids))
	for _, id := range ids {
		if role, ok := snap.RoleByID(id); ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

// CreateBoardOwnerRole creates the board-scoped owner role a new board
// receives, inheriting from the global owner template.
func (s *Service) CreateBoardOwnerRole(ctx context.Context, boardURI string) (Role, error) {
	created, err := s.repo.CreateRole(ctx, Role{
		Slug:      "owner",
		BoardURI:  boardURI,
		Name:      "Board Owner",
		Capcode:   "Board Owner",
		InheritID: RoleOwner,
	})
	if err != nil {
		return Role{}, err
	}
	s.invalidateAfterWrite(ctx)
	return created, nil
}

// SeedDefaults installs the built-in catalog, system roles and stock
// overrides, then publishes a fresh snapshot.
func (s *Service) SeedDefaults(ctx context.Context) error {
	if err := s.repo.Seed(ctx, DefaultPermissions(), DefaultRoles(), DefaultOverrides()); err != nil {
		return err
	}
	return s.store.Invalidate(ctx)
}

// checkInheritance validates that pointing roleID at inheritID keeps the
// graph a forest. roleID 0 means a new role.
func (s *Service) checkInheritance(ctx context.Context, roleID, inheritID int64) error {
	if inheritID == 0 {
		return nil
	}
	if inheritID == roleID {
		return ErrWouldCycle
	}
	snap, err := s.store.Current(ctx)
	if err != nil {
		return err
	}
	seen := map[int64]struct{}{}
	cur := inheritID
	for cur != 0 {
		if cur == roleID {
			return ErrWouldCycle
		}
		if _, dup := seen[cur]; dup {
			return ErrWouldCycle
		}
		seen[cur] = struct{}{}
		parent, ok := snap.RoleByID(cur)
		if !ok {
			return fmt.Errorf("perms: inherit target %d: %w", cur, ErrNotFound)
		}
		cur = parent.InheritID
	}
	return nil
}

func (s *Service) invalidateAfterWrite(ctx context.Context) {
	if err := s.store.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.Error("perms invalidate after write", slog.Any("error", err))
	}
}

func (s *Service) logIntegrity(err error, boardURI, permissionID string) {
	if s.logger == nil {
		return
	}
	s.logger.Error("permission integrity fault",
		slog.String("board", boardURI),
		slog.String("permission", permissionID),
		slog.Any("error", err))
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound)
}
