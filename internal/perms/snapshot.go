package perms

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Snapshot is an immutable view of the role graph, overrides and permission
// catalog. Readers borrow the current snapshot; writers publish a new one.
type Snapshot struct {
	version   uint64
	loadedAt  time.Time
	roles     map[int64]Role
	overrides map[overrideKey]bool
	perms     map[string]Permission
}

type overrideKey struct {
	roleID       int64
	permissionID string
}

// Version identifies the snapshot generation.
func (s *Snapshot) Version() uint64 { return s.version }

// LoadedAt reports when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// RoleByID returns a role from the snapshot.
func (s *Snapshot) RoleByID(id int64) (Role, bool) {
	r, ok := s.roles[id]
	return r, ok
}

// PermissionByID returns a catalog atom from the snapshot.
func (s *Snapshot) PermissionByID(id string) (Permission, bool) {
	p, ok := s.perms[id]
	return p, ok
}

// RoleCount returns the number of roles in the snapshot.
func (s *Snapshot) RoleCount() int { return len(s.roles) }

func newSnapshot(version uint64, roles []Role, overrides []Override, permissions []Permission) *Snapshot {
	snap := &Snapshot{
		version:   version,
		loadedAt:  time.Now().UTC(),
		roles:     make(map[int64]Role, len(roles)),
		overrides: make(map[overrideKey]bool, len(overrides)),
		perms:     make(map[string]Permission, len(permissions)),
	}
	for _, r := range roles {
		snap.roles[r.ID] = r
	}
	for _, o := range overrides {
		snap.overrides[overrideKey{roleID: o.RoleID, permissionID: o.PermissionID}] = o.Value
	}
	for _, p := range permissions {
		snap.perms[p.ID] = p
	}
	return snap
}

// InvalidationChannel is the redis pub/sub channel used to broadcast
// snapshot invalidations to every resolver instance.
const InvalidationChannel = "perms:invalidate"

// Store owns the current snapshot. Loads are deduplicated through
// singleflight; Invalidate rebuilds locally and broadcasts over redis so
// other instances reload too. Readers never see a partially built snapshot.
type Store struct {
	repo    Repository
	rdb     *redis.Client
	logger  *slog.Logger
	version atomic.Uint64
	current atomic.Pointer[Snapshot]
	group   singleflight.Group
}

// NewStore constructs a Store. The redis client may be nil, in which case
// invalidations stay local to this process.
func NewStore(repo Repository, rdb *redis.Client, logger *slog.Logger) *Store {
	return &Store{repo: repo, rdb: rdb, logger: logger}
}

// Current returns the active snapshot, loading it on first use.
func (s *Store) Current(ctx context.Context) (*Snapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	return s.Reload(ctx)
}

// Reload builds a fresh snapshot from the repository and swaps it in.
// Concurrent callers share a single load.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	v, err, _ := s.group.Do("reload", func() (any, error) {
		roles, err := s.repo.ListRoles(ctx)
		if err != nil {
			return nil, err
		}
		overrides, err := s.repo.ListOverrides(ctx)
		if err != nil {
			return nil, err
		}
		permissions, err := s.repo.ListPermissions(ctx)
		if err != nil {
			return nil, err
		}
		snap := newSnapshot(s.version.Add(1), roles, overrides, permissions)
		s.current.Store(snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Invalidate reloads the local snapshot and broadcasts the invalidation.
func (s *Store) Invalidate(ctx context.Context) error {
	if _, err := s.Reload(ctx); err != nil {
		return err
	}
	if s.rdb == nil {
		return nil
	}
	if err := s.rdb.Publish(ctx, InvalidationChannel, "reload").Err(); err != nil {
		return errors.Join(errors.New("perms: publish invalidation"), err)
	}
	return nil
}

// Listen reloads the snapshot whenever an invalidation is broadcast.
// It blocks until the context is cancelled.
func (s *Store) Listen(ctx context.Context) {
	if s.rdb == nil {
		<-ctx.Done()
		return
	}
	sub := s.rdb.Subscribe(ctx, InvalidationChannel)
	defer func() {
		_ = sub.Close()
	}()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if _, err := s.Reload(ctx); err != nil && s.logger != nil {
				s.logger.Error("perms snapshot reload", slog.Any("error", err))
			}
		}
	}
}
