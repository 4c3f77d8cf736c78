package perms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func defaultSnapshot(t *testing.T, mutate func(*MemoryRepository)) *Snapshot {
	t.Helper()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Seed(context.Background(), DefaultPermissions(), DefaultRoles(), DefaultOverrides()))
	if mutate != nil {
		mutate(repo)
	}
	store := NewStore(repo, nil, nil)
	snap, err := store.Current(context.Background())
	require.NoError(t, err)
	return snap
}

func actorWith(snap *Snapshot, userID int64, roleIDs ...int64) Actor {
	actor := Actor{UserID: userID, Anonymous: userID == 0}
	for _, id := range roleIDs {
		if role, ok := snap.RoleByID(id); ok {
			actor.Roles = append(actor.Roles, role)
		}
	}
	return actor
}

func TestResolveBaseValueFallback(t *testing.T) {
	snap := defaultSnapshot(t, nil)
	anon := actorWith(snap, 0, RoleAnonymous)

	// No role in the chain overrides board.post.create; catalog default wins.
	granted, err := snap.Resolve(anon, "test", PermPostCreate)
	require.NoError(t, err)
	require.True(t, granted)

	granted, err = snap.Resolve(anon, "test", PermBoardConfig)
	require.NoError(t, err)
	require.False(t, granted)
}

func TestResolveMostSpecificRoleWins(t *testing.T) {
	snap := defaultSnapshot(t, func(repo *MemoryRepository) {
		parent, _ := repo.CreateRole(context.Background(), Role{Slug: "janitor-lead", Name: "Janitor Lead"})
		child, _ := repo.CreateRole(context.Background(), Role{Slug: "janitor", Name: "Janitor", InheritID: parent.ID})
		_ = repo.SetOverride(context.Background(), Override{RoleID: parent.ID, PermissionID: PermPostDeleteOther, Value: false})
		_ = repo.SetOverride(context.Background(), Override{RoleID: child.ID, PermissionID: PermPostDeleteOther, Value: true})
	})

	var child Role
	for id := int64(100); id < 110; id++ {
		if r, ok := snap.RoleByID(id); ok && r.Slug == "janitor" {
			child = r
		}
	}
	require.NotZero(t, child.ID)

	granted, err := snap.Resolve(Actor{UserID: 7, Roles: []Role{child}}, "test", PermPostDeleteOther)
	require.NoError(t, err)
	require.True(t, granted, "child override must beat parent override")
}

func TestResolveORCombination(t *testing.T) {
	snap := defaultSnapshot(t, nil)
	actor := actorWith(snap, 7, RoleAnonymous, RoleVolunteer)

	// Anonymous does not grant delete.other; volunteer does. OR wins.
	granted, err := snap.Resolve(actor, "test", PermPostDeleteOther)
	require.NoError(t, err)
	require.True(t, granted)
}

func TestResolveAdminShortCircuit(t *testing.T) {
	snap := defaultSnapshot(t, nil)
	admin := actorWith(snap, 1, RoleAdmin)

	all, err := snap.ResolveAll(admin, "test")
	require.NoError(t, err)
	require.NotEmpty(t, all)
	for id, granted := range all {
		require.True(t, granted, "admin must resolve %s to true", id)
	}
}

func TestResolveUnknownPermission(t *testing.T) {
	snap := defaultSnapshot(t, nil)
	admin := actorWith(snap, 1, RoleAdmin)

	granted, err := snap.Resolve(admin, "test", "board.teleport")
	require.False(t, granted, "unknown atoms never grant, even for admins")

	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	require.Equal(t, IntegrityUnknownPermission, integrity.Kind)
}

func TestResolveBoardScopedRole(t *testing.T) {
	snap := defaultSnapshot(t, func(repo *MemoryRepository) {
		_, _ = repo.CreateRole(context.Background(), Role{
			ID: 50, Slug: "owner", BoardURI: "tech", Name: "Board Owner", InheritID: RoleOwner,
		})
	})
	owner := actorWith(snap, 9, 50)

	granted, err := snap.Resolve(owner, "tech", PermBoardConfig)
	require.NoError(t, err)
	require.True(t, granted, "board owner inherits board.config from the owner template")

	granted, err = snap.Resolve(owner, "anime", PermBoardConfig)
	require.NoError(t, err)
	require.False(t, granted, "board-scoped roles contribute nothing on other boards")
}

func TestResolveCycleFailsFast(t *testing.T) {
	snap := defaultSnapshot(t, func(repo *MemoryRepository) {
		repo.roles = append(repo.roles,
			Role{ID: 60, Slug: "loop-a", Name: "Loop A", InheritID: 61},
			Role{ID: 61, Slug: "loop-b", Name: "Loop B", InheritID: 60},
		)
	})
	looped, _ := snap.RoleByID(60)

	granted, err := snap.Resolve(Actor{UserID: 3, Roles: []Role{looped}}, "test", PermPostCreate)
	require.False(t, granted)

	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	require.Equal(t, IntegrityInheritCycle, integrity.Kind)
}

func TestResolveDanglingParentFailsSafe(t *testing.T) {
	snap := defaultSnapshot(t, func(repo *MemoryRepository) {
		repo.roles = append(repo.roles, Role{ID: 70, Slug: "orphan", Name: "Orphan", InheritID: 999})
		repo.overrides = append(repo.overrides, Override{RoleID: 70, PermissionID: PermPostDeleteOther, Value: true})
	})
	orphan, _ := snap.RoleByID(70)

	// The role's own overrides still apply; the missing tail is reported.
	granted, err := snap.Resolve(Actor{UserID: 3, Roles: []Role{orphan}}, "test", PermPostDeleteOther)
	require.True(t, granted)

	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	require.Equal(t, IntegrityDanglingParent, integrity.Kind)

	// Permissions it would only get from the missing parent stay denied.
	granted, _ = snap.Resolve(Actor{UserID: 3, Roles: []Role{orphan}}, "test", PermBoardConfig)
	require.False(t, granted)
}

func TestChainTerminationBound(t *testing.T) {
	snap := defaultSnapshot(t, nil)
	for _, role := range snap.roles {
		chain, err := snap.chain(role)
		require.NoError(t, err)
		require.LessOrEqual(t, len(chain), snap.RoleCount())
	}
}

func TestResolveDeterministic(t *testing.T) {
	snap := defaultSnapshot(t, nil)
	actor := actorWith(snap, 7, RoleAnonymous, RoleVolunteer)

	first, err := snap.ResolveAll(actor, "test")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := snap.ResolveAll(actor, "test")
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestUnaccountableInheritsAnonymous(t *testing.T) {
	snap := defaultSnapshot(t, nil)
	proxy := actorWith(snap, 0, RoleAnonymous, RoleUnaccountable)

	granted, err := snap.Resolve(proxy, "test", "board.post.report")
	require.NoError(t, err)
	require.True(t, granted)
}

func TestCapcode(t *testing.T) {
	snap := defaultSnapshot(t, nil)
	mod := actorWith(snap, 4, RoleModerator)

	capcode, ok := snap.Capcode(mod, RoleModerator)
	require.True(t, ok)
	require.Equal(t, "Global Volunteer", capcode)

	_, ok = snap.Capcode(mod, RoleOwner)
	require.False(t, ok, "capcodes require holding the role")

	anon := actorWith(snap, 0, RoleAnonymous)
	_, ok = snap.Capcode(anon, RoleModerator)
	require.False(t, ok, "anonymous actors never sign with a capcode")
}

func TestServiceResolveSafeFalseOnIntegrityFault(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.Seed(context.Background(), DefaultPermissions(), DefaultRoles(), DefaultOverrides()))
	svc := NewService(repo, NewStore(repo, nil, nil), nil)

	granted := svc.Resolve(context.Background(), Actor{Anonymous: true}, "test", "board.teleport")
	require.False(t, granted)

	_, err := svc.ResolveErr(context.Background(), Actor{Anonymous: true}, "test", "board.teleport")
	require.Error(t, err)
	require.True(t, errors.As(err, new(*IntegrityError)))
}
