package users

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/majestrate/infinity-next/internal/perms"
)

type memoryRepo struct {
	users  map[int64]*User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]*User{}, nextID: 1}
}

func (m *memoryRepo) GetByID(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepo) Create(_ context.Context, user User) (*User, error) {
	for _, u := range m.users {
		if u.Username == user.Username {
			return nil, ErrUsernameTaken
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = &user
	return &user, nil
}

func (m *memoryRepo) SetActive(_ context.Context, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	return nil
}

func newTestService(t *testing.T, classifier Classifier) (*Service, *memoryRepo, *perms.Service) {
	t.Helper()
	permRepo := perms.NewMemoryRepository()
	require.NoError(t, permRepo.Seed(context.Background(), perms.DefaultPermissions(), perms.DefaultRoles(), perms.DefaultOverrides()))
	permsSvc := perms.NewService(permRepo, perms.NewStore(permRepo, nil, nil), nil)

	repo := newMemoryRepo()
	svc := NewService(repo, permsSvc, classifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, repo, permsSvc
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)

	user, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "hunter2hunter2"})
	require.NoError(t, err)
	require.True(t, user.IsActive)
	require.NotEqual(t, "hunter2hunter2", user.PasswordHash)

	stored := repo.users[user.ID]
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter2hunter2")))
}

func TestRegisterValidatesUsername(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "a", Password: "hunter2hunter2"})
	require.ErrorIs(t, err, ErrUsernameInvalid)

	_, err = svc.Register(context.Background(), RegisterInput{Username: "has spaces", Password: "hunter2hunter2"})
	require.ErrorIs(t, err, ErrUsernameInvalid)
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "hunter2hunter2"})
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "hunter2hunter2"})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestActorForUserCarriesAssignedRoles(t *testing.T) {
	svc, _, permsSvc := newTestService(t, nil)

	require.NoError(t, permsSvc.AssignRole(context.Background(), 7, perms.RoleModerator))
	actor, err := svc.ActorForUser(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, actor.Anonymous)
	require.True(t, actor.HoldsRole(perms.RoleModerator))
}

func TestAnonymousActorGetsAnonymousRole(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	actor := svc.AnonymousActor(context.Background(), netip.MustParseAddr("203.0.113.5"))
	require.True(t, actor.Anonymous)
	require.True(t, actor.HoldsRole(perms.RoleAnonymous))
	require.False(t, actor.HoldsRole(perms.RoleUnaccountable))
}

func TestAnonymousActorUnaccountableForProxyRanges(t *testing.T) {
	classifier := NewCIDRClassifier("203.0.113.0/24, 2001:db8::/32")
	svc, _, _ := newTestService(t, classifier)

	actor := svc.AnonymousActor(context.Background(), netip.MustParseAddr("203.0.113.5"))
	require.True(t, actor.HoldsRole(perms.RoleUnaccountable))

	actor = svc.AnonymousActor(context.Background(), netip.MustParseAddr("2001:db8::1"))
	require.True(t, actor.HoldsRole(perms.RoleUnaccountable))

	actor = svc.AnonymousActor(context.Background(), netip.MustParseAddr("198.51.100.1"))
	require.False(t, actor.HoldsRole(perms.RoleUnaccountable))
}

func TestCIDRClassifierSkipsInvalidEntries(t *testing.T) {
	classifier := NewCIDRClassifier("garbage, 10.0.0.0/8")
	require.True(t, classifier.IsUnaccountable(context.Background(), netip.MustParseAddr("10.1.2.3")))
	require.False(t, classifier.IsUnaccountable(context.Background(), netip.MustParseAddr("192.0.2.1")))
}
