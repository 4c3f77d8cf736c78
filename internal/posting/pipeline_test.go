package posting

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/majestrate/infinity-next/internal/bans"
	"github.com/majestrate/infinity-next/internal/boards"
	"github.com/majestrate/infinity-next/internal/perms"
)

type memPostRepo struct {
	mu       sync.Mutex
	posts    []Post
	lastPost map[string]time.Time
	nextID   int64
	failNext error
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{lastPost: map[string]time.Time{}, nextID: 1}
}

func (m *memPostRepo) CreatePost(_ context.Context, post *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	post.ID = m.nextID
	m.nextID++
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	m.posts = append(m.posts, *post)
	return nil
}

func (m *memPostRepo) LastPostTime(_ context.Context, ip string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPost[ip], nil
}

type memBanRepo struct {
	bans   map[int64]*bans.Ban
	nextID int64
}

func newMemBanRepo() *memBanRepo {
	return &memBanRepo{bans: map[int64]*bans.Ban{}, nextID: 1}
}

func (m *memBanRepo) Create(_ context.Context, ban bans.Ban) (*bans.Ban, error) {
	ban.ID = m.nextID
	m.nextID++
	if ban.CreatedAt.IsZero() {
		ban.CreatedAt = time.Now()
	}
	m.bans[ban.ID] = &ban
	return &ban, nil
}

func (m *memBanRepo) Get(_ context.Context, id int64) (*bans.Ban, error) {
	b, ok := m.bans[id]
	if !ok {
		return nil, bans.ErrNotFound
	}
	return b, nil
}

func (m *memBanRepo) ActiveCandidates(_ context.Context, boardURI string, now time.Time) ([]bans.Ban, error) {
	var out []bans.Ban
	for _, b := range m.bans {
		if b.BoardURI != "" && b.BoardURI != boardURI {
			continue
		}
		if !b.Active(now) {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (m *memBanRepo) Lift(_ context.Context, id int64, at time.Time) error {
	b, ok := m.bans[id]
	if !ok {
		return bans.ErrNotFound
	}
	b.LiftedAt = &at
	return nil
}

func (m *memBanRepo) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeStorage struct {
	mu    sync.Mutex
	sizes map[uuid.UUID]int64
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{sizes: map[uuid.UUID]int64{}}
}

func (f *fakeStorage) put(ref uuid.UUID, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes[ref] = size
}

func (f *fakeStorage) Stat(_ context.Context, ref uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	size, ok := f.sizes[ref]
	if !ok {
		return 0, ErrArtifactMissing
	}
	return size, nil
}

type fakeVerifier struct {
	err   error
	calls int
}

func (f *fakeVerifier) Verify(context.Context, string, string) error {
	f.calls++
	return f.err
}

type fixture struct {
	pipeline *Pipeline
	repo     *memPostRepo
	banRepo  *memBanRepo
	storage  *fakeStorage
	verifier *fakeVerifier
	cfg      *boards.Config
	perms    *perms.Service
	permRepo *perms.MemoryRepository
	clock    time.Time
}

func newFixture(t *testing.T, withRedis bool) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	permRepo := perms.NewMemoryRepository()
	require.NoError(t, permRepo.Seed(context.Background(), perms.DefaultPermissions(), perms.DefaultRoles(), perms.DefaultOverrides()))
	permsSvc := perms.NewService(permRepo, perms.NewStore(permRepo, nil, nil), nil)

	cfg := boards.NewConfig()
	banRepo := newMemBanRepo()
	bansSvc := bans.NewService(banRepo, cfg, permsSvc, logger)

	repo := newMemPostRepo()
	storage := newFakeStorage()
	verifier := &fakeVerifier{}

	var flood *FloodGuard
	if withRedis {
		mr := miniredis.RunT(t)
		flood = NewFloodGuard(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	}

	f := &fixture{
		pipeline: NewPipeline(repo, cfg, permsSvc, bansSvc, storage, verifier, flood, nil, logger),
		repo:     repo,
		banRepo:  banRepo,
		storage:  storage,
		verifier: verifier,
		cfg:      cfg,
		perms:    permsSvc,
		permRepo: permRepo,
		clock:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	f.pipeline.now = func() time.Time { return f.clock }
	return f
}

func anonActor() perms.Actor {
	return perms.Actor{Anonymous: true, Roles: []perms.Role{{ID: perms.RoleAnonymous, Slug: "anonymous"}}}
}

func adminActor() perms.Actor {
	return perms.Actor{UserID: 1, Roles: []perms.Role{{ID: perms.RoleAdmin, Slug: "admin"}}}
}

func testBoard(settings map[string]string) *boards.Board {
	if settings == nil {
		settings = map[string]string{}
	}
	return &boards.Board{URI: "tech", Title: "Technology", Settings: settings}
}

func textPost(body string) Submission {
	return Submission{IP: netip.MustParseAddr("203.0.113.5"), Body: body}
}

func TestAdmitPlainTextPost(t *testing.T) {
	f := newFixture(t, false)

	decision, err := f.pipeline.Admit(context.Background(), anonActor(), testBoard(nil), textPost("hello world"))
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, decision.Outcome)
	require.NotNil(t, decision.Post)
	require.Equal(t, "hello world", decision.Post.Body)
	require.Equal(t, "tech", decision.Post.BoardURI)
}

func TestBanGateIsTerminal(t *testing.T) {
	f := newFixture(t, false)
	prefix, err := bans.ParseTarget("203.0.113.0/24")
	require.NoError(t, err)
	_, err = f.banRepo.Create(context.Background(), bans.Ban{Prefix: prefix, Reason: "spam"})
	require.NoError(t, err)

	decision, err := f.pipeline.Admit(context.Background(), anonActor(), testBoard(nil), textPost("hello"))
	require.NoError(t, err)
	require.Equal(t, OutcomeBanned, decision.Outcome)
	require.NotNil(t, decision.Ban)
	require.Empty(t, decision.FieldErrors, "ban replaces field errors entirely")
}

func TestFloodGateUsesRemainingSeconds(t *testing.T) {
	f := newFixture(t, false)
	board := testBoard(nil)

	first, err := f.pipeline.Admit(context.Background(), anonActor(), board, textPost("first"))
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, first.Outcome)

	// 29s into the stock 30s window: rejected with 1s remaining.
	f.repo.lastPost["203.0.113.5"] = f.clock
	f.clock = f.clock.Add(29 * time.Second)
	second, err := f.pipeline.Admit(context.Background(), anonActor(), board, textPost("second"))
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, second.Outcome)
	require.Equal(t, []FieldError{{Field: "body", Code: "post_flood", Detail: "1"}}, second.FieldErrors)

	// At the window boundary the post goes through.
	f.clock = f.clock.Add(time.Second)
	third, err := f.pipeline.Admit(context.Background(), anonActor(), board, textPost("third"))
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, third.Outcome)
}

func TestFloodGateSkippedForConfigAdmins(t *testing.T) {
	f := newFixture(t, false)
	board := testBoard(nil)
	f.repo.lastPost["203.0.113.5"] = f.clock.Add(-time.Second)

	sub := textPost("rapid fire")
	decision, err := f.pipeline.Admit(context.Background(), adminActor(), board, sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, decision.Outcome)
}

func TestFloodGateSkippedForCaptchaBoundPosters(t *testing.T) {
	f := newFixture(t, false)
	board := testBoard(map[string]string{boards.OptCaptchaEnabled: "1"})
	f.repo.lastPost["203.0.113.5"] = f.clock.Add(-time.Second)

	sub := textPost("captcha instead of flood")
	sub.CaptchaToken = "tok"
	decision, err := f.pipeline.Admit(context.Background(), anonActor(), board, sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, decision.Outcome)
	require.Equal(t, 1, f.verifier.calls)
}

func TestFloodDisabledWhenWindowZero(t *testing.T) {
	f := newFixture(t, false)
	f.cfg.PutSiteValues(map[string]string{boards.OptPostFloodTime: "0"})
	f.repo.lastPost["203.0.113.5"] = f.clock

	decision, err := f.pipeline.Admit(context.Background(), anonActor(), testBoard(nil), textPost("no window"))
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, decision.Outcome)
}

func TestCaptchaRequiredWithoutToken(t *testing.T) {
	f := newFixture(t, false)
	board := testBoard(map[string]string{boards.OptCaptchaEnabled: "1"})

	decision, err := f.pipeline.Admit(context.Background(), anonActor(), board, textPost("hello"))
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, decision.Outcome)
	require.Equal(t, []FieldError{{Field: "captcha", Code: "captcha"}}, decision.FieldErrors)
	require.Zero(t, f.verifier.calls)
}

func TestCaptchaVerifierOutageRejects(t *testing.T) {
	f := newFixture(t, false)
	board := testBoard(map[string]string{boards.OptCaptchaEnabled: "1"})
	f.verifier.err = errors.New("connection refused")

	sub := textPost("hello")
	sub.CaptchaToken = "tok"
	decision, err := f.pipeline.Admit(context.Background(), anonActor(), board, sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, decision.Outcome)
	require.Equal(t, "captcha", decision.FieldErrors[0].Code)
}

func TestCaptchaWithoutVerifierRejects(t *testing.T) {
	f := newFixture(t, false)
	f.pipeline.captcha = nil
	board := testBoard(map[string]string{boards.OptCaptchaEnabled: "1"})

	sub := textPost("hello")
	sub.CaptchaToken = "tok"
	decision, err := f.pipeline.Admit(context.Background(), anonActor(), board, sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, decision.Outcome)
	require.Equal(t, []FieldError{{Field: "captcha", Code: "captcha"}}, decision.FieldErrors)
}

func TestCaptchaSkippedWithNoCaptchaGrant(t *testing.T) {
	f := newFixture(t, false)
	// Grant the nocaptcha atom to anonymous and rebuild the snapshot.
	require.NoError(t, f.permRepo.SetOverride(context.Background(),
		perms.Override{RoleID: perms.RoleAnonymous, PermissionID: perms.PermPostNoCaptcha, Value: true}))
	require.NoError(t, f.perms.Invalidate(context.Background()))

	board := testBoard(map[string]string{boards.OptCaptchaEnabled: "1"})
	decision, err := f.pipeline.Admit(context.Background(), anonActor(), board, textPost("no captcha needed"))
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, decision.Outcome)
	require.Zero(t, f.verifier.calls)
}

func TestShapeAttachForbidden(t *testing.T) {
	f := newFixture(t, false)
	// Revoke attachments for anonymous posters.
	require.NoError(t, f.permRepo.SetOverride(context.Background(),
		perms.Override{RoleID: perms.RoleAnonymous, PermissionID: perms.PermPostAttach, Value: false}))
	require.NoError(t, f.perms.Invalidate(context.Background()))

	sub := textPost("")
	sub.Attachments = []Attachment{{Ref: uuid.New(), Name: "cat.png", Size: 100}}
	decision, err := f.pipeline.Admit(context.Background(), anonActor(), testBoard(nil), sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, decision.Outcome)
	require.ElementsMatch(t, []FieldError{
		{Field: "files", Code: "max:0"},
		{Field: "body", Code: "required"},
	}, decision.FieldErrors)
}

func TestShapeBodyLengthAfterNormalization(t *testing.T) {
	f := newFixture(t, false)
	board := testBoard(map[string]string{boards.OptPostMaxLength: "5"})

	// Decomposed "e" + combining acute composes to one rune under NFC.
	sub := textPost("cafe\u0301x")
	decision, err := f.pipeline.Admit(context.Background(), anonActor(), board, sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, decision.Outcome)

	sub = textPost("cafe\u0301xy")
	decision, err = f.pipeline.Admit(context.Background(), anonActor(), board, sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, decision.Outcome)
	require.Equal(t, "max:5", decision.FieldErrors[0].Code)
}

func TestShapeMinLengthAndAttachmentRules(t *testing.T) {
	f := newFixture(t, false)
	board := testBoard(map[string]string{
		boards.OptPostMinLength:      "10",
		boards.OptPostAttachmentsMax: "1",
	})

	ref1, ref2 := uuid.New(), uuid.New()
	sub := textPost("short")
	sub.Attachments = []Attachment{
		{Ref: ref1, Name: "virus.exe", Size: 100},
		{Ref: ref2, Name: "huge.png", Size: 10 * 1024 * 1024},
	}
	decision, err := f.pipeline.Admit(context.Background(), anonActor(), board, sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, decision.Outcome)
	require.ElementsMatch(t, []FieldError{
		{Field: "body", Code: "min:10"},
		{Field: "files", Code: "max:1"},
		{Field: "files.0", Code: "mimes", Detail: "virus.exe"},
		{Field: "files.1", Code: "max", Detail: "huge.png"},
	}, decision.FieldErrors)
}

func TestIntegrityGateReportsMissingArtifactsByIndex(t *testing.T) {
	f := newFixture(t, false)
	board := testBoard(map[string]string{boards.OptPostAttachmentsMax: "3"})

	present, missing := uuid.New(), uuid.New()
	f.storage.put(present, 512)

	sub := textPost("with files")
	sub.Attachments = []Attachment{
		{Ref: present, Name: "ok.png", Size: 512},
		{Ref: missing, Name: "gone.png", Size: 512},
	}
	decision, err := f.pipeline.Admit(context.Background(), anonActor(), board, sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, decision.Outcome)
	require.Equal(t, []FieldError{{Field: "files.1", Code: "file_corrupt", Detail: "gone.png"}}, decision.FieldErrors)
}

func TestIntegrityGateUsesStoredSize(t *testing.T) {
	f := newFixture(t, false)
	ref := uuid.New()
	f.storage.put(ref, 2048)

	sub := textPost("with file")
	sub.Attachments = []Attachment{{Ref: ref, Name: "ok.png", Size: 1}}
	decision, err := f.pipeline.Admit(context.Background(), anonActor(), testBoard(nil), sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, decision.Outcome)
	require.Equal(t, int64(2048), decision.Post.Attachments[0].Size)
}

func TestFloodRaceAdmitsAtMostOne(t *testing.T) {
	f := newFixture(t, true)
	board := testBoard(nil)

	// Both submissions pass the flood gate read; the redis reservation
	// must let only one of them commit.
	var wg sync.WaitGroup
	decisions := make([]Decision, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i], errs[i] = f.pipeline.Admit(context.Background(), anonActor(), board, textPost("race"))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var admittedCount, floodRejected int
	for _, d := range decisions {
		switch d.Outcome {
		case OutcomeAdmitted:
			admittedCount++
		case OutcomeRejected:
			require.Equal(t, "post_flood", d.FieldErrors[0].Code)
			floodRejected++
		}
	}
	require.Equal(t, 1, admittedCount)
	require.Equal(t, 1, floodRejected)
}

func TestPersistenceFailureReleasesReservation(t *testing.T) {
	f := newFixture(t, true)
	board := testBoard(nil)

	f.repo.failNext = errors.New("connection reset")
	_, err := f.pipeline.Admit(context.Background(), anonActor(), board, textPost("boom"))
	require.Error(t, err)

	// The window was released, an immediate retry succeeds.
	decision, err := f.pipeline.Admit(context.Background(), anonActor(), board, textPost("retry"))
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, decision.Outcome)
}

func TestCapcodeHonoredOnlyForHeldRoles(t *testing.T) {
	f := newFixture(t, false)
	board := testBoard(nil)

	mod := perms.Actor{UserID: 4, Roles: []perms.Role{{ID: perms.RoleModerator, Slug: "moderator", Capcode: "Global Volunteer"}}}
	sub := textPost("signed")
	sub.CapcodeRole = perms.RoleModerator
	decision, err := f.pipeline.Admit(context.Background(), mod, board, sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, decision.Outcome)
	require.Equal(t, "Global Volunteer", decision.Post.Capcode)

	// An anonymous poster asking for the same capcode is ignored.
	sub = textPost("unsigned")
	sub.CapcodeRole = perms.RoleModerator
	decision, err = f.pipeline.Admit(context.Background(), anonActor(), board, sub)
	require.NoError(t, err)
	require.Equal(t, OutcomeAdmitted, decision.Outcome)
	require.Empty(t, decision.Post.Capcode)
}
