package boards

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	boards map[string]*Board
	site   map[string]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{boards: map[string]*Board{}, site: map[string]string{}}
}

func (m *memoryRepo) GetBoard(_ context.Context, uri string) (*Board, error) {
	b, ok := m.boards[uri]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *b
	copied.Settings = make(map[string]string, len(b.Settings))
	for k, v := range b.Settings {
		copied.Settings[k] = v
	}
	return &copied, nil
}

func (m *memoryRepo) ListBoards(_ context.Context, indexedOnly bool) ([]Board, error) {
	var out []Board
	for _, b := range m.boards {
		if indexedOnly && !b.IsIndexed {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (m *memoryRepo) CreateBoard(_ context.Context, board Board) (*Board, error) {
	if _, ok := m.boards[board.URI]; ok {
		return nil, ErrURITaken
	}
	board.Settings = map[string]string{}
	m.boards[board.URI] = &board
	return &board, nil
}

func (m *memoryRepo) ReplaceSettings(_ context.Context, boardURI string, values map[string]string) error {
	b, ok := m.boards[boardURI]
	if !ok {
		return ErrNotFound
	}
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	b.Settings = copied
	return nil
}

func (m *memoryRepo) SiteSettings(context.Context) (map[string]string, error) {
	return m.site, nil
}

func (m *memoryRepo) PutSiteSetting(_ context.Context, name, value string) error {
	m.site[name] = value
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	svc := NewService(repo, NewConfig(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, repo
}

func seedBoard(t *testing.T, repo *memoryRepo, settings map[string]string) *Board {
	t.Helper()
	_, err := repo.CreateBoard(context.Background(), Board{URI: "tech", Title: "Technology"})
	require.NoError(t, err)
	if settings != nil {
		require.NoError(t, repo.ReplaceSettings(context.Background(), "tech", settings))
	}
	got, err := repo.GetBoard(context.Background(), "tech")
	require.NoError(t, err)
	return got
}

func TestUpdateConfigStoresValidValues(t *testing.T) {
	svc, repo := newTestService(t)
	b := seedBoard(t, repo, nil)

	ruleErrs, err := svc.UpdateConfig(context.Background(), b, map[string]string{
		OptPostAttachmentsMax: "3",
		OptCaptchaEnabled:     "1",
	})
	require.NoError(t, err)
	require.Empty(t, ruleErrs)

	stored, err := repo.GetBoard(context.Background(), "tech")
	require.NoError(t, err)
	require.Equal(t, "3", stored.Settings[OptPostAttachmentsMax])
	require.Equal(t, "1", stored.Settings[OptCaptchaEnabled])
}

func TestUpdateConfigAllOrNothing(t *testing.T) {
	svc, repo := newTestService(t)
	b := seedBoard(t, repo, map[string]string{OptPostAttachmentsMax: "2"})

	ruleErrs, err := svc.UpdateConfig(context.Background(), b, map[string]string{
		OptCaptchaEnabled:     "1",  // valid
		OptPostAttachmentsMax: "99", // exceeds max:10
	})
	require.NoError(t, err)
	require.Equal(t, []RuleError{{Option: OptPostAttachmentsMax, Code: "max:10"}}, ruleErrs)

	// The valid value must not have been written either.
	stored, err := repo.GetBoard(context.Background(), "tech")
	require.NoError(t, err)
	require.Equal(t, "2", stored.Settings[OptPostAttachmentsMax])
	require.NotContains(t, stored.Settings, OptCaptchaEnabled)
}

func TestUpdateConfigRejectsUndeclared(t *testing.T) {
	svc, repo := newTestService(t)
	b := seedBoard(t, repo, nil)

	ruleErrs, err := svc.UpdateConfig(context.Background(), b, map[string]string{"mystery": "1"})
	require.NoError(t, err)
	require.Equal(t, []RuleError{{Option: "mystery", Code: "undeclared"}}, ruleErrs)
}

func TestUpdateConfigRejectsSiteScopedOption(t *testing.T) {
	svc, repo := newTestService(t)
	b := seedBoard(t, repo, nil)

	ruleErrs, err := svc.UpdateConfig(context.Background(), b, map[string]string{OptPostFloodTime: "5"})
	require.NoError(t, err)
	require.Equal(t, []RuleError{{Option: OptPostFloodTime, Code: "undeclared"}}, ruleErrs)
}

func TestUpdateConfigEmptyValueClearsOverride(t *testing.T) {
	svc, repo := newTestService(t)
	b := seedBoard(t, repo, map[string]string{OptCaptchaEnabled: "1"})

	ruleErrs, err := svc.UpdateConfig(context.Background(), b, map[string]string{OptCaptchaEnabled: ""})
	require.NoError(t, err)
	require.Empty(t, ruleErrs)

	stored, err := repo.GetBoard(context.Background(), "tech")
	require.NoError(t, err)
	require.NotContains(t, stored.Settings, OptCaptchaEnabled)
}

func TestUpdateConfigCrossFieldAgainstCandidate(t *testing.T) {
	svc, repo := newTestService(t)
	b := seedBoard(t, repo, map[string]string{OptPostMinLength: "100"})

	// New max is checked against the stored min it is merged with.
	ruleErrs, err := svc.UpdateConfig(context.Background(), b, map[string]string{OptPostMaxLength: "50"})
	require.NoError(t, err)
	require.Equal(t, []RuleError{{Option: OptPostMaxLength, Code: "greater_than:" + OptPostMinLength}}, ruleErrs)

	// Raising both together in one write is fine.
	ruleErrs, err = svc.UpdateConfig(context.Background(), b, map[string]string{
		OptPostMinLength: "10",
		OptPostMaxLength: "50",
	})
	require.NoError(t, err)
	require.Empty(t, ruleErrs)
}

func TestPutSiteSetting(t *testing.T) {
	svc, repo := newTestService(t)

	ruleErrs, err := svc.PutSiteSetting(context.Background(), OptPostFloodTime, "60")
	require.NoError(t, err)
	require.Empty(t, ruleErrs)
	require.Equal(t, 60, svc.Config().SiteInt(OptPostFloodTime, 30))

	ruleErrs, err = svc.PutSiteSetting(context.Background(), OptPostFloodTime, "x")
	require.NoError(t, err)
	require.Equal(t, []RuleError{{Option: OptPostFloodTime, Code: "integer"}}, ruleErrs)
	require.Equal(t, "60", repo.site[OptPostFloodTime])
}
