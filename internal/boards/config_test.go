package boards

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func boardWith(settings map[string]string) *Board {
	return &Board{URI: "tech", Title: "Technology", Settings: settings}
}

func TestBoardOverrideBeatsDefault(t *testing.T) {
	cfg := NewConfig()
	b := boardWith(map[string]string{OptPostAttachmentsMax: "3"})

	require.Equal(t, 3, cfg.BoardInt(b, OptPostAttachmentsMax, 1))
}

func TestDeclaredDefaultWhenNoOverride(t *testing.T) {
	cfg := NewConfig()
	b := boardWith(nil)

	require.Equal(t, 5, cfg.BoardInt(b, OptPostAttachmentsMax, 1))
	require.Equal(t, 10, cfg.BoardInt(b, OptPostsPerPage, 99))
	require.False(t, cfg.BoardBool(b, OptCaptchaEnabled, true))
}

func TestFallbackWhenNoDefaultDeclared(t *testing.T) {
	cfg := NewConfig()
	b := boardWith(nil)

	// postMaxLength declares no default, so the caller fallback wins.
	require.Equal(t, 65534, cfg.BoardInt(b, OptPostMaxLength, 65534))
	require.Equal(t, 0, cfg.BoardInt(b, OptPostMinLength, 0))
}

func TestCoercionFailureFallsBack(t *testing.T) {
	cfg := NewConfig()
	b := boardWith(map[string]string{
		OptPostAttachmentsMax: "banana",
		OptCaptchaEnabled:     "maybe",
	})

	require.Equal(t, 1, cfg.BoardInt(b, OptPostAttachmentsMax, 1))
	require.False(t, cfg.BoardBool(b, OptCaptchaEnabled, false))
}

func TestUnsignedRejectsNegativeStoredValue(t *testing.T) {
	cfg := NewConfig()
	b := boardWith(map[string]string{OptPostAttachmentsMax: "-2"})

	require.Equal(t, 1, cfg.BoardInt(b, OptPostAttachmentsMax, 1))
}

func TestUndeclaredOptionFallsBack(t *testing.T) {
	cfg := NewConfig()
	b := boardWith(map[string]string{"noSuchOption": "7"})

	require.Equal(t, 42, cfg.BoardInt(b, "noSuchOption", 42))
}

func TestTypeMismatchedAccessorFallsBack(t *testing.T) {
	cfg := NewConfig()
	b := boardWith(map[string]string{OptPostAttachmentsMax: "3"})

	// Reading an integer option through the bool accessor must not coerce.
	require.True(t, cfg.BoardBool(b, OptPostAttachmentsMax, true))
	require.Equal(t, "none", cfg.BoardString(b, OptPostAttachmentsMax, "none"))
}

func TestSiteValuesAreAtomic(t *testing.T) {
	cfg := NewConfig()
	require.Equal(t, 30, cfg.SiteInt(OptPostFloodTime, 30))

	cfg.PutSiteValues(map[string]string{OptPostFloodTime: "60"})
	require.Equal(t, 60, cfg.SiteInt(OptPostFloodTime, 30))

	cfg.PutSiteValues(map[string]string{})
	require.Equal(t, 30, cfg.SiteInt(OptPostFloodTime, 5))
}

func TestBoardOverrideIgnoredForSiteScope(t *testing.T) {
	cfg := NewConfig()
	b := boardWith(map[string]string{OptPostFloodTime: "999"})

	// postFloodTime is site scoped, the board row cannot override it.
	require.Equal(t, 30, cfg.BoardInt(b, OptPostFloodTime, 5))
}

func TestInconsistenciesReportedNotMasked(t *testing.T) {
	cfg := NewConfig()
	b := boardWith(map[string]string{
		OptPostMinLength: "500",
		OptPostMaxLength: "100",
	})

	incs := cfg.Inconsistencies(b)
	require.Len(t, incs, 1)
	require.Equal(t, OptPostMaxLength, incs[0].Option)
	require.Equal(t, "greater_than:"+OptPostMinLength, incs[0].Code)

	// Reads still return the stored values untouched.
	require.Equal(t, 100, cfg.BoardInt(b, OptPostMaxLength, 65534))
	require.Equal(t, 500, cfg.BoardInt(b, OptPostMinLength, 0))
}

func TestInconsistenciesCleanBoard(t *testing.T) {
	cfg := NewConfig()
	b := boardWith(map[string]string{
		OptPostMinLength: "10",
		OptPostMaxLength: "100",
	})

	require.Empty(t, cfg.Inconsistencies(b))
}
