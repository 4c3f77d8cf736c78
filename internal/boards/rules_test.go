package boards

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func opt(name string) Option {
	o, ok := Options()[name]
	if !ok {
		panic("unknown option " + name)
	}
	return o
}

func TestValidateRequired(t *testing.T) {
	errs := ValidateValue(opt(OptPostAttachmentsMax), "", nil)
	require.Equal(t, []RuleError{{Option: OptPostAttachmentsMax, Code: "required"}}, errs)
}

func TestValidateIntegerAndRange(t *testing.T) {
	errs := ValidateValue(opt(OptPostAttachmentsMax), "7", nil)
	require.Empty(t, errs)

	errs = ValidateValue(opt(OptPostAttachmentsMax), "11", nil)
	require.Equal(t, []RuleError{{Option: OptPostAttachmentsMax, Code: "max:10"}}, errs)

	errs = ValidateValue(opt(OptPostAttachmentsMax), "x", nil)
	require.Equal(t, []RuleError{{Option: OptPostAttachmentsMax, Code: "integer"}}, errs)
}

func TestValidateBoolean(t *testing.T) {
	for _, raw := range []string{"0", "1", "true", "false", "on", "off"} {
		require.Empty(t, ValidateValue(opt(OptCaptchaEnabled), raw, nil), raw)
	}
	errs := ValidateValue(opt(OptCaptchaEnabled), "yes", nil)
	require.Equal(t, []RuleError{{Option: OptCaptchaEnabled, Code: "boolean"}}, errs)
}

func TestValidateStringLengthBounds(t *testing.T) {
	long := make([]byte, 65536)
	for i := range long {
		long[i] = 'a'
	}
	errs := ValidateValue(opt("boardReportText"), string(long), nil)
	require.Equal(t, []RuleError{{Option: "boardReportText", Code: "max:65535"}}, errs)
}

func TestValidateGreaterThan(t *testing.T) {
	siblings := func(name string) (string, bool) {
		if name == OptPostMinLength {
			return "100", true
		}
		return "", false
	}

	require.Empty(t, ValidateValue(opt(OptPostMaxLength), "200", siblings))

	errs := ValidateValue(opt(OptPostMaxLength), "50", siblings)
	require.Equal(t, []RuleError{{Option: OptPostMaxLength, Code: "greater_than:" + OptPostMinLength}}, errs)

	// Equal is not greater.
	errs = ValidateValue(opt(OptPostMaxLength), "100", siblings)
	require.Len(t, errs, 1)
}

func TestValidateGreaterThanPassesWhenSiblingUnset(t *testing.T) {
	unset := func(string) (string, bool) { return "", false }
	require.Empty(t, ValidateValue(opt(OptPostMaxLength), "50", unset))
	require.Empty(t, ValidateValue(opt(OptPostMaxLength), "50", nil))
}

func TestValidateCollectsAllViolations(t *testing.T) {
	// Negative and non-greater-than at once.
	siblings := func(string) (string, bool) { return "10", true }
	errs := ValidateValue(opt(OptPostMaxLength), "-5", siblings)
	require.Equal(t, []RuleError{
		{Option: OptPostMaxLength, Code: "min:0"},
		{Option: OptPostMaxLength, Code: "greater_than:" + OptPostMinLength},
	}, errs)
}

func TestValidURI(t *testing.T) {
	require.True(t, ValidURI("tech"))
	require.True(t, ValidURI("b2"))
	require.False(t, ValidURI(""))
	require.False(t, ValidURI("Tech"))
	require.False(t, ValidURI("with-dash"))
	require.False(t, ValidURI("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")) // 33 chars
}
