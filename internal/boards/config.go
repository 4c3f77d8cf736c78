package boards

import (
	"strconv"
	"sync/atomic"
)

// Config resolves option values: board override first, then the declared
// default, then the caller's fallback. Typed coercion failures resolve to
// the fallback rather than erroring; cross-field consistency is only
// enforced at write time, so readers always see what is stored.
type Config struct {
	options map[string]Option
	site    atomic.Pointer[map[string]string]
}

// NewConfig builds a Config over the declared option catalog.
func NewConfig() *Config {
	c := &Config{options: Options()}
	empty := map[string]string{}
	c.site.Store(&empty)
	return c
}

// PutSiteValues atomically replaces the stored sitewide option values.
func (c *Config) PutSiteValues(values map[string]string) {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	c.site.Store(&copied)
}

// Declared returns the option declaration, if any.
func (c *Config) Declared(name string) (Option, bool) {
	opt, ok := c.options[name]
	return opt, ok
}

func (c *Config) raw(b *Board, name string) (Option, string, bool) {
	opt, ok := c.options[name]
	if !ok {
		return Option{}, "", false
	}
	switch opt.Scope {
	case ScopeBoard:
		if b != nil {
			if v, stored := b.Settings[name]; stored {
				return opt, v, true
			}
		}
	case ScopeSite:
		site := *c.site.Load()
		if v, stored := site[name]; stored {
			return opt, v, true
		}
	}
	if opt.HasDefault {
		return opt, opt.Default, true
	}
	return opt, "", false
}

// BoardInt resolves an integer option for the board.
func (c *Config) BoardInt(b *Board, name string, fallback int) int {
	opt, raw, ok := c.raw(b, name)
	if !ok {
		return fallback
	}
	switch opt.DataType {
	case TypeInteger, TypeUnsignedInteger:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fallback
		}
		if opt.DataType == TypeUnsignedInteger && n < 0 {
			return fallback
		}
		return n
	default:
		return fallback
	}
}

// BoardBool resolves a boolean option for the board.
func (c *Config) BoardBool(b *Board, name string, fallback bool) bool {
	opt, raw, ok := c.raw(b, name)
	if !ok || opt.DataType != TypeBoolean {
		return fallback
	}
	v, ok := parseBool(raw)
	if !ok {
		return fallback
	}
	return v
}

// BoardString resolves a string option for the board.
func (c *Config) BoardString(b *Board, name string, fallback string) string {
	opt, raw, ok := c.raw(b, name)
	if !ok || opt.DataType != TypeString {
		return fallback
	}
	return raw
}

// SiteInt resolves a sitewide integer option.
func (c *Config) SiteInt(name string, fallback int) int {
	return c.BoardInt(nil, name, fallback)
}

// SiteBool resolves a sitewide boolean option.
func (c *Config) SiteBool(name string, fallback bool) bool {
	return c.BoardBool(nil, name, fallback)
}

// SiteString resolves a sitewide string option.
func (c *Config) SiteString(name string, fallback string) string {
	return c.BoardString(nil, name, fallback)
}

// Inconsistencies reports stored cross-field violations for a board, e.g.
// a postMinLength exceeding postMaxLength left behind by a rule change.
// They are surfaced to operators, never auto-corrected.
func (c *Config) Inconsistencies(b *Board) []RuleError {
	var out []RuleError
	for name, raw := range b.Settings {
		opt, ok := c.options[name]
		if !ok || opt.Scope != ScopeBoard {
			continue
		}
		siblings := func(other string) (string, bool) {
			v, stored := b.Settings[other]
			return v, stored
		}
		for _, ruleErr := range ValidateValue(opt, raw, siblings) {
			out = append(out, ruleErr)
		}
	}
	return out
}
