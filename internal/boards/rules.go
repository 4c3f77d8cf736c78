package boards

import (
	"fmt"
	"strconv"
)

// RuleKind enumerates the option validation rules. Rules are plain data
// evaluated by a table-driven validator at configuration write time.
type RuleKind int

const (
	// RuleRequired rejects empty input.
	RuleRequired RuleKind = iota
	// RuleBoolean accepts 0/1/true/false.
	RuleBoolean
	// RuleInteger accepts a base-10 integer.
	RuleInteger
	// RuleMin bounds the numeric value, or the length for strings.
	RuleMin
	// RuleMax bounds the numeric value, or the length for strings.
	RuleMax
	// RuleGreaterThan requires the value to exceed another option's stored
	// value. The rule passes when the other option is unset.
	RuleGreaterThan
)

// Rule is one declarative constraint on an option value.
type Rule struct {
	Kind  RuleKind
	Limit int64
	Other string
}

// RuleError reports one failed constraint with a machine-readable code.
type RuleError struct {
	Option string `json:"option"`
	Code   string `json:"code"`
}

func (e RuleError) Error() string {
	return fmt.Sprintf("boards: option %s: %s", e.Option, e.Code)
}

// SiblingLookup resolves another option's candidate value during
// cross-field validation.
type SiblingLookup func(name string) (string, bool)

// ValidateValue checks a raw value against the option's rule table.
// All violated rules are reported together.
func ValidateValue(opt Option, raw string, siblings SiblingLookup) []RuleError {
	var errs []RuleError
	fail := func(code string) {
		errs = append(errs, RuleError{Option: opt.Name, Code: code})
	}

	for _, rule := range opt.Rules {
		switch rule.Kind {
		case RuleRequired:
			if raw == "" {
				fail("required")
			}
		case RuleBoolean:
			if raw == "" {
				continue
			}
			if _, ok := parseBool(raw); !ok {
				fail("boolean")
			}
		case RuleInteger:
			if raw == "" {
				continue
			}
			if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
				fail("integer")
			}
		case RuleMin:
			if raw == "" {
				continue
			}
			if n, ok := magnitude(opt, raw); ok && n < rule.Limit {
				fail(fmt.Sprintf("min:%d", rule.Limit))
			}
		case RuleMax:
			if raw == "" {
				continue
			}
			if n, ok := magnitude(opt, raw); ok && n > rule.Limit {
				fail(fmt.Sprintf("max:%d", rule.Limit))
			}
		case RuleGreaterThan:
			if raw == "" || siblings == nil {
				continue
			}
			otherRaw, ok := siblings(rule.Other)
			if !ok || otherRaw == "" {
				continue
			}
			value, err1 := strconv.ParseInt(raw, 10, 64)
			other, err2 := strconv.ParseInt(otherRaw, 10, 64)
			if err1 == nil && err2 == nil && value <= other {
				fail("greater_than:" + rule.Other)
			}
		}
	}
	return errs
}

// magnitude maps a raw value to the quantity min/max rules constrain:
// the parsed number for numeric options, the length for strings.
func magnitude(opt Option, raw string) (int64, bool) {
	switch opt.DataType {
	case TypeInteger, TypeUnsignedInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case TypeString:
		return int64(len(raw)), true
	default:
		return 0, false
	}
}

func parseBool(raw string) (bool, bool) {
	switch raw {
	case "1", "true", "on":
		return true, true
	case "0", "false", "off", "":
		return false, true
	}
	return false, false
}
