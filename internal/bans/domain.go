package bans

import (
	"errors"
	"net/netip"
	"time"
)

// Ban blocks posting from a network range. BoardURI scopes the ban to one
// board; empty means sitewide. A nil ExpiresAt is permanent.
type Ban struct {
	ID        int64
	Prefix    netip.Prefix
	BoardURI  string
	Reason    string
	CreatedBy int64
	CreatedAt time.Time
	ExpiresAt *time.Time
	LiftedAt  *time.Time
}

// ErrNotFound indicates the ban does not exist.
var ErrNotFound = errors.New("bans: not found")

// ErrBadCIDR indicates the network range could not be parsed.
var ErrBadCIDR = errors.New("bans: invalid ip or cidr range")

// ErrSubnetsDisabled indicates a subnet ban while banSubnets is off.
var ErrSubnetsDisabled = errors.New("bans: subnet bans are disabled")

// ErrTooLong indicates the requested duration exceeds the sitewide cap.
var ErrTooLong = errors.New("bans: duration exceeds the maximum ban length")

// ErrReasonNotAllowed indicates the actor may not set a custom reason.
var ErrReasonNotAllowed = errors.New("bans: custom reason not permitted")

// Active reports whether the ban is in force at the given instant.
func (b Ban) Active(now time.Time) bool {
	if b.LiftedAt != nil {
		return false
	}
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

// Matches reports whether the address falls inside the banned range.
func (b Ban) Matches(ip netip.Addr) bool {
	return b.Prefix.Contains(ip.Unmap())
}

// IsHost reports whether the ban covers exactly one address.
func (b Ban) IsHost() bool {
	return b.Prefix.IsSingleIP()
}

// ParseTarget accepts either a bare address or a CIDR range and returns the
// canonical prefix. Bare addresses become full-length host prefixes.
func ParseTarget(target string) (netip.Prefix, error) {
	if p, err := netip.ParsePrefix(target); err == nil {
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(target)
	if err != nil {
		return netip.Prefix{}, ErrBadCIDR
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
