package users

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"

	"github.com/majestrate/infinity-next/internal/perms"
	"github.com/majestrate/infinity-next/internal/shared"
)

// ActorFromRequest resolves the permission actor for a request: the
// session's user with their assigned roles, or the anonymous actor for the
// client address. Implements the middleware's ActorSource.
func (s *Service) ActorFromRequest(r *http.Request) (perms.Actor, error) {
	ctx := r.Context()
	if sess := shared.SessionFromContext(ctx); sess != nil && sess.User() != "" {
		userID, err := strconv.ParseInt(sess.User(), 10, 64)
		if err == nil {
			return s.ActorForUser(ctx, userID)
		}
	}
	return s.AnonymousActor(ctx, remoteAddr(r)), nil
}

func remoteAddr(r *http.Request) netip.Addr {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}
