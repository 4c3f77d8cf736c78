package perms

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ActorSource builds the permission actor for an inbound request, from the
// session for authenticated users or from the IP classification for
// anonymous ones.
type ActorSource interface {
	ActorFromRequest(r *http.Request) (Actor, error)
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor placed by the middleware. The second
// return is false when no middleware ran.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// Middleware wires permission checks for HTTP handlers.
type Middleware struct {
	Service *Service
	Actors  ActorSource
	Logger  *slog.Logger
}

// Require ensures the actor resolves the permission on the board named in
// the route (global scope when the route has no board parameter). The
// resolved actor is stashed in the request context for the handler.
func (m Middleware) Require(permissionID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := m.Actors.ActorFromRequest(r)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("resolve request actor", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			boardURI := chi.URLParam(r, "board")
			if !m.Service.Resolve(r.Context(), actor, boardURI, permissionID) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

// WithActor resolves the actor without enforcing any permission, for
// routes that decide per-request (the admission pipeline does its own
// gating).
func (m Middleware) WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := m.Actors.ActorFromRequest(r)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("resolve request actor", slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}
