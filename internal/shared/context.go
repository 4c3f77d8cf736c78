package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context for downstream
// handlers and the actor resolver.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session placed by the session
// middleware, or nil when none ran.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
