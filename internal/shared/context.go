package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession attaches the loaded session. The session middleware is
// the only writer; handlers and the identity resolver read it back.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the request's session, or nil when the request
// never passed through the session middleware.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
