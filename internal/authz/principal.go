package authz

import "context"

// Principal is the authenticated entity associated with a request. It is
// attached to the request context by the identity resolver; delegation and
// membership sets are loaded fresh from the chapter store at check time, not
// trusted from the token.
type Principal struct {
	ID            int64
	Email         string
	Name          string
	Role          Role
	Active        bool
	EmailVerified bool
}

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal, or nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
