package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/platform/httpx"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/users"
)

// SessionTokenKey is the session field carrying the identity token for
// cookie-authenticated clients.
const SessionTokenKey = "identity_token"

// PrincipalStore is the narrow user-store read the resolver needs.
type PrincipalStore interface {
	FindByID(ctx context.Context, id int64) (*users.User, error)
}

// ResolutionState is the three-way outcome of identity resolution.
type ResolutionState int

const (
	// StateAnonymous means no credential was presented.
	StateAnonymous ResolutionState = iota
	// StateAuthenticated means a verified principal is attached.
	StateAuthenticated
	// StateInvalid means a credential was presented but rejected.
	StateInvalid
)

// Resolution is the result of resolving a request's identity.
type Resolution struct {
	State     ResolutionState
	Principal *authz.Principal
	// Reason is set for StateInvalid; it is logged, never sent to clients.
	Reason string
}

// Resolver verifies bearer credentials and loads the requesting principal.
// Both the required and the optional middleware run the same Resolve
// primitive; they differ only in how a non-authenticated outcome is handled.
type Resolver struct {
	tokens *TokenManager
	store  PrincipalStore
	logger *slog.Logger
	// LookupTimeout bounds the principal load; a timed-out load resolves
	// as invalid, never as authenticated.
	LookupTimeout time.Duration
}

const defaultResolveTimeout = 3 * time.Second

// NewResolver constructs a Resolver.
func NewResolver(tokens *TokenManager, store PrincipalStore, logger *slog.Logger) *Resolver {
	return &Resolver{tokens: tokens, store: store, logger: logger, LookupTimeout: defaultResolveTimeout}
}

// BearerToken extracts the token from the Authorization header, if present.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// credential returns the presented token and whether it arrived via the
// Authorization header rather than the session cookie.
func credential(r *http.Request) (token string, bearer bool, present bool) {
	if tok, ok := BearerToken(r); ok {
		return tok, true, true
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if tok := sess.Get(SessionTokenKey); tok != "" {
			return tok, false, true
		}
	}
	return "", false, false
}

// Resolve extracts and verifies the request credential and loads the
// principal. It never writes to the response.
func (rs *Resolver) Resolve(r *http.Request) Resolution {
	token, _, present := credential(r)
	if !present {
		return Resolution{State: StateAnonymous}
	}

	claims, err := rs.tokens.VerifyPurpose(token, PurposeAccess)
	if err != nil {
		return Resolution{State: StateInvalid, Reason: "token verification failed"}
	}
	subjectID, err := claims.SubjectID()
	if err != nil {
		return Resolution{State: StateInvalid, Reason: "malformed subject"}
	}

	ctx, cancel := context.WithTimeout(r.Context(), rs.lookupTimeout())
	defer cancel()
	user, err := rs.store.FindByID(ctx, subjectID)
	if err != nil {
		// Includes deadline exceeded: fail closed.
		return Resolution{State: StateInvalid, Reason: "principal load failed"}
	}
	if !user.IsActive {
		return Resolution{State: StateInvalid, Reason: "account disabled"}
	}
	return Resolution{State: StateAuthenticated, Principal: user.Principal()}
}

// RequireAuth rejects any request that does not resolve to a principal.
func (rs *Resolver) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := rs.Resolve(r)
		if res.State != StateAuthenticated {
			if res.State == StateInvalid && rs.logger != nil {
				rs.logger.Warn("authentication rejected",
					slog.String("path", r.URL.Path),
					slog.String("reason", res.Reason))
			}
			httpx.Fail(w, http.StatusUnauthorized, "authentication required", nil)
			return
		}
		ctx := authz.ContextWithPrincipal(r.Context(), res.Principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth attaches a principal when resolution succeeds and otherwise
// continues anonymously. It intentionally swallows resolution failures.
func (rs *Resolver) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := rs.Resolve(r)
		if res.State == StateAuthenticated {
			r = r.WithContext(authz.ContextWithPrincipal(r.Context(), res.Principal))
		}
		next.ServeHTTP(w, r)
	})
}

func (rs *Resolver) lookupTimeout() time.Duration {
	if rs.LookupTimeout > 0 {
		return rs.LookupTimeout
	}
	return defaultResolveTimeout
}
