package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/platform/httpx"
)

// DelegationStore provides the two narrow reads the decision engine needs
// from the chapter collaborator. Both are loaded fresh on every check.
type DelegationStore interface {
	DelegatedChapterIDs(ctx context.Context, userID int64) ([]int64, error)
	ChapterMembershipIDs(ctx context.Context, userID int64) ([]int64, error)
}

// OwnerFunc extracts the owner id of the addressed resource from the request.
type OwnerFunc func(r *http.Request) (int64, error)

// Engine evaluates composable authorization checks against the resolved
// principal. Checks are side-effect free; chaining middlewares gives AND
// semantics with short-circuit on the first failure.
type Engine struct {
	Chapters DelegationStore
	Logger   *slog.Logger
	// LookupTimeout bounds delegation/membership reads. Lookups that time
	// out fail closed.
	LookupTimeout time.Duration
}

const defaultLookupTimeout = 3 * time.Second

// NewEngine constructs an Engine with the default lookup timeout.
func NewEngine(chapters DelegationStore, logger *slog.Logger) *Engine {
	return &Engine{Chapters: chapters, Logger: logger, LookupTimeout: defaultLookupTimeout}
}

// RequirePermission allows only roles listed for the permission in the
// catalog. An unknown permission is reported as a misconfiguration, not a
// client failure.
func (e *Engine) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := e.principal(w, r)
			if !ok {
				return
			}
			allowed, err := RoleAllowed(perm, principal.Role)
			if err != nil {
				e.misconfiguration(w, err)
				return
			}
			if !allowed {
				e.forbid(w, "insufficient permission", string(perm), string(principal.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRole allows principals whose role is in the given set.
func (e *Engine) RequireAnyRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := e.principal(w, r)
			if !ok {
				return
			}
			if !roleIn(principal.Role, roles) {
				e.forbid(w, "role not permitted", rolesString(roles), string(principal.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMinRole allows principals at or above min in the hierarchy.
func (e *Engine) RequireMinRole(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := e.principal(w, r)
			if !ok {
				return
			}
			if !RoleAtLeast(principal.Role, min) {
				e.forbid(w, "role below required level", string(min), string(principal.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnerOrRoles allows the resource owner, or any principal holding
// one of the privileged roles.
func (e *Engine) RequireOwnerOrRoles(ownerOf OwnerFunc, privileged ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := e.principal(w, r)
			if !ok {
				return
			}
			if roleIn(principal.Role, privileged) {
				next.ServeHTTP(w, r)
				return
			}
			ownerID, err := ownerOf(r)
			if err != nil {
				e.forbid(w, "resource owner not resolvable", "owner", string(principal.Role))
				return
			}
			if ownerID == principal.ID {
				next.ServeHTTP(w, r)
				return
			}
			e.forbid(w, "not the resource owner", rolesString(privileged)+" or owner", string(principal.Role))
		})
	}
}

// RequireChapterDelegate gates chapter-scoped management. Global admin roles
// pass unconditionally; delegate-capable roles pass only when the chapter id
// from the named route parameter is in their freshly loaded delegation set.
// A missing or malformed chapter id is a plain 403.
func (e *Engine) RequireChapterDelegate(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := e.principal(w, r)
			if !ok {
				return
			}
			if roleIn(principal.Role, GlobalAdminRoles) {
				next.ServeHTTP(w, r)
				return
			}
			if !roleIn(principal.Role, DelegateCapableRoles) {
				e.forbid(w, "chapter management requires delegation", "chapter delegate", string(principal.Role))
				return
			}
			chapterID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil || chapterID <= 0 {
				e.forbid(w, "chapter not specified", "chapter delegate", string(principal.Role))
				return
			}
			delegated, err := e.delegatedIDs(r.Context(), principal.ID)
			if err != nil {
				e.failClosed(w, "load delegated chapters", err, principal)
				return
			}
			if !idIn(chapterID, delegated) {
				e.forbid(w, "chapter not delegated to principal", "delegation for chapter "+strconv.FormatInt(chapterID, 10), string(principal.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUserResourceAccess gates access to another user's resources: the
// user themselves, a privileged role, or a chapter delegate sharing at least
// one chapter with the target.
func (e *Engine) RequireUserResourceAccess(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := e.principal(w, r)
			if !ok {
				return
			}
			targetID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil || targetID <= 0 {
				e.forbid(w, "target user not specified", "user access", string(principal.Role))
				return
			}
			if targetID == principal.ID {
				next.ServeHTTP(w, r)
				return
			}
			if roleIn(principal.Role, GlobalAdminRoles) {
				next.ServeHTTP(w, r)
				return
			}
			if !roleIn(principal.Role, DelegateCapableRoles) {
				e.forbid(w, "cannot access another user's resources", "self, admin or shared chapter delegation", string(principal.Role))
				return
			}
			delegated, err := e.delegatedIDs(r.Context(), principal.ID)
			if err != nil {
				e.failClosed(w, "load delegated chapters", err, principal)
				return
			}
			memberships, err := e.membershipIDs(r.Context(), targetID)
			if err != nil {
				e.failClosed(w, "load target memberships", err, principal)
				return
			}
			if !intersects(delegated, memberships) {
				e.forbid(w, "no shared chapter delegation with target user", "shared chapter delegation", string(principal.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (e *Engine) principal(w http.ResponseWriter, r *http.Request) (*Principal, bool) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return nil, false
	}
	return principal, true
}

func (e *Engine) delegatedIDs(ctx context.Context, userID int64) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.lookupTimeout())
	defer cancel()
	return e.Chapters.DelegatedChapterIDs(ctx, userID)
}

func (e *Engine) membershipIDs(ctx context.Context, userID int64) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.lookupTimeout())
	defer cancel()
	return e.Chapters.ChapterMembershipIDs(ctx, userID)
}

func (e *Engine) lookupTimeout() time.Duration {
	if e.LookupTimeout > 0 {
		return e.LookupTimeout
	}
	return defaultLookupTimeout
}

func (e *Engine) forbid(w http.ResponseWriter, message, required, actual string) {
	httpx.Fail(w, http.StatusForbidden, message, map[string]any{
		"required": required,
		"actual":   actual,
	})
}

// failClosed handles collaborator errors during a check: log, deny.
func (e *Engine) failClosed(w http.ResponseWriter, op string, err error, principal *Principal) {
	if e.Logger != nil {
		e.Logger.Error("authz lookup failed",
			slog.String("op", op),
			slog.Int64("user_id", principal.ID),
			slog.Any("error", err))
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		e.forbid(w, "authorization check timed out", "collaborator response", string(principal.Role))
		return
	}
	httpx.Fail(w, http.StatusInternalServerError, "internal error", nil)
}

func (e *Engine) misconfiguration(w http.ResponseWriter, err error) {
	if e.Logger != nil {
		e.Logger.Error("authorization misconfiguration", slog.Any("error", err))
	}
	httpx.Fail(w, http.StatusInternalServerError, "internal error", nil)
}

func roleIn(role Role, set []Role) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}

func idIn(id int64, set []int64) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

func intersects(a, b []int64) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[int64]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func rolesString(roles []Role) string {
	out := ""
	for i, r := range roles {
		if i > 0 {
			out += ","
		}
		out += string(r)
	}
	return out
}
