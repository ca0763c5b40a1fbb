package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/auth"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/users"
	_ "github.com/doctorpentagon/enhanced-awibi-medtech-sub000/testing"
)

func principalEcho(t *testing.T, got **authz.Principal) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = authz.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuthBearerToken(t *testing.T) {
	repo := newUserRepoStub(&users.User{ID: 5, Email: "jade@awibi.org", Role: authz.RoleLeader, IsActive: true})
	tokens := auth.NewTokenManager(testSecret, "awibi-test", time.Hour)
	resolver := auth.NewResolver(tokens, repo, nil)

	token, _, err := tokens.Sign(5)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var got *authz.Principal
	h := resolver.RequireAuth(principalEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if got == nil || got.ID != 5 || got.Role != authz.RoleLeader {
		t.Fatalf("principal not attached: %+v", got)
	}
}

func TestRequireAuthNoCredential(t *testing.T) {
	tokens := auth.NewTokenManager(testSecret, "awibi-test", time.Hour)
	resolver := auth.NewResolver(tokens, newUserRepoStub(), nil)

	var got *authz.Principal
	h := resolver.RequireAuth(principalEcho(t, &got))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestRequireAuthRejectsNonAccessPurpose(t *testing.T) {
	repo := newUserRepoStub(&users.User{ID: 5, Email: "jade@awibi.org", Role: authz.RoleMember, IsActive: true})
	tokens := auth.NewTokenManager(testSecret, "awibi-test", time.Hour)
	resolver := auth.NewResolver(tokens, repo, nil)

	reset, _, err := tokens.SignPurpose(5, auth.PurposePasswordReset, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var got *authz.Principal
	h := resolver.RequireAuth(principalEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+reset)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("password-reset token must not authenticate, got %d", res.Code)
	}
}

func TestRequireAuthDisabledAccount(t *testing.T) {
	repo := newUserRepoStub(&users.User{ID: 5, Email: "jade@awibi.org", Role: authz.RoleMember, IsActive: false})
	tokens := auth.NewTokenManager(testSecret, "awibi-test", time.Hour)
	resolver := auth.NewResolver(tokens, repo, nil)

	token, _, _ := tokens.Sign(5)

	var got *authz.Principal
	h := resolver.RequireAuth(principalEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("disabled account must not authenticate, got %d", res.Code)
	}
}

func TestRequireAuthStoreFailureFailsClosed(t *testing.T) {
	repo := newUserRepoStub(&users.User{ID: 5, Email: "jade@awibi.org", Role: authz.RoleMember, IsActive: true})
	repo.findErr = context.DeadlineExceeded
	tokens := auth.NewTokenManager(testSecret, "awibi-test", time.Hour)
	resolver := auth.NewResolver(tokens, repo, nil)

	token, _, _ := tokens.Sign(5)

	var got *authz.Principal
	h := resolver.RequireAuth(principalEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("principal load failure must deny, got %d", res.Code)
	}
}

func TestOptionalAuthAnonymousPasses(t *testing.T) {
	tokens := auth.NewTokenManager(testSecret, "awibi-test", time.Hour)
	resolver := auth.NewResolver(tokens, newUserRepoStub(), nil)

	var got *authz.Principal
	h := resolver.OptionalAuth(principalEcho(t, &got))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))

	if res.Code != http.StatusNoContent {
		t.Fatalf("anonymous request should pass through, got %d", res.Code)
	}
	if got != nil {
		t.Fatal("no principal should be attached for anonymous requests")
	}
}

func TestOptionalAuthAttachesPrincipal(t *testing.T) {
	repo := newUserRepoStub(&users.User{ID: 5, Email: "jade@awibi.org", Role: authz.RoleVolunteer, IsActive: true})
	tokens := auth.NewTokenManager(testSecret, "awibi-test", time.Hour)
	resolver := auth.NewResolver(tokens, repo, nil)

	token, _, _ := tokens.Sign(5)

	var got *authz.Principal
	h := resolver.OptionalAuth(principalEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if got == nil || got.Role != authz.RoleVolunteer {
		t.Fatalf("principal not attached: %+v", got)
	}
}

func TestResolveSessionToken(t *testing.T) {
	repo := newUserRepoStub(&users.User{ID: 5, Email: "jade@awibi.org", Role: authz.RoleMember, IsActive: true})
	tokens := auth.NewTokenManager(testSecret, "awibi-test", time.Hour)
	resolver := auth.NewResolver(tokens, repo, nil)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sessions.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	token, _, _ := tokens.Sign(5)
	sess.Set(auth.SessionTokenKey, token)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := resolver.Resolve(req)
	if res.State != auth.StateAuthenticated {
		t.Fatalf("expected authenticated resolution, got state %d reason %q", res.State, res.Reason)
	}
	if res.Principal == nil || res.Principal.ID != 5 {
		t.Fatalf("unexpected principal: %+v", res.Principal)
	}
}
