package app_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/app"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/auth"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/badges"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/chapters"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/events"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/security"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/users"
	_ "github.com/doctorpentagon/enhanced-awibi-medtech-sub000/testing"
)

const routerTestSecret = "router-test-secret"

// userStore is an in-memory users.Repository for router tests.
type userStore struct {
	byEmail map[string]*users.User
	byID    map[int64]*users.User
}

func newUserStore(list ...*users.User) *userStore {
	s := &userStore{byEmail: map[string]*users.User{}, byID: map[int64]*users.User{}}
	for _, u := range list {
		s.byEmail[u.Email] = u
		s.byID[u.ID] = u
	}
	return s
}

func (s *userStore) FindByID(ctx context.Context, id int64) (*users.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *userStore) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	if _, ok := s.byEmail[params.Email]; ok {
		return nil, shared.ErrDuplicate
	}
	u := &users.User{
		ID:           int64(len(s.byID) + 1),
		Email:        params.Email,
		Name:         params.Name,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	s.byEmail[u.Email] = u
	s.byID[u.ID] = u
	return u, nil
}

func (s *userStore) List(ctx context.Context) ([]users.User, error) {
	out := make([]users.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (s *userStore) UpdateRole(ctx context.Context, id int64, role authz.Role) error {
	u, ok := s.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Role = role
	return nil
}

func (s *userStore) Deactivate(ctx context.Context, id int64) error {
	u, ok := s.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = false
	return nil
}

func (s *userStore) MarkEmailVerified(ctx context.Context, id int64) error {
	u, ok := s.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

func (s *userStore) RecordLoginFailure(ctx context.Context, email string, maxAttempts int, lockFor time.Duration) (users.LockoutState, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return users.LockoutState{}, nil
	}
	now := time.Now()
	if u.LockUntil != nil && !u.LockUntil.After(now) {
		u.FailedAttempts = 1
		u.LockUntil = nil
	} else {
		u.FailedAttempts++
		if u.FailedAttempts >= maxAttempts {
			until := now.Add(lockFor)
			u.LockUntil = &until
		}
	}
	return users.LockoutState{FailedAttempts: u.FailedAttempts, LockUntil: u.LockUntil}, nil
}

func (s *userStore) ClearLockout(ctx context.Context, id int64) error {
	u, ok := s.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.FailedAttempts = 0
	u.LockUntil = nil
	return nil
}

// chapterStore is an in-memory chapters.Repository for router tests.
type chapterStore struct {
	byID    map[int64]*chapters.Chapter
	members map[int64][]int64
}

func newChapterStore(list ...*chapters.Chapter) *chapterStore {
	s := &chapterStore{byID: map[int64]*chapters.Chapter{}, members: map[int64][]int64{}}
	for _, ch := range list {
		s.byID[ch.ID] = ch
	}
	return s
}

func (s *chapterStore) List(ctx context.Context) ([]chapters.Chapter, error) {
	out := make([]chapters.Chapter, 0, len(s.byID))
	for _, ch := range s.byID {
		out = append(out, *ch)
	}
	return out, nil
}

func (s *chapterStore) Get(ctx context.Context, id int64) (*chapters.Chapter, error) {
	ch, ok := s.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *ch
	return &copied, nil
}

func (s *chapterStore) Create(ctx context.Context, params chapters.UpdateParams) (*chapters.Chapter, error) {
	ch := &chapters.Chapter{ID: int64(len(s.byID) + 1), Name: params.Name, Region: params.Region}
	s.byID[ch.ID] = ch
	return ch, nil
}

func (s *chapterStore) Update(ctx context.Context, id int64, params chapters.UpdateParams) (*chapters.Chapter, error) {
	ch, ok := s.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	ch.Name = params.Name
	ch.Region = params.Region
	copied := *ch
	return &copied, nil
}

func (s *chapterStore) Join(ctx context.Context, chapterID, userID int64) error {
	if _, ok := s.byID[chapterID]; !ok {
		return shared.ErrNotFound
	}
	s.members[userID] = append(s.members[userID], chapterID)
	return nil
}

func (s *chapterStore) AddDelegate(ctx context.Context, chapterID, userID int64) error { return nil }

func (s *chapterStore) RemoveDelegate(ctx context.Context, chapterID, userID int64) error {
	return nil
}

func (s *chapterStore) DelegatedChapterIDs(ctx context.Context, userID int64) ([]int64, error) {
	return nil, nil
}

func (s *chapterStore) ChapterMembershipIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.members[userID], nil
}

// eventStore is an empty events.Repository for router tests.
type eventStore struct{}

func (s *eventStore) ListByChapter(ctx context.Context, chapterID int64) ([]events.Event, error) {
	return nil, nil
}
func (s *eventStore) Get(ctx context.Context, id int64) (*events.Event, error) {
	return nil, shared.ErrNotFound
}
func (s *eventStore) Create(ctx context.Context, chapterID, createdBy int64, params events.Params) (*events.Event, error) {
	return nil, shared.ErrNotFound
}
func (s *eventStore) Update(ctx context.Context, id int64, params events.Params) (*events.Event, error) {
	return nil, shared.ErrNotFound
}
func (s *eventStore) RSVP(ctx context.Context, eventID, userID int64) error { return nil }

// badgeStore is an empty badges.Repository for router tests.
type badgeStore struct{}

func (s *badgeStore) List(ctx context.Context) ([]badges.Badge, error) { return nil, nil }
func (s *badgeStore) Create(ctx context.Context, name, description string) (*badges.Badge, error) {
	return nil, shared.ErrNotFound
}
func (s *badgeStore) AwardsForUser(ctx context.Context, userID int64) ([]badges.Award, error) {
	return nil, nil
}
func (s *badgeStore) Grant(ctx context.Context, badgeID, userID, awardedBy int64) error { return nil }

func (s *badgeStore) Revoke(ctx context.Context, badgeID, userID int64) error { return nil }

// recordingSink captures security watcher events.
type recordingSink struct {
	suspicious   []string
	authFailures []string
}

func (s *recordingSink) SuspiciousRequest(kind, path, clientIP string) {
	s.suspicious = append(s.suspicious, kind)
}

func (s *recordingSink) AuthFailure(path, clientIP string) {
	s.authFailures = append(s.authFailures, path)
}

func newServedRouter(t *testing.T, userRepo *userStore, chapterRepo *chapterStore, sink *recordingSink) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "awibi_session", routerTestSecret, time.Hour, false)
	csrf := shared.NewCSRFManager(32)

	tokens := auth.NewTokenManager(routerTestSecret, "awibi-test", time.Hour)
	guard := auth.NewGuard(userRepo, auth.DefaultLockoutPolicy)
	authService := auth.NewService(userRepo, guard, tokens)
	resolver := auth.NewResolver(tokens, userRepo, logger)
	engine := authz.NewEngine(chapterRepo, logger)

	return app.NewRouter(app.RouterParams{
		Logger:         logger,
		SessionManager: sessions,
		CSRFManager:    csrf,
		Resolver:       resolver,
		Engine:         engine,
		Watcher:        security.NewWatcher(logger, sink, ""),

		AuthHandler:     auth.NewHandler(logger, authService, sessions, nil, false),
		UsersHandler:    users.NewHandler(logger, users.NewService(userRepo), engine),
		ChaptersHandler: chapters.NewHandler(logger, chapters.NewService(chapterRepo), engine),
		EventsHandler:   events.NewHandler(logger, &eventStore{}, engine),
		BadgesHandler:   badges.NewHandler(logger, &badgeStore{}, engine),
	})
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

// Public chapter reads resolve a presented bearer token so the listing can
// flag memberships, and still serve anonymous requests.
func TestPublicChapterListResolvesBearerToken(t *testing.T) {
	userRepo := newUserStore(&users.User{
		ID: 9, Email: "jade@awibi.org", Name: "Jade", Role: authz.RoleMember, IsActive: true,
		PasswordHash: hashPassword(t, "open sesame"),
	})
	chapterRepo := newChapterStore(&chapters.Chapter{ID: 3, Name: "Lagos", Region: "Nigeria"})
	chapterRepo.members[9] = []int64{3}
	h := newServedRouter(t, userRepo, chapterRepo, &recordingSink{})

	tokens := auth.NewTokenManager(routerTestSecret, "awibi-test", time.Hour)
	token, _, err := tokens.Sign(9)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chapters/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), `"joined":true`) {
		t.Fatalf("expected membership flagged for authenticated caller: %s", res.Body.String())
	}

	res = httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/chapters/", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("anonymous listing must still work, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), `"joined":true`) {
		t.Fatalf("anonymous listing must not flag memberships: %s", res.Body.String())
	}
}

// The watcher observes every request, including ones the CSRF check rejects.
func TestWatcherScansRequestsRejectedByCSRF(t *testing.T) {
	userRepo := newUserStore(&users.User{
		ID: 9, Email: "jade@awibi.org", Name: "Jade", Role: authz.RoleMember, IsActive: true,
		PasswordHash: hashPassword(t, "open sesame"),
	})
	chapterRepo := newChapterStore(&chapters.Chapter{ID: 3, Name: "Lagos", Region: "Nigeria"})
	sink := &recordingSink{}
	h := newServedRouter(t, userRepo, chapterRepo, sink)

	// Establish a cookie-authenticated session.
	login := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"jade@awibi.org","password":"open sesame"}`))
	login.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, login)
	if res.Code != http.StatusOK {
		t.Fatalf("login failed: %d: %s", res.Code, res.Body.String())
	}
	cookies := res.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected session cookie from login")
	}

	// Suspicious query on a state-changing request without a CSRF token.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chapters/3/join?next=javascript:alert(1)", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res = httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d: %s", res.Code, res.Body.String())
	}
	if len(sink.suspicious) != 1 || sink.suspicious[0] != "protocol-injection" {
		t.Fatalf("rejected request must still be pattern-scanned, got %v", sink.suspicious)
	}
}
