package events_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/events"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
	_ "github.com/doctorpentagon/enhanced-awibi-medtech-sub000/testing"
)

type eventRepoStub struct {
	byID   map[int64]*events.Event
	rsvps  map[int64][]int64
	nextID int64
}

func newEventRepoStub(list ...*events.Event) *eventRepoStub {
	s := &eventRepoStub{byID: map[int64]*events.Event{}, rsvps: map[int64][]int64{}, nextID: 1}
	for _, ev := range list {
		s.byID[ev.ID] = ev
		if ev.ID >= s.nextID {
			s.nextID = ev.ID + 1
		}
	}
	return s
}

func (s *eventRepoStub) ListByChapter(ctx context.Context, chapterID int64) ([]events.Event, error) {
	out := []events.Event{}
	for _, ev := range s.byID {
		if ev.ChapterID == chapterID {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (s *eventRepoStub) Get(ctx context.Context, id int64) (*events.Event, error) {
	ev, ok := s.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *ev
	return &copied, nil
}

func (s *eventRepoStub) Create(ctx context.Context, chapterID, createdBy int64, params events.Params) (*events.Event, error) {
	ev := &events.Event{
		ID:        s.nextID,
		ChapterID: chapterID,
		Title:     params.Title,
		StartsAt:  params.StartsAt,
		CreatedBy: createdBy,
	}
	s.nextID++
	s.byID[ev.ID] = ev
	return ev, nil
}

func (s *eventRepoStub) Update(ctx context.Context, id int64, params events.Params) (*events.Event, error) {
	ev, ok := s.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	ev.Title = params.Title
	ev.StartsAt = params.StartsAt
	copied := *ev
	return &copied, nil
}

func (s *eventRepoStub) RSVP(ctx context.Context, eventID, userID int64) error {
	s.rsvps[eventID] = append(s.rsvps[eventID], userID)
	return nil
}

type delegationsStub struct {
	delegated map[int64][]int64
}

func (s delegationsStub) DelegatedChapterIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.delegated[userID], nil
}

func (s delegationsStub) ChapterMembershipIDs(ctx context.Context, userID int64) ([]int64, error) {
	return nil, nil
}

func withPrincipal(p *authz.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(authz.ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// newEventsRouter mirrors the production layout: event routes live both
// under the chapter tree and at the top level.
func newEventsRouter(t *testing.T, repo events.Repository, delegations authz.DelegationStore, p *authz.Principal) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := authz.NewEngine(delegations, logger)
	handler := events.NewHandler(logger, repo, engine)

	r := chi.NewRouter()
	r.Route("/api/v1/chapters", func(cr chi.Router) {
		handler.MountChapterRoutes(cr, cr.With(withPrincipal(p)))
	})
	r.Route("/api/v1/events", func(er chi.Router) {
		er.Group(handler.MountPublicRoutes)
		er.Group(func(priv chi.Router) {
			priv.Use(withPrincipal(p))
			handler.MountProtectedRoutes(priv)
		})
	})
	return r
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(res, req)
	return res
}

func TestListByChapterIsPublic(t *testing.T) {
	repo := newEventRepoStub(
		&events.Event{ID: 1, ChapterID: 3, Title: "Intro to Telehealth", StartsAt: time.Now()},
		&events.Event{ID: 2, ChapterID: 8, Title: "Other Chapter Meetup", StartsAt: time.Now()},
	)
	h := newEventsRouter(t, repo, delegationsStub{}, nil)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/chapters/3/events", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), "Intro to Telehealth") {
		t.Fatalf("expected chapter event in body: %s", res.Body.String())
	}
	if strings.Contains(res.Body.String(), "Other Chapter Meetup") {
		t.Fatalf("listing leaked another chapter's event: %s", res.Body.String())
	}
}

func TestCreateScopedToChapterDelegates(t *testing.T) {
	repo := newEventRepoStub()
	body := `{"title":"Clinic Open Day","startsAt":"2026-09-12T10:00:00Z"}`

	h := newEventsRouter(t, repo, delegationsStub{}, &authz.Principal{ID: 7, Role: authz.RoleLeader})
	if res := postJSON(h, "/api/v1/chapters/3/events", body); res.Code != http.StatusForbidden {
		t.Fatalf("undelegated leader must not create events, got %d", res.Code)
	}

	delegations := delegationsStub{delegated: map[int64][]int64{7: {3}}}
	h = newEventsRouter(t, repo, delegations, &authz.Principal{ID: 7, Role: authz.RoleLeader})
	res := postJSON(h, "/api/v1/chapters/3/events", body)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	ev, err := repo.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected event persisted: %v", err)
	}
	if ev.ChapterID != 3 || ev.CreatedBy != 7 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestUpdateAllowsCreatorOrAdmin(t *testing.T) {
	body := `{"title":"Rescheduled Open Day","startsAt":"2026-09-19T10:00:00Z"}`
	seed := func() *eventRepoStub {
		return newEventRepoStub(&events.Event{ID: 1, ChapterID: 3, Title: "Clinic Open Day", CreatedBy: 7, StartsAt: time.Now()})
	}
	patch := func(h http.Handler) *httptest.ResponseRecorder {
		res := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/events/1", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(res, req)
		return res
	}

	repo := seed()
	h := newEventsRouter(t, repo, delegationsStub{}, &authz.Principal{ID: 7, Role: authz.RoleLeader})
	if res := patch(h); res.Code != http.StatusOK {
		t.Fatalf("creator update expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if repo.byID[1].Title != "Rescheduled Open Day" {
		t.Fatalf("expected update persisted, got %q", repo.byID[1].Title)
	}

	repo = seed()
	h = newEventsRouter(t, repo, delegationsStub{}, &authz.Principal{ID: 99, Role: authz.RoleLeader})
	if res := patch(h); res.Code != http.StatusForbidden {
		t.Fatalf("non-creator leader expected 403, got %d", res.Code)
	}

	repo = seed()
	h = newEventsRouter(t, repo, delegationsStub{}, &authz.Principal{ID: 99, Role: authz.RoleAdmin})
	if res := patch(h); res.Code != http.StatusOK {
		t.Fatalf("admin update expected 200, got %d: %s", res.Code, res.Body.String())
	}
}

func TestRSVPRecordsAttendee(t *testing.T) {
	repo := newEventRepoStub(&events.Event{ID: 1, ChapterID: 3, Title: "Clinic Open Day", CreatedBy: 7, StartsAt: time.Now()})
	h := newEventsRouter(t, repo, delegationsStub{}, &authz.Principal{ID: 9, Role: authz.RoleMember})

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/v1/events/1/rsvp", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got := repo.rsvps[1]; len(got) != 1 || got[0] != 9 {
		t.Fatalf("expected rsvp recorded, got %v", got)
	}

	res = httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/v1/events/42/rsvp", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing event, got %d", res.Code)
	}
}
