package security_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/security"
	_ "github.com/doctorpentagon/enhanced-awibi-medtech-sub000/testing"
)

type recordingSink struct {
	mu         sync.Mutex
	suspicious []string
	failures   []string
}

func (s *recordingSink) SuspiciousRequest(kind, path, clientIP string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspicious = append(s.suspicious, kind)
}

func (s *recordingSink) AuthFailure(path, clientIP string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, path)
}

func watcherHandler(sink security.EventSink, inner http.Handler) http.Handler {
	return security.NewWatcher(nil, sink, "/api/v1/auth/").Middleware(inner)
}

func TestWatcherDetectsPathTraversal(t *testing.T) {
	sink := &recordingSink{}
	h := watcherHandler(sink, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/files?name=../../etc/passwd", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(sink.suspicious) != 1 || sink.suspicious[0] != "path-traversal" {
		t.Fatalf("expected one path-traversal event, got %v", sink.suspicious)
	}
}

func TestWatcherDetectsMarkupInjectionInBody(t *testing.T) {
	sink := &recordingSink{}
	h := watcherHandler(sink, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/comments",
		strings.NewReader(`{"text":"<script>alert(1)</script>"}`))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(sink.suspicious) != 1 || sink.suspicious[0] != "markup-injection" {
		t.Fatalf("expected one markup-injection event, got %v", sink.suspicious)
	}
}

func TestWatcherDetectsSQLInjection(t *testing.T) {
	sink := &recordingSink{}
	h := watcherHandler(sink, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/search?q=1+union+all+select+password", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(sink.suspicious) != 1 || sink.suspicious[0] != "sql-injection" {
		t.Fatalf("expected one sql-injection event, got %v", sink.suspicious)
	}
}

func TestWatcherPreservesRequestBody(t *testing.T) {
	sink := &recordingSink{}
	const payload = `{"text":"javascript:void(0)"}`
	var seen string
	h := watcherHandler(sink, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		seen = string(body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/comments", strings.NewReader(payload))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != payload {
		t.Fatalf("handler must read the full body, got %q", seen)
	}
	if len(sink.suspicious) != 1 {
		t.Fatalf("expected one event, got %v", sink.suspicious)
	}
}

func TestWatcherOneEventPerRequest(t *testing.T) {
	sink := &recordingSink{}
	h := watcherHandler(sink, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// Path traversal and script injection in one request.
	req := httptest.NewRequest(http.MethodGet, "/files?name=../x&html=<script>", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(sink.suspicious) != 1 {
		t.Fatalf("expected a single event per request, got %v", sink.suspicious)
	}
}

func TestWatcherCleanRequestEmitsNothing(t *testing.T) {
	sink := &recordingSink{}
	h := watcherHandler(sink, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/chapters/5/events", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(sink.suspicious) != 0 || len(sink.failures) != 0 {
		t.Fatalf("clean request must not emit events: %v %v", sink.suspicious, sink.failures)
	}
}

func TestWatcherObservesAuthFailures(t *testing.T) {
	sink := &recordingSink{}
	h := watcherHandler(sink, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(sink.failures) != 1 || sink.failures[0] != "/api/v1/auth/login" {
		t.Fatalf("expected one auth failure, got %v", sink.failures)
	}

	// A 401 outside the auth prefix is not an authentication failure signal.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if len(sink.failures) != 1 {
		t.Fatalf("non-auth 401 must not be counted, got %v", sink.failures)
	}
}
