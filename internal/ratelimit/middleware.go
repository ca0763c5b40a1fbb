package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/platform/httpx"
)

// Limiter builds throttling middleware from policies over a shared store.
type Limiter struct {
	store  CounterStore
	logger *slog.Logger
	// OnReject is invoked with the policy name for each rejected request.
	// Wired to the metrics registry by the router; may be nil.
	OnReject func(policy string)
	now      func() time.Time
}

// NewLimiter constructs a Limiter.
func NewLimiter(store CounterStore, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, logger: logger, now: time.Now}
}

// SetClock overrides the limiter clock. Test hook.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// Middleware enforces the policy on every request passing through it.
func (l *Limiter) Middleware(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ttl := l.windowKey(p, r)

			if p.SkipSuccessful {
				l.serveDeferred(p, key, ttl, next, w, r)
				return
			}

			count, remaining, err := l.store.Incr(r.Context(), key, ttl)
			if err != nil {
				// A broken counter store must not take the site down with it.
				l.logStoreError(p, err)
				next.ServeHTTP(w, r)
				return
			}
			if count > p.Max {
				l.reject(p, remaining, w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// serveDeferred runs the handler first and charges the counter only for
// failing outcomes. The pre-check rejects keys whose failure budget is
// already spent without running the handler.
func (l *Limiter) serveDeferred(p Policy, key string, ttl time.Duration, next http.Handler, w http.ResponseWriter, r *http.Request) {
	count, remaining, err := l.store.Get(r.Context(), key)
	if err != nil {
		l.logStoreError(p, err)
		next.ServeHTTP(w, r)
		return
	}
	if count >= p.Max {
		l.reject(p, remaining, w)
		return
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	next.ServeHTTP(recorder, r)

	if recorder.status >= 200 && recorder.status < 300 {
		return
	}
	if _, _, err := l.store.Incr(r.Context(), key, ttl); err != nil {
		l.logStoreError(p, err)
	}
}

// windowKey computes the fixed-window key and the ttl to the window edge.
func (l *Limiter) windowKey(p Policy, r *http.Request) (string, time.Duration) {
	now := l.now()
	windowStart := now.Truncate(p.Window)
	reset := windowStart.Add(p.Window)
	key := p.Name + ":" + p.Key(r) + ":" + strconv.FormatInt(windowStart.Unix(), 10)
	return key, reset.Sub(now)
}

func (l *Limiter) reject(p Policy, remaining time.Duration, w http.ResponseWriter) {
	if l.OnReject != nil {
		l.OnReject(p.Name)
	}
	retryAfter := int(math.Ceil(remaining.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httpx.Fail(w, http.StatusTooManyRequests, "too many requests", map[string]any{
		"retryAfter": retryAfter,
	})
}

func (l *Limiter) logStoreError(p Policy, err error) {
	if l.logger != nil {
		l.logger.Error("rate limit store failure",
			slog.String("policy", p.Name),
			slog.Any("error", err))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(data []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(data)
}
