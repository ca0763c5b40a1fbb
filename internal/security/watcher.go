// Package security observes requests for suspicious payloads and failed
// authentications. Strictly an observer: it never alters control flow.
package security

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
)

// bodyScanLimit bounds how much of a request body is inspected.
const bodyScanLimit = 8 << 10

type pattern struct {
	kind string
	re   *regexp.Regexp
}

// The fixed pattern set. Path traversal, markup/script injection, SQL token
// sequences and protocol-handler injection.
var patterns = []pattern{
	{"path-traversal", regexp.MustCompile(`(?i)(\.\./|\.\.\\|%2e%2e%2f)`)},
	{"markup-injection", regexp.MustCompile(`(?i)(<script\b|<iframe\b|onerror\s*=|onload\s*=)`)},
	{"sql-injection", regexp.MustCompile(`(?i)(\bunion\b[\s\S]{0,20}\bselect\b|\bor\b\s+1\s*=\s*1|;\s*drop\s+table|'\s*or\s*'1'\s*=\s*'1)`)},
	{"protocol-injection", regexp.MustCompile(`(?i)(javascript:|vbscript:|data:text/html)`)},
}

// EventSink receives matched events for out-of-band aggregation. May be nil.
type EventSink interface {
	SuspiciousRequest(kind, path, clientIP string)
	AuthFailure(path, clientIP string)
}

// Watcher taps requests and responses for security-relevant signals.
type Watcher struct {
	logger *slog.Logger
	sink   EventSink
	// authPathPrefix identifies authentication endpoints for the
	// auth-failure observer.
	authPathPrefix string
}

// NewWatcher constructs a Watcher. sink may be nil.
func NewWatcher(logger *slog.Logger, sink EventSink, authPathPrefix string) *Watcher {
	if authPathPrefix == "" {
		authPathPrefix = "/api/v1/auth/"
	}
	return &Watcher{logger: logger, sink: sink, authPathPrefix: authPathPrefix}
}

// Middleware scans the request and observes the response status. The body is
// re-buffered so downstream handlers read it unchanged.
func (wt *Watcher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wt.scanRequest(r)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		if recorder.status == http.StatusUnauthorized && strings.HasPrefix(r.URL.Path, wt.authPathPrefix) {
			wt.observeAuthFailure(r)
		}
	})
}

func (wt *Watcher) scanRequest(r *http.Request) {
	subject := r.URL.Path
	if raw := r.URL.RawQuery; raw != "" {
		subject += "?" + raw
	}

	if r.Body != nil && r.ContentLength != 0 {
		limited := io.LimitReader(r.Body, bodyScanLimit)
		buf, err := io.ReadAll(limited)
		if err == nil {
			r.Body = struct {
				io.Reader
				io.Closer
			}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
			subject += "\n" + string(buf)
		}
	}

	for _, p := range patterns {
		if p.re.MatchString(subject) {
			clientIP := clientIP(r)
			if wt.logger != nil {
				wt.logger.Warn("suspicious request pattern",
					slog.String("kind", p.kind),
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method),
					slog.String("client_ip", clientIP))
			}
			if wt.sink != nil {
				wt.sink.SuspiciousRequest(p.kind, r.URL.Path, clientIP)
			}
			// One event per request is enough signal.
			return
		}
	}
}

func (wt *Watcher) observeAuthFailure(r *http.Request) {
	clientIP := clientIP(r)
	if wt.logger != nil {
		wt.logger.Warn("authentication failure",
			slog.String("path", r.URL.Path),
			slog.String("client_ip", clientIP))
	}
	if wt.sink != nil {
		wt.sink.AuthFailure(r.URL.Path, clientIP)
	}
}

func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return addr[:i]
	}
	return addr
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
