package ratelimit

import (
	"net"
	"net/http"
	"time"
)

// KeyFunc derives the throttling key for a request.
type KeyFunc func(r *http.Request) string

// Policy is one named fixed-window limit.
type Policy struct {
	Name   string
	Window time.Duration
	Max    int64
	Key    KeyFunc
	// SkipSuccessful defers the increment to response completion and counts
	// only non-2xx outcomes. Used on credential-submission endpoints so
	// legitimate logins never consume budget.
	SkipSuccessful bool
}

// KeyByIP keys on the client IP. chi's RealIP middleware has already
// rewritten RemoteAddr by the time this runs.
func KeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// KeyByIPRoute keys on client IP and route path together.
func KeyByIPRoute(r *http.Request) string {
	return KeyByIP(r) + ":" + r.URL.Path
}

// The platform's required policies.

// GeneralPolicy covers browsing traffic: 100 requests per 15 minutes per IP.
func GeneralPolicy() Policy {
	return Policy{Name: "general", Window: 15 * time.Minute, Max: 100, Key: KeyByIP}
}

// AuthPolicy covers credential submission: 5 failed attempts per 15 minutes
// per IP; successful responses are free.
func AuthPolicy() Policy {
	return Policy{Name: "auth", Window: 15 * time.Minute, Max: 5, Key: KeyByIP, SkipSuccessful: true}
}

// PasswordResetPolicy covers reset requests: 3 per hour per IP.
func PasswordResetPolicy() Policy {
	return Policy{Name: "password-reset", Window: time.Hour, Max: 3, Key: KeyByIP}
}

// EmailVerificationPolicy covers verification mail triggers: 5 per hour per IP.
func EmailVerificationPolicy() Policy {
	return Policy{Name: "email-verification", Window: time.Hour, Max: 5, Key: KeyByIP}
}

// APIPolicy covers token-authenticated API traffic: 1000 requests per 15
// minutes per IP.
func APIPolicy() Policy {
	return Policy{Name: "api", Window: 15 * time.Minute, Max: 1000, Key: KeyByIP}
}
