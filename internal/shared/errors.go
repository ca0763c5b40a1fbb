package shared

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates a missing or unusable credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the principal lacks the required grant.
	ErrForbidden = errors.New("forbidden")
	// ErrAccountLocked indicates the account is inside a lockout window.
	ErrAccountLocked = errors.New("account locked")
	// ErrRateLimited indicates the request exceeded a rate-limit policy.
	ErrRateLimited = errors.New("rate limited")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrUnknownPermission indicates a permission missing from the catalog.
	ErrUnknownPermission = errors.New("unknown permission")
)

// AccountLockedError carries the lockout window alongside ErrAccountLocked
// so responses can tell the caller when to retry.
type AccountLockedError struct {
	Until     time.Time
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked for %s", e.Remaining.Round(time.Second))
}

func (e *AccountLockedError) Unwrap() error { return ErrAccountLocked }
