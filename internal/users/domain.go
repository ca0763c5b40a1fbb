package users

import (
	"time"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
)

// User represents a platform account. Accounts are never physically deleted;
// deactivation clears IsActive.
type User struct {
	ID             int64
	Email          string
	Name           string
	PasswordHash   string
	Role           authz.Role
	IsActive       bool
	EmailVerified  bool
	FailedAttempts int
	LockUntil      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Locked reports whether the account is inside its lockout window.
func (u *User) Locked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// LockRemaining returns the time left in the lockout window, or zero.
func (u *User) LockRemaining(now time.Time) time.Duration {
	if !u.Locked(now) {
		return 0
	}
	return u.LockUntil.Sub(now)
}

// Principal projects the user onto the authorization principal attached to
// request context.
func (u *User) Principal() *authz.Principal {
	return &authz.Principal{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		Active:        u.IsActive,
		EmailVerified: u.EmailVerified,
	}
}

// LockoutState is the post-update lockout view returned by the atomic
// failure recording.
type LockoutState struct {
	FailedAttempts int
	LockUntil      *time.Time
}

// Locked reports whether the state describes an active lock.
func (s LockoutState) Locked(now time.Time) bool {
	return s.LockUntil != nil && s.LockUntil.After(now)
}
