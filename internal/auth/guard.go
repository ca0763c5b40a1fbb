package auth

import (
	"context"
	"time"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/users"
)

// LockoutPolicy configures the brute-force guard.
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// DefaultLockoutPolicy matches the platform defaults.
var DefaultLockoutPolicy = LockoutPolicy{
	MaxAttempts:  5,
	LockDuration: 15 * time.Minute,
}

// AccountLockedError reports an active lockout with its remaining time.
// It lives in shared so the HTTP error mapper can render the window.
type AccountLockedError = shared.AccountLockedError

// LockoutRepository is the slice of the user store the guard mutates.
type LockoutRepository interface {
	RecordLoginFailure(ctx context.Context, email string, maxAttempts int, lockFor time.Duration) (users.LockoutState, error)
	ClearLockout(ctx context.Context, id int64) error
}

// Guard implements the per-account lockout state machine. The transition on
// failure is delegated to the repository's single conditional update so the
// threshold holds under concurrent attempts.
type Guard struct {
	repo   LockoutRepository
	policy LockoutPolicy
}

// NewGuard constructs a Guard.
func NewGuard(repo LockoutRepository, policy LockoutPolicy) *Guard {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultLockoutPolicy.MaxAttempts
	}
	if policy.LockDuration <= 0 {
		policy.LockDuration = DefaultLockoutPolicy.LockDuration
	}
	return &Guard{repo: repo, policy: policy}
}

// Check rejects the attempt when the account is locked. It runs before
// credential verification; a locked account answers 423 regardless of
// credential correctness.
func (g *Guard) Check(user *users.User, now time.Time) error {
	if user.Locked(now) {
		return &AccountLockedError{Until: *user.LockUntil, Remaining: user.LockRemaining(now)}
	}
	return nil
}

// OnFailure records a failed credential verification. When the recorded
// state crossed the threshold the returned error reports the fresh lock.
func (g *Guard) OnFailure(ctx context.Context, email string) error {
	state, err := g.repo.RecordLoginFailure(ctx, email, g.policy.MaxAttempts, g.policy.LockDuration)
	if err != nil {
		return err
	}
	if state.Locked(time.Now()) {
		return &AccountLockedError{Until: *state.LockUntil, Remaining: time.Until(*state.LockUntil)}
	}
	return nil
}

// OnSuccess clears the failure counter and any expired lock.
func (g *Guard) OnSuccess(ctx context.Context, userID int64) error {
	return g.repo.ClearLockout(ctx, userID)
}

// Policy exposes the configured policy.
func (g *Guard) Policy() LockoutPolicy {
	return g.policy
}
