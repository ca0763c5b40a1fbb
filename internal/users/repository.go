package users

import (
	"context"
	"time"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
)

// CreateParams carries the fields needed to register an account.
type CreateParams struct {
	Email        string
	Name         string
	PasswordHash string
	Role         authz.Role
}

// Repository defines persistence operations for user accounts. The security
// pipeline reads principals through it and mutates only the lockout fields.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, params CreateParams) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdateRole(ctx context.Context, id int64, role authz.Role) error
	Deactivate(ctx context.Context, id int64) error
	MarkEmailVerified(ctx context.Context, id int64) error

	// RecordLoginFailure increments the account's failure counter and, when
	// the counter reaches maxAttempts, sets the lockout deadline. The whole
	// operation is a single conditional update so concurrent failures cannot
	// slip past the threshold.
	RecordLoginFailure(ctx context.Context, email string, maxAttempts int, lockFor time.Duration) (LockoutState, error)

	// ClearLockout resets the failure counter and lock deadline after a
	// successful authentication.
	ClearLockout(ctx context.Context, id int64) error
}
