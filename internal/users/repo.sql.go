package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
)

const userColumns = `id, email, name, password_hash, role, is_active, email_verified, failed_attempts, lock_until, created_at, updated_at`

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// FindByID fetches a user by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// Create inserts a new account.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash, role, is_active, email_verified, failed_attempts)
		VALUES (lower($1), $2, $3, $4, TRUE, FALSE, 0)
		RETURNING `+userColumns,
		params.Email, params.Name, params.PasswordHash, string(params.Role))
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

// List returns all users ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRole changes the account role.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, role authz.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes the account.
func (r *PGRepository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkEmailVerified flags the account's email as verified.
func (r *PGRepository) MarkEmailVerified(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET email_verified = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RecordLoginFailure performs the increment-and-maybe-lock as one statement.
// The CASE runs against the incremented counter inside the same UPDATE, so
// two concurrent failures cannot both observe the pre-threshold count. A
// lock whose expiry has passed is cleared here, in the same statement: the
// failure that finds it counts as the first of a fresh budget, never as a
// continuation of the attempts that caused the old lock.
func (r *PGRepository) RecordLoginFailure(ctx context.Context, email string, maxAttempts int, lockFor time.Duration) (LockoutState, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET failed_attempts = CASE
		        WHEN lock_until IS NOT NULL AND lock_until <= now() THEN 1
		        ELSE failed_attempts + 1
		    END,
		    lock_until = CASE
		        WHEN lock_until IS NOT NULL AND lock_until <= now() THEN NULL
		        WHEN failed_attempts + 1 >= $2 THEN now() + make_interval(secs => $3)
		        ELSE lock_until
		    END,
		    updated_at = now()
		WHERE lower(email) = lower($1)
		RETURNING failed_attempts, lock_until`,
		email, maxAttempts, lockFor.Seconds())

	var state LockoutState
	var lockUntil *time.Time
	if err := row.Scan(&state.FailedAttempts, &lockUntil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LockoutState{}, shared.ErrNotFound
		}
		return LockoutState{}, err
	}
	state.LockUntil = lockUntil
	return state, nil
}

// ClearLockout resets lockout state after a successful authentication.
func (r *PGRepository) ClearLockout(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET failed_attempts = 0, lock_until = NULL, updated_at = now() WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var user User
	var role string
	var lockUntil *time.Time
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &role,
		&user.IsActive, &user.EmailVerified, &user.FailedAttempts, &lockUntil,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	user.Role = authz.Role(role)
	user.LockUntil = lockUntil
	return &user, nil
}
