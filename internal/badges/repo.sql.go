package badges

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
)

// Repository defines persistence operations for badges and awards.
type Repository interface {
	List(ctx context.Context) ([]Badge, error)
	Create(ctx context.Context, name, description string) (*Badge, error)
	AwardsForUser(ctx context.Context, userID int64) ([]Award, error)
	Grant(ctx context.Context, badgeID, userID, awardedBy int64) error
	Revoke(ctx context.Context, badgeID, userID int64) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// List returns all badges ordered by name.
func (r *PGRepository) List(ctx context.Context) ([]Badge, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at FROM badges ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Badge
	for rows.Next() {
		var b Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a badge definition.
func (r *PGRepository) Create(ctx context.Context, name, description string) (*Badge, error) {
	var b Badge
	err := r.pool.QueryRow(ctx, `
		INSERT INTO badges (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, created_at`,
		name, description).Scan(&b.ID, &b.Name, &b.Description, &b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrDuplicate
		}
		return nil, err
	}
	return &b, nil
}

// AwardsForUser lists a user's badge awards.
func (r *PGRepository) AwardsForUser(ctx context.Context, userID int64) ([]Award, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT badge_id, user_id, awarded_by, awarded_at
		FROM badge_awards WHERE user_id = $1 ORDER BY awarded_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Award
	for rows.Next() {
		var a Award
		if err := rows.Scan(&a.BadgeID, &a.UserID, &a.AwardedBy, &a.AwardedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Grant awards a badge; repeating is a no-op.
func (r *PGRepository) Grant(ctx context.Context, badgeID, userID, awardedBy int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO badge_awards (badge_id, user_id, awarded_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (badge_id, user_id) DO NOTHING`,
		badgeID, userID, awardedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return shared.ErrNotFound
		}
		return err
	}
	return nil
}

// Revoke removes an award.
func (r *PGRepository) Revoke(ctx context.Context, badgeID, userID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM badge_awards WHERE badge_id = $1 AND user_id = $2`, badgeID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
