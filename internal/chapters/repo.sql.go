package chapters

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
)

const chapterColumns = `id, name, region, description, created_at, updated_at`

// PGRepository provides PostgreSQL backed persistence. The delegation and
// membership reads run on every authorization check for chapter-scoped
// routes; concurrent duplicate lookups for the same user are collapsed with
// singleflight rather than cached, so grants are never stale.
type PGRepository struct {
	pool  *pgxpool.Pool
	group singleflight.Group
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// List returns all chapters ordered by name.
func (r *PGRepository) List(ctx context.Context) ([]Chapter, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+chapterColumns+` FROM chapters ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Chapter
	for rows.Next() {
		var ch Chapter
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Region, &ch.Description, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a chapter by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Chapter, error) {
	var ch Chapter
	err := r.pool.QueryRow(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE id = $1`, id).
		Scan(&ch.ID, &ch.Name, &ch.Region, &ch.Description, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ch, nil
}

// Create inserts a new chapter.
func (r *PGRepository) Create(ctx context.Context, params UpdateParams) (*Chapter, error) {
	var ch Chapter
	err := r.pool.QueryRow(ctx, `
		INSERT INTO chapters (name, region, description)
		VALUES ($1, $2, $3)
		RETURNING `+chapterColumns,
		params.Name, params.Region, params.Description).
		Scan(&ch.ID, &ch.Name, &ch.Region, &ch.Description, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrDuplicate
		}
		return nil, err
	}
	return &ch, nil
}

// Update rewrites the mutable chapter fields.
func (r *PGRepository) Update(ctx context.Context, id int64, params UpdateParams) (*Chapter, error) {
	var ch Chapter
	err := r.pool.QueryRow(ctx, `
		UPDATE chapters
		SET name = $2, region = $3, description = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+chapterColumns,
		id, params.Name, params.Region, params.Description).
		Scan(&ch.ID, &ch.Name, &ch.Region, &ch.Description, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ch, nil
}

// Join records a membership; joining twice is a no-op.
func (r *PGRepository) Join(ctx context.Context, chapterID, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chapter_members (chapter_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (chapter_id, user_id) DO NOTHING`,
		chapterID, userID)
	return err
}

// AddDelegate grants chapter management to a user.
func (r *PGRepository) AddDelegate(ctx context.Context, chapterID, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chapter_delegates (chapter_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (chapter_id, user_id) DO NOTHING`,
		chapterID, userID)
	return err
}

// RemoveDelegate revokes a delegation grant.
func (r *PGRepository) RemoveDelegate(ctx context.Context, chapterID, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chapter_delegates WHERE chapter_id = $1 AND user_id = $2`, chapterID, userID)
	return err
}

// DelegatedChapterIDs returns the chapters the user may administer.
func (r *PGRepository) DelegatedChapterIDs(ctx context.Context, userID int64) ([]int64, error) {
	return r.idsSingleflight(ctx, "delegated:"+strconv.FormatInt(userID, 10),
		`SELECT chapter_id FROM chapter_delegates WHERE user_id = $1`, userID)
}

// ChapterMembershipIDs returns the chapters the user belongs to.
func (r *PGRepository) ChapterMembershipIDs(ctx context.Context, userID int64) ([]int64, error) {
	return r.idsSingleflight(ctx, "memberships:"+strconv.FormatInt(userID, 10),
		`SELECT chapter_id FROM chapter_members WHERE user_id = $1`, userID)
}

func (r *PGRepository) idsSingleflight(ctx context.Context, key, query string, userID int64) ([]int64, error) {
	resultChan := r.group.DoChan(key, func() (any, error) {
		return r.queryIDs(context.WithoutCancel(ctx), query, userID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]int64), nil
	}
}

func (r *PGRepository) queryIDs(ctx context.Context, query string, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
