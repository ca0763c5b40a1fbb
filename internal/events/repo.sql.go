package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
)

const eventColumns = `id, chapter_id, title, description, location, starts_at, created_by, created_at, updated_at`

// Repository defines persistence operations for events.
type Repository interface {
	ListByChapter(ctx context.Context, chapterID int64) ([]Event, error)
	Get(ctx context.Context, id int64) (*Event, error)
	Create(ctx context.Context, chapterID, createdBy int64, params Params) (*Event, error)
	Update(ctx context.Context, id int64, params Params) (*Event, error)
	RSVP(ctx context.Context, eventID, userID int64) error
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

// ListByChapter returns the chapter's events, soonest first.
func (r *PGRepository) ListByChapter(ctx context.Context, chapterID int64) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE chapter_id = $1 ORDER BY starts_at`, chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var ev Event
		if err := scanEvent(rows, &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one event.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Event, error) {
	var ev Event
	err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id), &ev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ev, nil
}

// Create inserts an event under a chapter.
func (r *PGRepository) Create(ctx context.Context, chapterID, createdBy int64, params Params) (*Event, error) {
	var ev Event
	err := scanEvent(r.pool.QueryRow(ctx, `
		INSERT INTO events (chapter_id, title, description, location, starts_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+eventColumns,
		chapterID, params.Title, params.Description, params.Location, params.StartsAt, createdBy), &ev)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// Update rewrites the mutable fields.
func (r *PGRepository) Update(ctx context.Context, id int64, params Params) (*Event, error) {
	var ev Event
	err := scanEvent(r.pool.QueryRow(ctx, `
		UPDATE events
		SET title = $2, description = $3, location = $4, starts_at = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+eventColumns,
		id, params.Title, params.Description, params.Location, params.StartsAt), &ev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ev, nil
}

// RSVP records attendance intent; repeating is a no-op.
func (r *PGRepository) RSVP(ctx context.Context, eventID, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_rsvps (event_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (event_id, user_id) DO NOTHING`,
		eventID, userID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner, ev *Event) error {
	return row.Scan(&ev.ID, &ev.ChapterID, &ev.Title, &ev.Description, &ev.Location, &ev.StartsAt, &ev.CreatedBy, &ev.CreatedAt, &ev.UpdatedAt)
}
