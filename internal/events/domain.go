package events

import "time"

// Event is a chapter-hosted gathering.
type Event struct {
	ID          int64
	ChapterID   int64
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Params carries the mutable event fields.
type Params struct {
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
}
