package chapters

import "time"

// Chapter is a regional community group.
type Chapter struct {
	ID          int64
	Name        string
	Region      string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpdateParams carries the mutable chapter fields.
type UpdateParams struct {
	Name        string
	Region      string
	Description string
}
