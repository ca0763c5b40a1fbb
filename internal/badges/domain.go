package badges

import "time"

// Badge is an earnable recognition.
type Badge struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// Award links a badge to a user.
type Award struct {
	BadgeID   int64
	UserID    int64
	AwardedBy int64
	AwardedAt time.Time
}
