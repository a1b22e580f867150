package domain

import "time"

// Summary is a persisted meeting summary owned by a single user.
type Summary struct {
	ID          string
	OwnerID     string
	Transcript  string
	SummaryText string
	CreatedAt   time.Time
}

// SummaryMutation replaces the mutable fields of a summary in one write.
// CreatedAt doubles as the last-modified stamp and is re-set on every edit.
type SummaryMutation struct {
	SummaryText string
	CreatedAt   time.Time
}
