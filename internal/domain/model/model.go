// Package model contains domain models passed between layers.
package model

import "time"

// Round is a time-boxed competition window. Rounds are immutable after
// creation; StartTime <= EndTime is assumed valid input.
type Round struct {
	ID        int64
	StartTime time.Time
	EndTime   time.Time
}

// TapCounter is the durable per-(user, round) tally of accepted taps.
// Score is a cached projection of Count and is recomputed whenever Count
// changes; the two never diverge.
type TapCounter struct {
	UserID  int64
	RoundID int64
	Count   int64
	Score   int64
}

// User is a registered player.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
