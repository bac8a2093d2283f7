// Package window classifies an instant relative to a round's time bounds.
package window

import (
	"time"

	"github.com/lastofguss/tapd/internal/domain/model"
)

// Phase is the position of an instant relative to a round.
type Phase int

const (
	// Before means the instant precedes the round's start.
	Before Phase = iota
	// Active means the instant is inside the round, bounds inclusive.
	Active
	// After means the instant follows the round's end.
	After
)

// Status strings used by the presentation layer.
const (
	StatusCooldown = "cooldown"
	StatusActive   = "active"
	StatusFinished = "finished"
)

// Classify returns the phase of now relative to the round. Both bounds are
// inclusive: a tap at exactly StartTime or EndTime is still inside the round.
func Classify(r model.Round, now time.Time) Phase {
	switch {
	case now.Before(r.StartTime):
		return Before
	case now.After(r.EndTime):
		return After
	default:
		return Active
	}
}

// Status maps the phase of now relative to the round onto the status string
// shown to players.
func Status(r model.Round, now time.Time) string {
	switch Classify(r, now) {
	case Before:
		return StatusCooldown
	case After:
		return StatusFinished
	default:
		return StatusActive
	}
}
