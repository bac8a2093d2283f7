// Package repository defines the persistence contracts for taps, rounds,
// and users, plus the in-memory and postgres implementations.
package repository

import (
	"context"
	"time"

	"github.com/lastofguss/tapd/internal/domain/model"
)

// TapStore owns creation and mutation of tap counters. No other component
// writes them.
type TapStore interface {
	// Increment applies exactly one logical increment for the (userID,
	// roundID) counter and returns the post-increment state. Mutations for
	// the same key are serialized; different keys proceed in parallel.
	//
	// When suppress is true the request is accepted but does not move the
	// counter: a missing row is created with count 0, an existing row is
	// left unchanged.
	Increment(ctx context.Context, userID, roundID int64, suppress bool) (model.TapCounter, error)

	// Get returns the counter for (userID, roundID).
	// Returns ErrNotFound when no counter exists yet.
	Get(ctx context.Context, userID, roundID int64) (model.TapCounter, error)

	// ListByRound returns every counter recorded for the round. Reads take
	// no cross-key locks and observe last-committed values; callers must
	// tolerate momentary staleness under concurrent increments.
	ListByRound(ctx context.Context, roundID int64) ([]model.TapCounter, error)
}

// RoundStore provides access to rounds. Rounds are immutable once created.
type RoundStore interface {
	// CreateRound stores a new round and returns it with its assigned ID.
	CreateRound(ctx context.Context, start, end time.Time) (model.Round, error)

	// GetRound returns the round with the given ID.
	// Returns ErrNotFound when the round does not exist.
	GetRound(ctx context.Context, id int64) (model.Round, error)

	// ListRounds returns all rounds ordered by start time descending.
	ListRounds(ctx context.Context) ([]model.Round, error)
}

// UserStore provides access to registered users.
type UserStore interface {
	// CreateUser stores a new user.
	// Returns ErrConflict when the username is already taken.
	CreateUser(ctx context.Context, username, passwordHash string) (model.User, error)

	// GetUser returns the user with the given ID.
	// Returns ErrNotFound when the user does not exist.
	GetUser(ctx context.Context, id int64) (model.User, error)

	// GetUserByUsername returns the user with the given username.
	// Returns ErrNotFound when the user does not exist.
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
}

// Store bundles the three persistence contracts; both implementations in
// this package satisfy it.
type Store interface {
	TapStore
	RoundStore
	UserStore
}
