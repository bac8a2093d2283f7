package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/lastofguss/tapd/internal/domain/model"
	"github.com/lastofguss/tapd/internal/domain/scoring"
	"github.com/lastofguss/tapd/pkg/metrics"
)

// Postgres error code for unique constraint violations.
const uniqueViolation = pq.ErrorCode("23505")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rounds (
	id         BIGSERIAL PRIMARY KEY,
	start_time TIMESTAMPTZ NOT NULL,
	end_time   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS taps (
	user_id  BIGINT NOT NULL REFERENCES users (id),
	round_id BIGINT NOT NULL REFERENCES rounds (id),
	count    BIGINT NOT NULL DEFAULT 0,
	score    BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, round_id)
);

CREATE INDEX IF NOT EXISTS taps_round_idx ON taps (round_id);
`

// PGStore is the postgres-backed Store implementation.
type PGStore struct {
	db *sql.DB
}

// NewPGStore opens a connection pool against dsn, verifies it, and ensures
// the schema exists.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PGStore{db: db}, nil
}

// Close releases the connection pool.
func (s *PGStore) Close() error {
	return s.db.Close()
}

// Increment applies one logical increment inside a transaction. The row is
// locked with FOR UPDATE for the duration of the transaction, serializing
// concurrent increments for the same key. Losing the insert race between
// "no row found" and "insert" surfaces as a unique violation, which is
// retried exactly once: on the retry the row exists and takes the update
// path.
func (s *PGStore) Increment(ctx context.Context, userID, roundID int64, suppress bool) (model.TapCounter, error) {
	start := time.Now()
	defer func() {
		metrics.RecordIncrementLatency(float64(time.Since(start).Microseconds()) / 1e3)
	}()

	c, err := s.incrementOnce(ctx, userID, roundID, suppress)
	if errors.Is(err, ErrConflict) {
		c, err = s.incrementOnce(ctx, userID, roundID, suppress)
	}
	return c, err
}

func (s *PGStore) incrementOnce(ctx context.Context, userID, roundID int64, suppress bool) (model.TapCounter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.TapCounter{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var count int64
	err = tx.QueryRowContext(ctx, `
		SELECT count
		FROM taps
		WHERE user_id = $1 AND round_id = $2
		FOR UPDATE
	`, userID, roundID).Scan(&count)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !suppress {
			count = 1
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO taps (user_id, round_id, count, score)
			VALUES ($1, $2, $3, $4)
		`, userID, roundID, count, scoring.Score(count))
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return model.TapCounter{}, fmt.Errorf("insert tap: %w", ErrConflict)
			}
			return model.TapCounter{}, fmt.Errorf("insert tap: %w", err)
		}
		metrics.RecordCounterCreated()
	case err != nil:
		return model.TapCounter{}, fmt.Errorf("lock tap: %w", err)
	case !suppress:
		count++
		_, err = tx.ExecContext(ctx, `
			UPDATE taps
			SET count = $3, score = $4
			WHERE user_id = $1 AND round_id = $2
		`, userID, roundID, count, scoring.Score(count))
		if err != nil {
			return model.TapCounter{}, fmt.Errorf("update tap: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.TapCounter{}, fmt.Errorf("commit: %w", err)
	}
	return model.TapCounter{
		UserID:  userID,
		RoundID: roundID,
		Count:   count,
		Score:   scoring.Score(count),
	}, nil
}

// Get returns the counter for (userID, roundID) or ErrNotFound.
func (s *PGStore) Get(ctx context.Context, userID, roundID int64) (model.TapCounter, error) {
	c := model.TapCounter{UserID: userID, RoundID: roundID}
	err := s.db.QueryRowContext(ctx, `
		SELECT count, score
		FROM taps
		WHERE user_id = $1 AND round_id = $2
	`, userID, roundID).Scan(&c.Count, &c.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TapCounter{}, ErrNotFound
	}
	if err != nil {
		return model.TapCounter{}, fmt.Errorf("get tap: %w", err)
	}
	return c, nil
}

// ListByRound returns every counter recorded for the round, user ID
// ascending.
func (s *PGStore) ListByRound(ctx context.Context, roundID int64) ([]model.TapCounter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, count, score
		FROM taps
		WHERE round_id = $1
		ORDER BY user_id
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list taps: %w", err)
	}
	defer rows.Close()

	var out []model.TapCounter
	for rows.Next() {
		c := model.TapCounter{RoundID: roundID}
		if err := rows.Scan(&c.UserID, &c.Count, &c.Score); err != nil {
			return nil, fmt.Errorf("scan tap: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list taps: %w", err)
	}
	return out, nil
}

// CreateRound stores a new round.
func (s *PGStore) CreateRound(ctx context.Context, start, end time.Time) (model.Round, error) {
	r := model.Round{StartTime: start, EndTime: end}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO rounds (start_time, end_time)
		VALUES ($1, $2)
		RETURNING id
	`, start, end).Scan(&r.ID)
	if err != nil {
		return model.Round{}, fmt.Errorf("create round: %w", err)
	}
	return r, nil
}

// GetRound returns the round with the given ID or ErrNotFound.
func (s *PGStore) GetRound(ctx context.Context, id int64) (model.Round, error) {
	r := model.Round{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT start_time, end_time
		FROM rounds
		WHERE id = $1
	`, id).Scan(&r.StartTime, &r.EndTime)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Round{}, ErrNotFound
	}
	if err != nil {
		return model.Round{}, fmt.Errorf("get round: %w", err)
	}
	return r, nil
}

// ListRounds returns all rounds, newest start time first.
func (s *PGStore) ListRounds(ctx context.Context) ([]model.Round, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_time, end_time
		FROM rounds
		ORDER BY start_time DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var out []model.Round
	for rows.Next() {
		var r model.Round
		if err := rows.Scan(&r.ID, &r.StartTime, &r.EndTime); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	return out, nil
}

// CreateUser stores a new user or returns ErrConflict on a taken username.
func (s *PGStore) CreateUser(ctx context.Context, username, passwordHash string) (model.User, error) {
	u := model.User{Username: username, PasswordHash: passwordHash}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, username, passwordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return model.User{}, fmt.Errorf("create user: %w", ErrConflict)
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUser returns the user with the given ID or ErrNotFound.
func (s *PGStore) GetUser(ctx context.Context, id int64) (model.User, error) {
	u := model.User{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the user with the given username or ErrNotFound.
func (s *PGStore) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	u := model.User{Username: username}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, password_hash, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
