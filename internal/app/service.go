// Package service provides the core business service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/lastofguss/tapd/internal/adapters/mq/queue"
	"github.com/lastofguss/tapd/internal/adapters/mq/worker"
	"github.com/lastofguss/tapd/internal/adapters/repository"
	"github.com/lastofguss/tapd/internal/auth"
	"github.com/lastofguss/tapd/internal/domain/dedupe"
	"github.com/lastofguss/tapd/internal/domain/model"
	"github.com/lastofguss/tapd/internal/domain/window"
	"github.com/lastofguss/tapd/pkg/logger"
	"github.com/lastofguss/tapd/pkg/metrics"
)

// Default service configuration.
const (
	defaultTokenTTL         = 24 * time.Hour
	defaultRoundDuration    = 60 * time.Second
	defaultRoundCooldown    = 30 * time.Second
	defaultRefreshQueueSize = 1024
)

// TapResult is the authoritative post-increment state returned to a tapper.
type TapResult struct {
	Count int64
	Score int64
}

// RoundInfo is a round decorated with its presentation status and leader.
type RoundInfo struct {
	Round     model.Round
	Status    string
	Leader    string
	HasLeader bool
}

// AuthResult carries the issued token and the authenticated user.
type AuthResult struct {
	Token string
	User  model.User
}

// cachedLeader is one entry of the leader cache maintained by the refresh
// workers. ok is false when the round has no leader yet.
type cachedLeader struct {
	username string
	ok       bool
}

// Service implements the tap, scoring, and leaderboard operations.
type Service struct {
	mu sync.RWMutex

	store  repository.Store
	tokens auth.Provider

	// Refresh pipeline
	refreshQueue   *queue.InMemoryQueue
	pending        dedupe.Deduper
	pool           *worker.Pool
	refreshWorkers int

	// Leader cache, keyed by round ID, fed by the refresh workers.
	leaderMu sync.RWMutex
	leaders  map[int64]cachedLeader

	// Configuration
	tokenTTL           time.Duration
	adminUsername      string
	suppressedUsername string
	roundCooldown      time.Duration
	roundDuration      time.Duration
	refreshQueueSize   int

	now func() time.Time

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		tokenTTL:           defaultTokenTTL,
		adminUsername:      "admin",
		suppressedUsername: "Никита",
		roundCooldown:      defaultRoundCooldown,
		roundDuration:      defaultRoundDuration,
		refreshQueueSize:   defaultRefreshQueueSize,
		refreshWorkers:     runtime.NumCPU(),
		leaders:            make(map[int64]cachedLeader),
		now:                time.Now,
		logger:             logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the refresh pipeline. The store and token provider must
// have been supplied via options.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil {
		return errors.New("service: no store configured")
	}

	s.pending = dedupe.NewPendingSet()
	s.refreshQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.refreshQueueSize))
	s.pool = worker.NewPool(s.refreshWorkers, s.refreshQueue, s, s.pending, worker.WithLogger(s.logger))

	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(poolCtx)

	s.started = true
	s.logger.Info(ctx, "tap service started",
		logger.Int("refreshWorkers", s.refreshWorkers),
		logger.Int("refreshQueueSize", s.refreshQueueSize),
	)
	return nil
}

// Stop shuts down the refresh pipeline, draining queued jobs first.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	_ = s.refreshQueue.Close()
	s.pool.Wait()
	if s.cancel != nil {
		s.cancel()
	}
	s.started = false
	s.logger.Info(context.Background(), "tap service stopped")
}

// Authenticate logs a user in, lazily registering unknown usernames the way
// the game always has. Known usernames must present the matching password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (AuthResult, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		hash, hashErr := auth.HashPassword(password)
		if hashErr != nil {
			return AuthResult{}, fmt.Errorf("hash password: %w", hashErr)
		}
		user, err = s.store.CreateUser(ctx, username, hash)
		if errors.Is(err, repository.ErrConflict) {
			// Lost a concurrent first-login race; the row exists now.
			user, err = s.store.GetUserByUsername(ctx, username)
			if err != nil {
				return AuthResult{}, fmt.Errorf("get user: %w", err)
			}
			if !auth.VerifyPassword(user.PasswordHash, password) {
				return AuthResult{}, ErrInvalidCredentials
			}
		} else if err != nil {
			return AuthResult{}, fmt.Errorf("create user: %w", err)
		}
	case err != nil:
		return AuthResult{}, fmt.Errorf("get user: %w", err)
	default:
		if !auth.VerifyPassword(user.PasswordHash, password) {
			return AuthResult{}, ErrInvalidCredentials
		}
	}

	token, err := s.tokens.GenerateToken(auth.Claims{
		UserID:     user.ID,
		Username:   user.Username,
		Admin:      user.Username == s.adminUsername,
		Suppressed: user.Username == s.suppressedUsername,
	}, s.tokenTTL)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{Token: token, User: user}, nil
}

// Tap applies one tap for (userID, roundID). The round must exist and be
// inside its active window; the returned count and score are the
// authoritative post-increment state. suppress comes from the caller's
// authentication context and marks taps that are accepted but not counted.
func (s *Service) Tap(ctx context.Context, userID, roundID int64, suppress bool) (TapResult, error) {
	round, err := s.store.GetRound(ctx, roundID)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordTapRejected("round_not_found")
		return TapResult{}, ErrRoundNotFound
	}
	if err != nil {
		return TapResult{}, fmt.Errorf("get round: %w", err)
	}

	if window.Classify(round, s.now()) != window.Active {
		metrics.RecordTapRejected("round_not_active")
		return TapResult{}, ErrRoundNotActive
	}

	counter, err := s.store.Increment(ctx, userID, roundID, suppress)
	if err != nil {
		return TapResult{}, fmt.Errorf("increment tap: %w", err)
	}
	metrics.RecordTapAccepted()

	s.scheduleRefresh(ctx, roundID)
	return TapResult{Count: counter.Count, Score: counter.Score}, nil
}

// UserScore returns the caller's score for a round, zero when the user has
// not tapped in it yet.
func (s *Service) UserScore(ctx context.Context, userID, roundID int64) (int64, error) {
	counter, err := s.store.Get(ctx, userID, roundID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get tap: %w", err)
	}
	return counter.Score, nil
}

// Leader returns the username holding the strictly greatest score in the
// round. ok is false when the round has no counters or every score is zero.
// Ties keep the first row encountered in scan order; the ordering among
// equal top scores is deliberately unspecified.
func (s *Service) Leader(ctx context.Context, roundID int64) (string, bool, error) {
	counters, err := s.store.ListByRound(ctx, roundID)
	if err != nil {
		return "", false, fmt.Errorf("list taps: %w", err)
	}

	var (
		maxScore int64
		leaderID int64
		found    bool
	)
	for _, c := range counters {
		if c.Score > maxScore {
			maxScore = c.Score
			leaderID = c.UserID
			found = true
		}
	}
	if !found {
		return "", false, nil
	}

	user, err := s.store.GetUser(ctx, leaderID)
	if err != nil {
		return "", false, fmt.Errorf("resolve leader: %w", err)
	}
	return user.Username, true, nil
}

// RefreshLeader recomputes one round's leader into the cache. Called by the
// refresh workers.
func (s *Service) RefreshLeader(ctx context.Context, roundID int64) error {
	username, ok, err := s.Leader(ctx, roundID)
	if err != nil {
		return err
	}
	s.leaderMu.Lock()
	s.leaders[roundID] = cachedLeader{username: username, ok: ok}
	s.leaderMu.Unlock()
	return nil
}

// scheduleRefresh queues a leader refresh for the round unless one is
// already pending. A full queue releases the pending slot so the next tap
// tries again.
func (s *Service) scheduleRefresh(ctx context.Context, roundID int64) {
	job := queue.Job{RoundID: roundID}
	if s.pending == nil || s.pending.SeenAndRecord(ctx, job.Key()) {
		return
	}
	if !s.refreshQueue.Enqueue(ctx, job) {
		s.pending.Unrecord(ctx, job.Key())
	}
}

// Rounds lists all rounds newest-first, each with its status and leader.
// The list view reads leaders from the refresh cache when possible and only
// falls back to a full scan on a cache miss; momentary staleness here is
// acceptable.
func (s *Service) Rounds(ctx context.Context) ([]RoundInfo, error) {
	rounds, err := s.store.ListRounds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}

	now := s.now()
	out := make([]RoundInfo, 0, len(rounds))
	for _, r := range rounds {
		info := RoundInfo{Round: r, Status: window.Status(r, now)}

		s.leaderMu.RLock()
		cached, hit := s.leaders[r.ID]
		s.leaderMu.RUnlock()

		if hit {
			info.Leader, info.HasLeader = cached.username, cached.ok
		} else {
			username, ok, err := s.Leader(ctx, r.ID)
			if err != nil {
				return nil, err
			}
			info.Leader, info.HasLeader = username, ok
			s.leaderMu.Lock()
			s.leaders[r.ID] = cachedLeader{username: username, ok: ok}
			s.leaderMu.Unlock()
		}
		out = append(out, info)
	}
	return out, nil
}

// Round returns one round with its status and authoritative leader.
func (s *Service) Round(ctx context.Context, id int64) (RoundInfo, error) {
	round, err := s.store.GetRound(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return RoundInfo{}, ErrRoundNotFound
	}
	if err != nil {
		return RoundInfo{}, fmt.Errorf("get round: %w", err)
	}

	username, ok, err := s.Leader(ctx, id)
	if err != nil {
		return RoundInfo{}, err
	}
	return RoundInfo{
		Round:     round,
		Status:    window.Status(round, s.now()),
		Leader:    username,
		HasLeader: ok,
	}, nil
}

// CreateRound creates a round starting after the configured cooldown and
// lasting the configured duration.
func (s *Service) CreateRound(ctx context.Context) (model.Round, error) {
	start := s.now().Add(s.roundCooldown)
	round, err := s.store.CreateRound(ctx, start, start.Add(s.roundDuration))
	if err != nil {
		return model.Round{}, fmt.Errorf("create round: %w", err)
	}
	s.logger.Info(ctx, "round created",
		logger.Int64("round_id", round.ID),
		logger.Any("start", round.StartTime),
		logger.Any("end", round.EndTime),
	)
	return round, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"refreshWorkers": s.refreshWorkers,
	}
	if s.started {
		queueLen := s.refreshQueue.Len()
		stats["refreshQueueLength"] = queueLen
		stats["pendingRefreshes"] = s.pending.Size()
		metrics.UpdateRefreshQueueSize(queueLen)
	}
	return stats
}
