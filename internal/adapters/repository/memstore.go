package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/lastofguss/tapd/internal/domain/model"
	"github.com/lastofguss/tapd/internal/domain/scoring"
	"github.com/lastofguss/tapd/pkg/metrics"
)

// Default in-memory store configuration.
const defaultShardCount = 8

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithShardCount sets the number of lock-striped tap shards.
func WithShardCount(n int) Option {
	return func(s *MemStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

type tapKey struct {
	userID  int64
	roundID int64
}

// tapShard holds a slice of the counter space behind its own lock, so
// increments for different keys rarely contend and increments for the same
// key are fully serialized.
type tapShard struct {
	mu       sync.RWMutex
	counters map[tapKey]model.TapCounter
}

// MemStore is the in-memory Store implementation. Counters are striped
// across shards by key hash; rounds and users sit behind their own locks.
type MemStore struct {
	shardCount int
	shards     []*tapShard

	roundMu sync.RWMutex
	rounds  map[int64]model.Round
	nextRID int64

	userMu  sync.RWMutex
	users   map[int64]model.User
	byName  map[string]int64
	nextUID int64
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		shardCount: defaultShardCount,
		rounds:     make(map[int64]model.Round),
		users:      make(map[int64]model.User),
		byName:     make(map[string]int64),
		nextRID:    1,
		nextUID:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*tapShard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &tapShard{counters: make(map[tapKey]model.TapCounter)}
	}
	metrics.UpdateStoreShardCount(s.shardCount)
	return s
}

func (s *MemStore) shardFor(k tapKey) *tapShard {
	h := fnv.New64a()
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(k.userID >> (8 * i))
		buf[8+i] = byte(k.roundID >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return s.shards[h.Sum64()%uint64(s.shardCount)]
}

// Increment applies one logical increment under the key's shard lock. The
// score is recomputed from the new count inside the same critical section,
// so a reader can never observe a count/score pair that diverges.
func (s *MemStore) Increment(_ context.Context, userID, roundID int64, suppress bool) (model.TapCounter, error) {
	start := time.Now()
	defer func() {
		metrics.RecordIncrementLatency(float64(time.Since(start).Microseconds()) / 1e3)
	}()

	k := tapKey{userID: userID, roundID: roundID}
	shard := s.shardFor(k)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	c, ok := shard.counters[k]
	switch {
	case !ok:
		var count int64
		if !suppress {
			count = 1
		}
		c = model.TapCounter{
			UserID:  userID,
			RoundID: roundID,
			Count:   count,
			Score:   scoring.Score(count),
		}
		metrics.RecordCounterCreated()
	case !suppress:
		c.Count++
		c.Score = scoring.Score(c.Count)
	}
	shard.counters[k] = c
	return c, nil
}

// Get returns the counter for (userID, roundID) or ErrNotFound.
func (s *MemStore) Get(_ context.Context, userID, roundID int64) (model.TapCounter, error) {
	k := tapKey{userID: userID, roundID: roundID}
	shard := s.shardFor(k)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	c, ok := shard.counters[k]
	if !ok {
		return model.TapCounter{}, ErrNotFound
	}
	return c, nil
}

// ListByRound collects the round's counters shard by shard. Each shard is
// read under its own RLock, so writers on other shards are never blocked;
// the result reflects last-committed values, not a point-in-time snapshot.
func (s *MemStore) ListByRound(_ context.Context, roundID int64) ([]model.TapCounter, error) {
	var out []model.TapCounter
	for _, shard := range s.shards {
		shard.mu.RLock()
		for k, c := range shard.counters {
			if k.roundID == roundID {
				out = append(out, c)
			}
		}
		shard.mu.RUnlock()
	}
	// Deterministic order for callers; tie-breaks above this layer remain
	// first-encountered in this order.
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// CreateRound stores a new round with the next free ID.
func (s *MemStore) CreateRound(_ context.Context, start, end time.Time) (model.Round, error) {
	s.roundMu.Lock()
	defer s.roundMu.Unlock()

	r := model.Round{ID: s.nextRID, StartTime: start, EndTime: end}
	s.nextRID++
	s.rounds[r.ID] = r
	return r, nil
}

// GetRound returns the round with the given ID or ErrNotFound.
func (s *MemStore) GetRound(_ context.Context, id int64) (model.Round, error) {
	s.roundMu.RLock()
	defer s.roundMu.RUnlock()

	r, ok := s.rounds[id]
	if !ok {
		return model.Round{}, ErrNotFound
	}
	return r, nil
}

// ListRounds returns all rounds, newest start time first.
func (s *MemStore) ListRounds(_ context.Context) ([]model.Round, error) {
	s.roundMu.RLock()
	defer s.roundMu.RUnlock()

	out := make([]model.Round, 0, len(s.rounds))
	for _, r := range s.rounds {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// CreateUser stores a new user or returns ErrConflict on a taken username.
func (s *MemStore) CreateUser(_ context.Context, username, passwordHash string) (model.User, error) {
	s.userMu.Lock()
	defer s.userMu.Unlock()

	if _, ok := s.byName[username]; ok {
		return model.User{}, ErrConflict
	}
	u := model.User{
		ID:           s.nextUID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.nextUID++
	s.users[u.ID] = u
	s.byName[username] = u.ID
	return u, nil
}

// GetUser returns the user with the given ID or ErrNotFound.
func (s *MemStore) GetUser(_ context.Context, id int64) (model.User, error) {
	s.userMu.RLock()
	defer s.userMu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// GetUserByUsername returns the user with the given username or ErrNotFound.
func (s *MemStore) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	s.userMu.RLock()
	defer s.userMu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return s.users[id], nil
}
