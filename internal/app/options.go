package service

import (
	"time"

	"github.com/lastofguss/tapd/internal/adapters/repository"
	"github.com/lastofguss/tapd/internal/auth"
	"github.com/lastofguss/tapd/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTokenProvider sets the bearer token provider used by Authenticate.
func WithTokenProvider(p auth.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.tokens = p
		}
	}
}

// WithTokenTTL sets the bearer token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithAdminUsername sets the account allowed to create rounds.
func WithAdminUsername(name string) Option {
	return func(s *Service) {
		s.adminUsername = name
	}
}

// WithSuppressedUsername sets the account whose taps are never counted.
func WithSuppressedUsername(name string) Option {
	return func(s *Service) {
		s.suppressedUsername = name
	}
}

// WithRoundTiming sets the cooldown before a created round starts and the
// length of its active window.
func WithRoundTiming(cooldown, duration time.Duration) Option {
	return func(s *Service) {
		if cooldown >= 0 {
			s.roundCooldown = cooldown
		}
		if duration > 0 {
			s.roundDuration = duration
		}
	}
}

// WithRefreshQueueSize bounds the leader refresh queue.
func WithRefreshQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.refreshQueueSize = n
		}
	}
}

// WithRefreshWorkerCount sets the number of leader refresh workers.
func WithRefreshWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.refreshWorkers = n
		}
	}
}

// WithClock overrides the service clock. Used by tests to pin the round
// window gate to known instants.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
