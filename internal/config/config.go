// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env
//   on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseURL selects the postgres-backed store when set; the in-memory
	// store is used otherwise.
	DatabaseURL string `koanf:"database_url"`

	// ShardCount configures lock striping in the in-memory tap store.
	ShardCount int `koanf:"shard_count"`

	// RefreshQueueSize bounds the leader refresh queue.
	RefreshQueueSize int `koanf:"refresh_queue_size"`

	// RefreshWorkerCount sets the number of leader refresh workers.
	RefreshWorkerCount int `koanf:"refresh_worker_count"`

	// JWTSecret signs bearer tokens.
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTLMinutes bounds bearer token lifetime.
	TokenTTLMinutes int `koanf:"token_ttl_minutes"`

	// AdminUsername is the account allowed to create rounds.
	AdminUsername string `koanf:"admin_username"`

	// SuppressedUsername is the account whose taps are accepted but never
	// counted.
	SuppressedUsername string `koanf:"suppressed_username"`

	// RoundDurationSeconds is the length of a created round's active window.
	RoundDurationSeconds int `koanf:"round_duration_seconds"`

	// RoundCooldownSeconds is the delay between creation and a round's
	// start.
	RoundCooldownSeconds int `koanf:"round_cooldown_seconds"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":8080",
		ShardCount:           8,
		RefreshQueueSize:     1024,
		RefreshWorkerCount:   runtime.NumCPU(),
		JWTSecret:            "dev-secret-change-me",
		TokenTTLMinutes:      60 * 24,
		AdminUsername:        "admin",
		SuppressedUsername:   "Никита",
		RoundDurationSeconds: 60,
		RoundCooldownSeconds: 30,
	}
}

// TokenTTL returns the bearer token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// RoundDuration returns the active window length for created rounds.
func (c *Config) RoundDuration() time.Duration {
	return time.Duration(c.RoundDurationSeconds) * time.Second
}

// RoundCooldown returns the delay before a created round starts.
func (c *Config) RoundCooldown() time.Duration {
	return time.Duration(c.RoundCooldownSeconds) * time.Second
}
