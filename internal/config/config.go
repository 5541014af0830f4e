// Package config provides configuration management for keel with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (KEEL_* prefix)
//  3. Project config (.keel/config.yaml)
//  4. Global config (~/.keel/config.yaml)
//  5. Built-in defaults
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import other internal packages.
package config

import "time"

// Config is the root configuration structure for keel.
type Config struct {
	// Git contains settings for the git subprocess executor.
	Git GitConfig `yaml:"git" mapstructure:"git"`

	// Progress contains settings for progress event delivery.
	Progress ProgressConfig `yaml:"progress" mapstructure:"progress"`

	// Hooks contains settings for the repository hook gate.
	Hooks HooksConfig `yaml:"hooks" mapstructure:"hooks"`

	// AutoFetch contains settings for background fetching of active repositories.
	AutoFetch AutoFetchConfig `yaml:"autofetch" mapstructure:"autofetch"`

	// Watch contains settings for the control-directory watcher.
	Watch WatchConfig `yaml:"watch" mapstructure:"watch"`

	// Log contains settings for the rotating log file.
	Log LogConfig `yaml:"log" mapstructure:"log"`
}

// GitConfig contains settings for running git.
type GitConfig struct {
	// Binary is the git executable. Resolved on PATH when not absolute.
	// Default: "git"
	Binary string `yaml:"binary" mapstructure:"binary"`

	// Remote is the remote used by fetch, push and pull when none is given.
	// Default: "origin"
	Remote string `yaml:"remote" mapstructure:"remote"`

	// LockRetry configures retries of read queries that hit index.lock.
	LockRetry LockRetryConfig `yaml:"lock_retry" mapstructure:"lock_retry"`
}

// LockRetryConfig configures backoff for lock file collisions.
type LockRetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ProgressConfig contains settings for progress events.
type ProgressConfig struct {
	// ThrottleInterval is the minimum spacing of non-terminal events per operation.
	// Default: 100ms
	ThrottleInterval time.Duration `yaml:"throttle_interval" mapstructure:"throttle_interval"`
}

// HooksConfig contains settings for the hook gate.
type HooksConfig struct {
	// Enabled turns hook execution on. When false every hook is reported as skipped.
	// Default: true
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Timeout bounds a single hook run. Zero means wait for the hook to exit.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AutoFetchConfig contains settings for the background fetch poller.
type AutoFetchConfig struct {
	// Enabled also runs the poller alongside `keel watch`.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Interval between two fetch rounds.
	// Default: 5m
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// Concurrency bounds parallel fetches in one round.
	// Default: 4
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// WatchConfig contains settings for the control-directory watcher.
type WatchConfig struct {
	// Debounce coalesces bursts of file events.
	// Default: 150ms
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// LogConfig contains settings for the log file.
type LogConfig struct {
	// Level is the minimum level when neither --verbose nor --quiet is given.
	Level string `yaml:"level" mapstructure:"level"`

	// File overrides the log file path. Empty means ~/.keel/logs/keel.log.
	File string `yaml:"file" mapstructure:"file"`

	MaxSizeMB  int `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int `yaml:"max_age_days" mapstructure:"max_age_days"`
}
