package config

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/keel/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - git.binary and git.remote must not be empty
//   - git.lock_retry.max_attempts must be at least 1
//   - progress.throttle_interval must be between 0 and 10s
//   - hooks.timeout must not be negative
//   - autofetch.interval must be at least 10s, autofetch.concurrency between 1 and 64
//   - watch.debounce must not be negative
//   - log.level must be a zerolog level name
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	validators := []func(*Config) error{
		validateGitConfig,
		validateProgressConfig,
		validateHooksConfig,
		validateAutoFetchConfig,
		validateWatchConfig,
		validateLogConfig,
	}
	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateGitConfig(cfg *Config) error {
	if cfg.Git.Binary == "" {
		return errors.Wrap(errors.ErrConfigInvalidGit, "git.binary must not be empty")
	}
	if cfg.Git.Remote == "" {
		return errors.Wrap(errors.ErrConfigInvalidGit, "git.remote must not be empty")
	}
	if cfg.Git.LockRetry.MaxAttempts < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidGit,
			"git.lock_retry.max_attempts must be at least 1, got %d", cfg.Git.LockRetry.MaxAttempts)
	}
	return nil
}

func validateProgressConfig(cfg *Config) error {
	interval := cfg.Progress.ThrottleInterval
	if interval < 0 || interval > 10*time.Second {
		return errors.Wrapf(errors.ErrConfigInvalidProgress,
			"progress.throttle_interval must be between 0 and 10s, got %s", interval)
	}
	return nil
}

func validateHooksConfig(cfg *Config) error {
	if cfg.Hooks.Timeout < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidHooks,
			"hooks.timeout must not be negative, got %s", cfg.Hooks.Timeout)
	}
	return nil
}

func validateAutoFetchConfig(cfg *Config) error {
	if cfg.AutoFetch.Interval < 10*time.Second {
		return errors.Wrapf(errors.ErrConfigInvalidAutoFetch,
			"autofetch.interval must be at least 10s, got %s", cfg.AutoFetch.Interval)
	}
	if cfg.AutoFetch.Concurrency < 1 || cfg.AutoFetch.Concurrency > 64 {
		return errors.Wrapf(errors.ErrConfigInvalidAutoFetch,
			"autofetch.concurrency must be between 1 and 64, got %d", cfg.AutoFetch.Concurrency)
	}
	return nil
}

func validateWatchConfig(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidWatch,
			"watch.debounce must not be negative, got %s", cfg.Watch.Debounce)
	}
	return nil
}

func validateLogConfig(cfg *Config) error {
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return errors.Wrapf(errors.ErrConfigInvalidLog, "log.level %q is not a valid level", cfg.Log.Level)
	}
	return nil
}
