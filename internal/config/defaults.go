package config

import (
	"time"

	"github.com/mrz1836/keel/internal/constants"
)

// DefaultConfig returns a new Config with default values.
// These are the base layer that config files, environment variables and
// CLI flags override.
func DefaultConfig() *Config {
	return &Config{
		Git: GitConfig{
			Binary: constants.DefaultGitBinary,
			Remote: constants.DefaultRemote,
			LockRetry: LockRetryConfig{
				MaxAttempts:  5,
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     2 * time.Second,
				Multiplier:   2.0,
			},
		},
		Progress: ProgressConfig{
			ThrottleInterval: constants.DefaultProgressThrottle,
		},
		Hooks: HooksConfig{
			Enabled: true,
			Timeout: constants.DefaultHookTimeout,
		},
		AutoFetch: AutoFetchConfig{
			Enabled:     false,
			Interval:    constants.DefaultAutoFetchInterval,
			Concurrency: constants.DefaultAutoFetchConcurrency,
		},
		Watch: WatchConfig{
			Debounce: constants.DefaultWatchDebounce,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  constants.LogMaxSizeMB,
			MaxBackups: constants.LogMaxBackups,
			MaxAgeDays: constants.LogMaxAgeDays,
		},
	}
}
