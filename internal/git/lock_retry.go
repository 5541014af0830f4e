package git

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/keel/internal/ctxutil"
)

// LockRetryConfig configures retries for lock file errors.
type LockRetryConfig struct {
	// MaxAttempts is the maximum number of attempts (default: 5).
	MaxAttempts int
	// InitialDelay is the first delay between attempts (default: 100ms).
	InitialDelay time.Duration
	// MaxDelay caps the delay (default: 2s).
	MaxDelay time.Duration
	// Multiplier grows the delay per attempt (default: 2.0).
	Multiplier float64
}

// DefaultLockRetryConfig returns the defaults for lock file retry. Delays are
// short because index.lock is normally held for milliseconds.
func DefaultLockRetryConfig() LockRetryConfig {
	return LockRetryConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

// RunWithLockRetry runs a read-only git query, retrying with exponential
// backoff while it fails on a lock file held by another git process (for
// example the user's own terminal). Other errors return immediately.
//
// Only queries go through here. Mutating operations are never retried.
func RunWithLockRetry[R any](
	ctx context.Context,
	config LockRetryConfig,
	logger zerolog.Logger,
	query func(ctx context.Context) (R, error),
) (R, error) {
	var zero R
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	delay := config.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctxutil.Canceled(ctx); err != nil {
			return zero, err
		}

		result, err := query(ctx)
		if err == nil {
			return result, nil
		}
		if !MatchesLockFileError(err.Error()) {
			return zero, err
		}
		lastErr = err

		if attempt == config.MaxAttempts {
			break
		}

		logger.Debug().
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("git lock file busy, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	logger.Warn().
		Int("attempts", config.MaxAttempts).
		Err(lastErr).
		Msg("git lock file retry exhausted")

	return zero, lastErr
}
