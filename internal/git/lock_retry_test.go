package git

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/keel/internal/testutil"
)

func fastLockRetryConfig(attempts int) LockRetryConfig {
	return LockRetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultLockRetryConfig(t *testing.T) {
	config := DefaultLockRetryConfig()

	assert.Equal(t, 5, config.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, config.InitialDelay)
	assert.Equal(t, 2*time.Second, config.MaxDelay)
	assert.InDelta(t, 2.0, config.Multiplier, 0.0001)
}

func TestRunWithLockRetry_Success(t *testing.T) {
	callCount := 0
	result, err := RunWithLockRetry(context.Background(), fastLockRetryConfig(3), zerolog.Nop(),
		func(_ context.Context) (string, error) {
			callCount++
			return "success", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 1, callCount)
}

func TestRunWithLockRetry_LockErrorThenSuccess(t *testing.T) {
	callCount := 0
	result, err := RunWithLockRetry(context.Background(), fastLockRetryConfig(5), zerolog.Nop(),
		func(_ context.Context) (int, error) {
			callCount++
			if callCount < 3 {
				return 0, testutil.ErrMockIndexLock
			}
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, callCount)
}

func TestRunWithLockRetry_NonLockError(t *testing.T) {
	callCount := 0
	_, err := RunWithLockRetry(context.Background(), fastLockRetryConfig(5), zerolog.Nop(),
		func(_ context.Context) (string, error) {
			callCount++
			return "", testutil.ErrMockNetwork
		})

	require.ErrorIs(t, err, testutil.ErrMockNetwork)
	assert.Equal(t, 1, callCount)
}

func TestRunWithLockRetry_ExhaustedRetries(t *testing.T) {
	callCount := 0
	_, err := RunWithLockRetry(context.Background(), fastLockRetryConfig(3), zerolog.Nop(),
		func(_ context.Context) (string, error) {
			callCount++
			return "", testutil.ErrMockIndexLock
		})

	require.ErrorIs(t, err, testutil.ErrMockIndexLock)
	assert.Equal(t, 3, callCount)
}

func TestRunWithLockRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := LockRetryConfig{
		MaxAttempts:  10,
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   1,
	}

	callCount := 0
	_, err := RunWithLockRetry(ctx, config, zerolog.Nop(), func(_ context.Context) (string, error) {
		callCount++
		cancel()
		return "", testutil.ErrMockIndexLock
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
}

func TestRunWithLockRetry_ZeroAttemptsRunsOnce(t *testing.T) {
	callCount := 0
	_, err := RunWithLockRetry(context.Background(), LockRetryConfig{}, zerolog.Nop(),
		func(_ context.Context) (string, error) {
			callCount++
			return "", testutil.ErrMockIndexLock
		})

	require.Error(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRunWithLockRetry_VariousLockErrorMessages(t *testing.T) {
	messages := []string{
		"fatal: Unable to create '/x/.git/index.lock': File exists.",
		"Another git process seems to be running in this repository",
		"error: could not lock config file .git/config",
		"fatal: Unable to create lock file",
	}

	for _, msg := range messages {
		t.Run(msg, func(t *testing.T) {
			callCount := 0
			_, err := RunWithLockRetry(context.Background(), fastLockRetryConfig(2), zerolog.Nop(),
				func(_ context.Context) (string, error) {
					callCount++
					return "", errors.New(msg) //nolint:err113 // dynamic test messages
				})
			require.Error(t, err)
			assert.Equal(t, 2, callCount)
		})
	}
}
