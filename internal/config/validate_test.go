package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/keel/internal/errors"
)

func TestValidate_Nil(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), errors.ErrConfigNil)
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty binary", func(c *Config) { c.Git.Binary = "" }, errors.ErrConfigInvalidGit},
		{"empty remote", func(c *Config) { c.Git.Remote = "" }, errors.ErrConfigInvalidGit},
		{"no lock attempts", func(c *Config) { c.Git.LockRetry.MaxAttempts = 0 }, errors.ErrConfigInvalidGit},
		{"negative throttle", func(c *Config) { c.Progress.ThrottleInterval = -time.Millisecond }, errors.ErrConfigInvalidProgress},
		{"huge throttle", func(c *Config) { c.Progress.ThrottleInterval = time.Minute }, errors.ErrConfigInvalidProgress},
		{"negative hook timeout", func(c *Config) { c.Hooks.Timeout = -time.Second }, errors.ErrConfigInvalidHooks},
		{"autofetch too often", func(c *Config) { c.AutoFetch.Interval = time.Second }, errors.ErrConfigInvalidAutoFetch},
		{"autofetch concurrency", func(c *Config) { c.AutoFetch.Concurrency = 100 }, errors.ErrConfigInvalidAutoFetch},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -1 }, errors.ErrConfigInvalidWatch},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, errors.ErrConfigInvalidLog},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	t.Run("zero throttle is allowed", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Progress.ThrottleInterval = 0
		assert.NoError(t, Validate(cfg))
	})
}
