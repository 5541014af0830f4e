package config

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/keel/internal/errors"
)

// newViperInstance creates a Viper instance with defaults, the KEEL_ env
// prefix and a "." to "_" key replacer.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("KEEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration for the repository rooted at repoRoot.
// repoRoot may be empty, in which case no project config is read.
// Missing config files are not an error.
func Load(ctx context.Context, repoRoot string) (*Config, error) {
	v := newViperInstance()

	if globalPath, err := GlobalConfigPath(); err == nil && fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
			return nil, errors.Wrap(err, "failed to read global config file")
		}
	}

	if repoRoot != "" {
		projectPath := ProjectConfigPath(repoRoot)
		if fileExists(projectPath) {
			v.SetConfigFile(projectPath)
			if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
				return nil, errors.Wrap(err, "failed to read project config file")
			}
		}
	}

	cfg, err := unmarshalAndValidate(v)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Dur("progress.throttle_interval", cfg.Progress.ThrottleInterval).
		Bool("hooks.enabled", cfg.Hooks.Enabled).
		Dur("autofetch.interval", cfg.AutoFetch.Interval).
		Msg("configuration loaded")

	return cfg, nil
}

// LoadWithOverrides loads configuration and applies CLI flag overrides.
// Only non-zero values in overrides are applied.
func LoadWithOverrides(ctx context.Context, repoRoot string, overrides *Config) (*Config, error) {
	cfg, err := Load(ctx, repoRoot)
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		applyOverrides(cfg, overrides)
	}
	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}
	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths.
// Either path can be empty to skip that level.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(v)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// setDefaults configures all default values on the Viper instance.
// Keys must match the YAML tag names exactly.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("git.binary", d.Git.Binary)
	v.SetDefault("git.remote", d.Git.Remote)
	v.SetDefault("git.lock_retry.max_attempts", d.Git.LockRetry.MaxAttempts)
	v.SetDefault("git.lock_retry.initial_delay", d.Git.LockRetry.InitialDelay.String())
	v.SetDefault("git.lock_retry.max_delay", d.Git.LockRetry.MaxDelay.String())
	v.SetDefault("git.lock_retry.multiplier", d.Git.LockRetry.Multiplier)

	v.SetDefault("progress.throttle_interval", d.Progress.ThrottleInterval.String())

	v.SetDefault("hooks.enabled", d.Hooks.Enabled)
	v.SetDefault("hooks.timeout", d.Hooks.Timeout.String())

	v.SetDefault("autofetch.enabled", d.AutoFetch.Enabled)
	v.SetDefault("autofetch.interval", d.AutoFetch.Interval.String())
	v.SetDefault("autofetch.concurrency", d.AutoFetch.Concurrency)

	v.SetDefault("watch.debounce", d.Watch.Debounce.String())

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

// applyOverrides merges non-zero override values into the config.
// Boolean fields cannot be overridden to false here; the CLI handles those
// through cmd.Flags().Changed.
func applyOverrides(cfg, overrides *Config) {
	if overrides.Git.Binary != "" {
		cfg.Git.Binary = overrides.Git.Binary
	}
	if overrides.Git.Remote != "" {
		cfg.Git.Remote = overrides.Git.Remote
	}
	if overrides.Progress.ThrottleInterval != 0 {
		cfg.Progress.ThrottleInterval = overrides.Progress.ThrottleInterval
	}
	if overrides.Hooks.Timeout != 0 {
		cfg.Hooks.Timeout = overrides.Hooks.Timeout
	}
	if overrides.AutoFetch.Interval != 0 {
		cfg.AutoFetch.Interval = overrides.AutoFetch.Interval
	}
	if overrides.AutoFetch.Concurrency != 0 {
		cfg.AutoFetch.Concurrency = overrides.AutoFetch.Concurrency
	}
	if overrides.Watch.Debounce != 0 {
		cfg.Watch.Debounce = overrides.Watch.Debounce
	}
	if overrides.Log.Level != "" {
		cfg.Log.Level = overrides.Log.Level
	}
}

// viperDecoderOption configures mapstructure to decode durations from strings.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}
