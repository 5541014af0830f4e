package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/keel/internal/constants"
	"github.com/mrz1836/keel/internal/errors"
)

// GlobalConfigDir returns the path to the global keel configuration directory.
// KEEL_HOME overrides the default of ~/.keel.
func GlobalConfigDir() (string, error) {
	if home := os.Getenv("KEEL_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.KeelHome), nil
}

// GlobalConfigPath returns the full path to the global configuration file.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the project configuration file for a repository root.
func ProjectConfigPath(repoRoot string) string {
	return filepath.Join(repoRoot, constants.KeelHome, constants.GlobalConfigName)
}
