// Package constants provides centralized constant values used throughout keel.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names and paths used by keel for organizing data.
const (
	// KeelHome is the hidden directory name where keel stores its data.
	// This directory is created in the user's home directory.
	KeelHome = ".keel"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"
)

// Progress and cancellation defaults.
const (
	// DefaultProgressThrottle is the minimum interval between two non-terminal
	// progress events of one operation.
	DefaultProgressThrottle = 100 * time.Millisecond
)

// Background activity defaults.
const (
	// DefaultAutoFetchInterval is how often active repositories are fetched.
	DefaultAutoFetchInterval = 5 * time.Minute

	// DefaultAutoFetchConcurrency bounds parallel background fetches.
	DefaultAutoFetchConcurrency = 4

	// DefaultWatchDebounce coalesces bursts of control-directory events.
	DefaultWatchDebounce = 150 * time.Millisecond

	// DefaultHookTimeout bounds a single hook execution. Zero disables the bound.
	DefaultHookTimeout = 0 * time.Second
)

// Process management.
const (
	// ProcessTerminationTimeout is how long a canceled git process may take
	// to exit after the process group was signaled before it is killed.
	ProcessTerminationTimeout = 2 * time.Second
)

// Git defaults.
const (
	// DefaultRemote is the remote used when none is configured.
	DefaultRemote = "origin"

	// DefaultGitBinary is the git executable looked up on PATH.
	DefaultGitBinary = "git"
)

// Log rotation defaults.
const (
	// LogMaxSizeMB is the maximum size of the log file before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated files to keep.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age of rotated files.
	LogMaxAgeDays = 14

	// LogCompress compresses rotated files.
	LogCompress = true
)
