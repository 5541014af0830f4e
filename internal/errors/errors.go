// Package errors provides centralized error handling for keel.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrGitOperation indicates that a git subprocess exited unsuccessfully
	// in a way that is not an expected divergence (conflict, up to date).
	ErrGitOperation = errors.New("git operation failed")

	// ErrNotGitRepo indicates the path is not a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrHookRejected indicates that a veto-capable hook exited non-zero.
	ErrHookRejected = errors.New("hook rejected operation")

	// ErrNotConflicted indicates a resolution helper was invoked for a path
	// that is not in the conflicted set, or while no operation is paused.
	ErrNotConflicted = errors.New("path is not conflicted")

	// ErrUnresolvedConflicts indicates continue was requested while unmerged
	// index entries remain.
	ErrUnresolvedConflicts = errors.New("unresolved conflicts remain")

	// ErrNoOperationInProgress indicates continue or skip was requested while
	// the repository has no matching suspended operation.
	ErrNoOperationInProgress = errors.New("no operation in progress")

	// ErrOperationInProgress indicates a new operation was requested while
	// another one is suspended in the repository.
	ErrOperationInProgress = errors.New("another operation is in progress")

	// ErrOperationCanceled indicates a network operation was stopped by the
	// user through the cancellation registry.
	ErrOperationCanceled = errors.New("operation canceled")

	// ErrPushAuthFailed indicates a remote operation failed due to authentication.
	ErrPushAuthFailed = errors.New("remote authentication failed")

	// ErrPushNetworkFailed indicates a remote operation failed due to network errors.
	ErrPushNetworkFailed = errors.New("remote network failure")

	// ErrPushRejected indicates the remote refused a non-fast-forward update.
	ErrPushRejected = errors.New("remote rejected update")

	// ErrRemoteNotFound indicates the remote or remote ref does not exist.
	ErrRemoteNotFound = errors.New("remote not found")

	// ErrCacheClosed indicates the repository cache has been closed.
	ErrCacheClosed = errors.New("repository cache closed")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidGit indicates an invalid git configuration value.
	ErrConfigInvalidGit = errors.New("invalid git configuration")

	// ErrConfigInvalidProgress indicates an invalid progress configuration value.
	ErrConfigInvalidProgress = errors.New("invalid progress configuration")

	// ErrConfigInvalidHooks indicates an invalid hooks configuration value.
	ErrConfigInvalidHooks = errors.New("invalid hooks configuration")

	// ErrConfigInvalidAutoFetch indicates an invalid autofetch configuration value.
	ErrConfigInvalidAutoFetch = errors.New("invalid autofetch configuration")

	// ErrConfigInvalidWatch indicates an invalid watch configuration value.
	ErrConfigInvalidWatch = errors.New("invalid watch configuration")

	// ErrConfigInvalidLog indicates an invalid log configuration value.
	ErrConfigInvalidLog = errors.New("invalid log configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrInvalidArgument indicates that an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrJSONErrorOutput indicates that an error has already been written as JSON.
	ErrJSONErrorOutput = errors.New("error output as JSON")
)

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
