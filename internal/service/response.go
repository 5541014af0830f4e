package service

import (
	"context"
	"errors"

	"github.com/mrz1836/keel/internal/engine"
	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/hook"
)

// ErrorKind groups failures by what the caller can do about them.
type ErrorKind string

// Error kinds.
const (
	// KindVeto means a hook refused the operation. Nothing was changed.
	KindVeto ErrorKind = "veto"
	// KindHardFailure means git failed for a reason other than conflicts.
	KindHardFailure ErrorKind = "hard_failure"
	// KindCallerError means the request was invalid for the current state.
	KindCallerError ErrorKind = "caller_error"
	// KindCancelled means the operation was canceled.
	KindCancelled ErrorKind = "cancelled"
	// KindNotFound means the repository or remote does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindInternal covers everything else.
	KindInternal ErrorKind = "internal"
)

// CommandError is the outward form of a failed command.
type CommandError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Action  string    `json:"action,omitempty"`
	// Hook names the vetoing hook.
	Hook string `json:"hook,omitempty"`
	// Output is git's or the hook's diagnostic text, verbatim.
	Output string `json:"output,omitempty"`
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return e.Message
	}
	return e.Message + ": " + e.Output
}

// Response is the envelope every command returns. Exactly one of Data and
// Error is meaningful, selected by OK.
type Response[T any] struct {
	OK    bool          `json:"ok"`
	Data  T             `json:"data,omitempty"`
	Error *CommandError `json:"error,omitempty"`
}

// Empty is the payload of commands that return nothing.
type Empty struct{}

func respond[T any](data T, err error) Response[T] {
	if err != nil {
		return Response[T]{Error: ToCommandError(err)}
	}
	return Response[T]{OK: true, Data: data}
}

//nolint:gochecknoglobals // immutable classification table
var callerErrors = []error{
	keelerrors.ErrNotConflicted,
	keelerrors.ErrUnresolvedConflicts,
	keelerrors.ErrNoOperationInProgress,
	keelerrors.ErrOperationInProgress,
	keelerrors.ErrEmptyValue,
	keelerrors.ErrInvalidArgument,
}

// ToCommandError maps an internal error onto its outward kind.
func ToCommandError(err error) *CommandError {
	if err == nil {
		return nil
	}
	message, action := keelerrors.Actionable(err)
	ce := &CommandError{Kind: KindInternal, Message: message, Action: action}

	var (
		rejected *hook.RejectedError
		opErr    *engine.OperationError
	)
	switch {
	case errors.As(err, &rejected):
		ce.Kind = KindVeto
		ce.Hook = string(rejected.Hook)
		ce.Output = rejected.Output
	case errors.Is(err, keelerrors.ErrOperationCanceled), errors.Is(err, context.Canceled):
		ce.Kind = KindCancelled
	case errors.As(err, &opErr):
		ce.Kind = KindHardFailure
		ce.Output = opErr.Output
	case errors.Is(err, keelerrors.ErrNotGitRepo), errors.Is(err, keelerrors.ErrRemoteNotFound):
		ce.Kind = KindNotFound
		ce.Output = err.Error()
	case isCallerError(err):
		ce.Kind = KindCallerError
		ce.Output = err.Error()
	case errors.Is(err, keelerrors.ErrGitOperation),
		errors.Is(err, keelerrors.ErrPushAuthFailed),
		errors.Is(err, keelerrors.ErrPushNetworkFailed),
		errors.Is(err, keelerrors.ErrPushRejected):
		ce.Kind = KindHardFailure
		ce.Output = err.Error()
	default:
		ce.Output = err.Error()
	}
	return ce
}

func isCallerError(err error) bool {
	for _, target := range callerErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
