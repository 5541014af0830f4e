package git

import (
	"fmt"
	"strings"

	keelerrors "github.com/mrz1836/keel/internal/errors"
)

// ErrorType is the classification of a failed remote operation.
type ErrorType int

// Remote failure classes, in no particular order. See remoteRules for the
// order in which they are tested.
const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuth
	ErrorTypeNetwork
	ErrorTypeRateLimit
	ErrorTypeNotFound
	ErrorTypeNonFastForward
)

//nolint:gochecknoglobals // lookup table
var errorTypeNames = [...]string{
	ErrorTypeUnknown:        "unknown",
	ErrorTypeAuth:           "authentication",
	ErrorTypeNetwork:        "network",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeNonFastForward: "non_fast_forward",
}

func (e ErrorType) String() string {
	if e < 0 || int(e) >= len(errorTypeNames) {
		return errorTypeNames[ErrorTypeUnknown]
	}
	return errorTypeNames[e]
}

// remoteRule ties a class of git diagnostics to the sentinel callers match on.
type remoteRule struct {
	typ      ErrorType
	sentinel error
	needles  []string
}

// remoteRules is tested top to bottom; the first rule with a matching needle
// wins. Throttling messages often mention authentication, and ssh auth
// failures are usually followed by "could not read from remote repository",
// so the order matters.
//
//nolint:gochecknoglobals // immutable rule table
var remoteRules = []remoteRule{
	{ErrorTypeRateLimit, keelerrors.ErrPushNetworkFailed, []string{
		"rate limit exceeded",
		"too many requests",
	}},
	{ErrorTypeAuth, keelerrors.ErrPushAuthFailed, []string{
		"authentication failed",
		"authentication required",
		"could not read username",
		"could not read password",
		"invalid username or password",
		"permission denied (publickey",
		"host key verification failed",
		"terminal prompts disabled",
		"access denied",
	}},
	{ErrorTypeNetwork, keelerrors.ErrPushNetworkFailed, []string{
		"could not resolve host",
		"connection refused",
		"connection timed out",
		"operation timed out",
		"network is unreachable",
		"no route to host",
		"failed to connect",
		"unable to access",
		"the remote end hung up unexpectedly",
		"early eof",
	}},
	{ErrorTypeNonFastForward, keelerrors.ErrPushRejected, []string{
		"[rejected]",
		"non-fast-forward",
		"fetch first",
		"updates were rejected",
		"tip of your current branch is behind",
	}},
	{ErrorTypeNotFound, keelerrors.ErrRemoteNotFound, []string{
		"repository not found",
		"does not appear to be a git repository",
		"couldn't find remote ref",
		"no such remote",
	}},
}

//nolint:gochecknoglobals // immutable needle list
var lockNeedles = []string{
	"index.lock",
	".lock': file exists",
	"unable to create lock file",
	"another git process seems to be running",
	"could not lock",
}

func containsAny(lower string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func matchRule(output string) (remoteRule, bool) {
	lower := strings.ToLower(output)
	for _, r := range remoteRules {
		if containsAny(lower, r.needles) {
			return r, true
		}
	}
	return remoteRule{}, false
}

// ClassifyError maps git's diagnostic output to an ErrorType.
func ClassifyError(output string) ErrorType {
	if r, ok := matchRule(output); ok {
		return r.typ
	}
	return ErrorTypeUnknown
}

// RemoteError converts a failed fetch, push or pull into an error whose chain
// carries the matching sentinel, with git's output kept verbatim.
func RemoteError(op string, res *Result) error {
	output := strings.TrimSpace(res.Combined())
	sentinel := keelerrors.ErrGitOperation
	if r, ok := matchRule(output); ok {
		sentinel = r.sentinel
	}
	return fmt.Errorf("git %s exited %d: %s: %w", op, res.ExitCode, output, sentinel)
}

// MatchesLockFileError reports whether output shows git failing to take one
// of its lock files.
func MatchesLockFileError(output string) bool {
	return containsAny(strings.ToLower(output), lockNeedles)
}
