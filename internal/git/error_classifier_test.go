package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keelerrors "github.com/mrz1836/keel/internal/errors"
)

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{ErrorTypeUnknown, "unknown"},
		{ErrorTypeAuth, "authentication"},
		{ErrorTypeNetwork, "network"},
		{ErrorTypeRateLimit, "rate_limit"},
		{ErrorTypeNotFound, "not_found"},
		{ErrorTypeNonFastForward, "non_fast_forward"},
		{ErrorType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.errType.String())
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   ErrorType
	}{
		{"https auth", "fatal: Authentication failed for 'https://github.com/o/r.git/'", ErrorTypeAuth},
		{"ssh publickey", "git@github.com: Permission denied (publickey).", ErrorTypeAuth},
		{"prompt disabled", "fatal: could not read Username for 'https://github.com': terminal prompts disabled", ErrorTypeAuth},
		{"dns", "fatal: unable to access 'https://nope.invalid/': Could not resolve host: nope.invalid", ErrorTypeNetwork},
		{"hung up", "fatal: the remote end hung up unexpectedly", ErrorTypeNetwork},
		{"rate limit", "remote: API rate limit exceeded", ErrorTypeRateLimit},
		{"non fast forward", " ! [rejected]        main -> main (fetch first)\nerror: failed to push some refs", ErrorTypeNonFastForward},
		{"missing repo", "fatal: '/tmp/gone' does not appear to be a git repository", ErrorTypeNotFound},
		{"missing ref", "fatal: couldn't find remote ref refs/heads/nope", ErrorTypeNotFound},
		{"unknown", "fatal: something else entirely", ErrorTypeUnknown},
		{"empty", "", ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.output))
		})
	}
}

func TestClassifyError_Priority(t *testing.T) {
	// Rate limiting beats authentication; authentication beats network.
	assert.Equal(t, ErrorTypeRateLimit, ClassifyError("authentication failed: rate limit exceeded"))
	assert.Equal(t, ErrorTypeAuth, ClassifyError("unable to access: authentication failed"))
	// "does not appear to be a git repository" often trails auth failures over ssh.
	assert.Equal(t, ErrorTypeAuth, ClassifyError("Permission denied (publickey).\nfatal: Could not read from remote repository."))
}

func TestRemoteError(t *testing.T) {
	tests := []struct {
		name     string
		stderr   string
		sentinel error
	}{
		{"auth", "fatal: Authentication failed", keelerrors.ErrPushAuthFailed},
		{"network", "fatal: Could not resolve host: x", keelerrors.ErrPushNetworkFailed},
		{"rate limit", "too many requests", keelerrors.ErrPushNetworkFailed},
		{"rejected", "! [rejected] main -> main (non-fast-forward)", keelerrors.ErrPushRejected},
		{"not found", "fatal: repository not found", keelerrors.ErrRemoteNotFound},
		{"other", "fatal: bad object", keelerrors.ErrGitOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RemoteError("push", &Result{Args: []string{"push"}, ExitCode: 128, Stderr: tt.stderr})
			require.ErrorIs(t, err, tt.sentinel)
			assert.Contains(t, err.Error(), tt.stderr)
			assert.Contains(t, err.Error(), "git push exited 128")
		})
	}
}

func TestMatchesLockFileError(t *testing.T) {
	assert.True(t, MatchesLockFileError("fatal: Unable to create '/r/.git/index.lock': File exists."))
	assert.True(t, MatchesLockFileError("error: could not lock config file .git/config: File exists"))
	assert.False(t, MatchesLockFileError("error: pathspec 'x' did not match any file(s) known to git"))
	assert.False(t, MatchesLockFileError(""))
}

func TestRemoteRules_SentinelsAreSet(t *testing.T) {
	for _, r := range remoteRules {
		assert.Error(t, r.sentinel, r.typ.String())
		assert.NotEmpty(t, r.needles, r.typ.String())
	}
}
