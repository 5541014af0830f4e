package git

import (
	keelerrors "github.com/mrz1836/keel/internal/errors"
)

// ErrGitOperation is re-exported from internal/errors for convenience.
var ErrGitOperation = keelerrors.ErrGitOperation

// ErrNotGitRepo is re-exported from internal/errors for convenience.
var ErrNotGitRepo = keelerrors.ErrNotGitRepo
