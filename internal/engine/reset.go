package engine

import (
	"context"
	"fmt"

	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/repo"
)

// Reset moves the current branch to target. An empty target means HEAD.
// A hard reset also discards a suspended merge, cherry-pick or revert.
func (e *Engine) Reset(ctx context.Context, c *repo.Coordinator, target string, mode ResetMode) (*ResetResult, error) {
	if target == "" {
		target = "HEAD"
	}
	if mode == "" {
		mode = ResetMixed
	}
	if _, err := ParseResetMode(string(mode)); err != nil {
		return nil, err
	}

	return mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (*ResetResult, error) {
		sha, err := r.ResolveRef(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot resolve %q", keelerrors.ErrInvalidArgument, target)
		}

		r.Logger().Info().Str("target", target).Str("mode", string(mode)).Msg("resetting")
		res, err := run(ctx, r, nil, "reset", "--"+string(mode), sha)
		if err != nil {
			return nil, err
		}
		// A mixed reset with unstaged changes left exits 1 after succeeding.
		if !res.Success() && !(mode == ResetMixed && res.ExitCode == 1) {
			return nil, opError("reset", res)
		}

		if !r.OperationState().InProgress() {
			e.Forget(r.WorkDir())
		}

		head, err := r.HeadHash()
		if err != nil {
			return nil, err
		}
		return &ResetResult{Mode: mode, Target: sha, Head: head}, nil
	})
}
