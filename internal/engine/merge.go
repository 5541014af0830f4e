package engine

import (
	"context"
	"fmt"
	"path/filepath"

	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/git"
	"github.com/mrz1836/keel/internal/hook"
	"github.com/mrz1836/keel/internal/opstate"
	"github.com/mrz1836/keel/internal/repo"
)

// Merge merges branch into the current branch. Conflicts are reported in the
// result, not as an error.
func (e *Engine) Merge(ctx context.Context, c *repo.Coordinator, branch string, opts MergeOptions) (*MergeResult, error) {
	if branch == "" {
		return nil, fmt.Errorf("merge branch: %w", keelerrors.ErrEmptyValue)
	}
	if opts.FFOnly && (opts.NoFF || opts.Squash) {
		return nil, fmt.Errorf("%w: --ff-only cannot be combined with --no-ff or --squash", keelerrors.ErrInvalidArgument)
	}

	return mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (*MergeResult, error) {
		return e.merge(ctx, r, "merge", branch, opts)
	})
}

// MergeHeld merges target, any revision git merge accepts, into the current
// branch of a repository whose write guard the caller already holds. The
// merge runs to completion even if ctx is canceled, so the index is never
// left half written. op names the operation in errors.
func (e *Engine) MergeHeld(ctx context.Context, r *repo.Repository, op, target string, opts MergeOptions) (*MergeResult, error) {
	if target == "" {
		return nil, fmt.Errorf("%s target: %w", op, keelerrors.ErrEmptyValue)
	}
	return e.merge(context.WithoutCancel(ctx), r, op, target, opts)
}

func (e *Engine) merge(ctx context.Context, r *repo.Repository, op, target string, opts MergeOptions) (*MergeResult, error) {
	if err := requireIdle(ctx, r); err != nil {
		return nil, err
	}

	args := append([]string{"merge", "--no-edit"}, opts.Flags()...)
	args = append(args, target)

	r.Logger().Info().Str("target", target).Str("op", op).Msg("merging")
	res, err := run(ctx, r, nil, args...)
	if err != nil {
		return nil, err
	}
	return e.mergeOutcome(ctx, r, op, res, opts)
}

// Flags renders the options as git merge flags.
func (opts MergeOptions) Flags() []string {
	var flags []string
	switch {
	case opts.FFOnly:
		flags = append(flags, "--ff-only")
	case opts.NoFF:
		flags = append(flags, "--no-ff")
	}
	if opts.Squash {
		flags = append(flags, "--squash")
	}
	if opts.NoCommit {
		flags = append(flags, "--no-commit")
	}
	if opts.Message != "" {
		flags = append(flags, "-m", opts.Message)
	}
	return flags
}

// mergeOutcome translates the result of git merge. It must be called while
// holding the write guard.
func (e *Engine) mergeOutcome(ctx context.Context, r *repo.Repository, op string, res *git.Result, opts MergeOptions) (*MergeResult, error) {
	o, entries, err := observe(ctx, r, res, opstate.Merging)
	if err != nil {
		return nil, err
	}

	out, kind := classifyMerge(o, opts)
	switch out {
	case outcomeConflicted:
		files, err := e.conflictsAfter(ctx, r, entries, o.Output)
		if err != nil {
			return nil, err
		}
		return &MergeResult{Conflicts: files, Message: firstLine(o.Output)}, nil
	case outcomeFailed:
		return nil, opError(op, res)
	}

	e.Forget(r.WorkDir())
	switch kind {
	case MergeFastForward, MergeCommit:
		r.Gate().Notify(ctx, hook.PostMerge, "0")
	case MergeSquashed:
		r.Gate().Notify(ctx, hook.PostMerge, "1")
	}

	r.Logger().Info().Str("kind", string(kind)).Msg("merge finished")
	return &MergeResult{Success: true, Kind: kind, Message: firstLine(o.Output)}, nil
}

// MergeContinue commits a merge whose conflicts have all been resolved.
func (e *Engine) MergeContinue(ctx context.Context, c *repo.Coordinator) (*MergeResult, error) {
	return mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (*MergeResult, error) {
		if _, err := requireKind(r, opstate.Merging); err != nil {
			return nil, err
		}
		if err := requireResolved(ctx, r); err != nil {
			return nil, err
		}

		msgPath := filepath.Join(r.GitDir(), "MERGE_MSG")
		gate := r.Gate()
		if err := gate.Check(ctx, hook.PreCommit, nil, ""); err != nil {
			return nil, err
		}
		if err := gate.Check(ctx, hook.PrepareCommitMsg, []string{msgPath, "merge"}, ""); err != nil {
			return nil, err
		}
		if err := gate.Check(ctx, hook.CommitMsg, []string{msgPath}, ""); err != nil {
			return nil, err
		}

		res, err := run(ctx, r, nil, "commit", "--no-edit")
		if err != nil {
			return nil, err
		}
		if !res.Success() {
			return nil, opError("merge continue", res)
		}

		e.Forget(r.WorkDir())
		gate.Notify(ctx, hook.PostCommit)
		r.Logger().Info().Msg("merge committed")
		return &MergeResult{Success: true, Kind: MergeCommit, Message: firstLine(res.Combined())}, nil
	})
}

// MergeAbort restores the state before the merge. Without a merge in
// progress it does nothing.
func (e *Engine) MergeAbort(ctx context.Context, c *repo.Coordinator) error {
	_, err := mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (struct{}, error) {
		return struct{}{}, e.abort(ctx, r, opstate.Merging, "merge")
	})
	return err
}

// abort runs "git <cmd> --abort" when kind is in progress.
func (e *Engine) abort(ctx context.Context, r *repo.Repository, kind opstate.Kind, cmd string) error {
	if r.OperationState().Kind != kind {
		r.Logger().Debug().Str("kind", kind.String()).Msg("nothing to abort")
		return nil
	}

	res, err := run(ctx, r, nil, cmd, "--abort")
	if err != nil {
		return err
	}
	if !res.Success() {
		return opError(cmd+" abort", res)
	}

	e.Forget(r.WorkDir())
	r.Logger().Info().Str("kind", kind.String()).Msg("operation aborted")
	return nil
}
