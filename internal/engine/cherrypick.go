package engine

import (
	"context"
	"fmt"

	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/git"
	"github.com/mrz1836/keel/internal/hook"
	"github.com/mrz1836/keel/internal/opstate"
	"github.com/mrz1836/keel/internal/repo"
)

// sequencerStep is the translated result of a cherry-pick or revert step.
type sequencerStep struct {
	conflicts []ConflictedFile
	applied   int
	message   string
	success   bool
}

// CherryPick applies commits, in order, onto the current branch.
func (e *Engine) CherryPick(ctx context.Context, c *repo.Coordinator, commits ...string) (*CherryPickResult, error) {
	if len(commits) == 0 {
		return nil, fmt.Errorf("cherry-pick commits: %w", keelerrors.ErrEmptyValue)
	}

	return mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (*CherryPickResult, error) {
		if err := requireIdle(ctx, r); err != nil {
			return nil, err
		}
		shas, err := resolveCommits(ctx, r, commits)
		if err != nil {
			return nil, err
		}

		r.Logger().Info().Strs("commits", shas).Msg("cherry-picking")
		res, err := run(ctx, r, nil, append([]string{"cherry-pick"}, shas...)...)
		if err != nil {
			return nil, err
		}
		step, err := e.sequencerOutcome(ctx, r, "cherry-pick", opstate.CherryPicking, res, len(shas))
		if err != nil {
			return nil, err
		}
		if step.success {
			r.Gate().Notify(ctx, hook.PostCommit)
		}
		return cherryPickResult(shas, step), nil
	})
}

// CherryPickContinue commits the resolved pick and applies the rest.
func (e *Engine) CherryPickContinue(ctx context.Context, c *repo.Coordinator) (*CherryPickResult, error) {
	return mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (*CherryPickResult, error) {
		st, err := requireKind(r, opstate.CherryPicking)
		if err != nil {
			return nil, err
		}
		if err := requireResolved(ctx, r); err != nil {
			return nil, err
		}
		if err := r.Gate().Check(ctx, hook.PreCommit, nil, ""); err != nil {
			return nil, err
		}

		res, err := run(ctx, r, nil, "cherry-pick", "--continue")
		if err != nil {
			return nil, err
		}
		step, err := e.sequencerOutcome(ctx, r, "cherry-pick continue", opstate.CherryPicking, res, pending(st))
		if err != nil {
			return nil, err
		}
		if step.success {
			r.Gate().Notify(ctx, hook.PostCommit)
		}
		return cherryPickResult(nil, step), nil
	})
}

// CherryPickSkip drops the current pick and applies the rest.
func (e *Engine) CherryPickSkip(ctx context.Context, c *repo.Coordinator) (*CherryPickResult, error) {
	return mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (*CherryPickResult, error) {
		st, err := requireKind(r, opstate.CherryPicking)
		if err != nil {
			return nil, err
		}

		res, err := run(ctx, r, nil, "cherry-pick", "--skip")
		if err != nil {
			return nil, err
		}
		// The skipped commit is not applied.
		step, err := e.sequencerOutcome(ctx, r, "cherry-pick skip", opstate.CherryPicking, res, pending(st)-1)
		if err != nil {
			return nil, err
		}
		if step.success {
			r.Gate().Notify(ctx, hook.PostCommit)
		}
		return cherryPickResult(nil, step), nil
	})
}

// CherryPickAbort returns to the state before the cherry-pick. Without a
// cherry-pick in progress it does nothing.
func (e *Engine) CherryPickAbort(ctx context.Context, c *repo.Coordinator) error {
	_, err := mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (struct{}, error) {
		return struct{}{}, e.abort(ctx, r, opstate.CherryPicking, "cherry-pick")
	})
	return err
}

// Revert creates a commit undoing commit. With noCommit the inverse changes
// are only staged.
func (e *Engine) Revert(ctx context.Context, c *repo.Coordinator, commit string, noCommit bool) (*RevertResult, error) {
	if commit == "" {
		return nil, fmt.Errorf("revert commit: %w", keelerrors.ErrEmptyValue)
	}

	return mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (*RevertResult, error) {
		if err := requireIdle(ctx, r); err != nil {
			return nil, err
		}
		shas, err := resolveCommits(ctx, r, []string{commit})
		if err != nil {
			return nil, err
		}

		args := []string{"revert", "--no-edit"}
		if noCommit {
			args = append(args, "--no-commit")
		}
		args = append(args, shas...)

		r.Logger().Info().Str("commit", shas[0]).Bool("no_commit", noCommit).Msg("reverting")
		res, err := run(ctx, r, nil, args...)
		if err != nil {
			return nil, err
		}
		step, err := e.sequencerOutcome(ctx, r, "revert", opstate.Reverting, res, len(shas))
		if err != nil {
			return nil, err
		}
		if step.success && !noCommit {
			r.Gate().Notify(ctx, hook.PostCommit)
		}
		return revertResult(shas, step), nil
	})
}

// RevertContinue commits the resolved revert.
func (e *Engine) RevertContinue(ctx context.Context, c *repo.Coordinator) (*RevertResult, error) {
	return mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (*RevertResult, error) {
		st, err := requireKind(r, opstate.Reverting)
		if err != nil {
			return nil, err
		}
		if err := requireResolved(ctx, r); err != nil {
			return nil, err
		}
		if err := r.Gate().Check(ctx, hook.PreCommit, nil, ""); err != nil {
			return nil, err
		}

		res, err := run(ctx, r, nil, "revert", "--continue")
		if err != nil {
			return nil, err
		}
		step, err := e.sequencerOutcome(ctx, r, "revert continue", opstate.Reverting, res, pending(st))
		if err != nil {
			return nil, err
		}
		if step.success {
			r.Gate().Notify(ctx, hook.PostCommit)
		}
		return revertResult(nil, step), nil
	})
}

// RevertAbort returns to the state before the revert. Without a revert in
// progress it does nothing.
func (e *Engine) RevertAbort(ctx context.Context, c *repo.Coordinator) error {
	_, err := mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (struct{}, error) {
		return struct{}{}, e.abort(ctx, r, opstate.Reverting, "revert")
	})
	return err
}

// sequencerOutcome translates a cherry-pick or revert step. units is the
// number of commits this step was going to apply; commits that turn out
// empty are skipped and not counted. Callers run post-commit on success.
func (e *Engine) sequencerOutcome(ctx context.Context, r *repo.Repository, op string, kind opstate.Kind, res *git.Result, units int) (*sequencerStep, error) {
	cmd := "cherry-pick"
	if kind == opstate.Reverting {
		cmd = "revert"
	}

	skipped := 0
	for {
		o, entries, err := observe(ctx, r, res, kind)
		if err != nil {
			return nil, err
		}

		switch classifySequencer(o) {
		case outcomeSucceeded:
			e.Forget(r.WorkDir())
			r.Logger().Info().Str("op", op).Msg("sequencer finished")
			return &sequencerStep{success: true, applied: max(units-skipped, 0), message: firstLine(o.Output)}, nil

		case outcomeConflicted:
			files, err := e.conflictsAfter(ctx, r, entries, o.Output)
			if err != nil {
				return nil, err
			}
			left := 1
			if st := r.OperationState(); st.CherryPick != nil {
				left += st.CherryPick.Remaining
			} else if st.Revert != nil {
				left += st.Revert.Remaining
			}
			return &sequencerStep{
				conflicts: files,
				applied:   max(units-skipped-left, 0),
				message:   firstLine(o.Output),
			}, nil

		case outcomeEmpty:
			r.Logger().Info().Str("op", op).Msg("skipping empty commit")
			skipped++
			if res, err = run(ctx, r, nil, cmd, "--skip"); err != nil {
				return nil, err
			}
			continue
		}
		return nil, opError(op, res)
	}
}

// pending is how many commits a suspended sequencer still has to apply,
// including the stopped one.
func pending(st opstate.State) int {
	switch {
	case st.CherryPick != nil:
		return st.CherryPick.Remaining + 1
	case st.Revert != nil:
		return st.Revert.Remaining + 1
	}
	return 1
}

func resolveCommits(ctx context.Context, r *repo.Repository, commits []string) ([]string, error) {
	shas := make([]string, 0, len(commits))
	for _, commit := range commits {
		if commit == "" {
			return nil, fmt.Errorf("commit: %w", keelerrors.ErrEmptyValue)
		}
		sha, err := r.ResolveRef(ctx, commit)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot resolve %q", keelerrors.ErrInvalidArgument, commit)
		}
		shas = append(shas, sha)
	}
	return shas, nil
}

func cherryPickResult(shas []string, step *sequencerStep) *CherryPickResult {
	return &CherryPickResult{
		Success:   step.success,
		Commits:   shas,
		Applied:   step.applied,
		Conflicts: step.conflicts,
		Message:   step.message,
	}
}

func revertResult(shas []string, step *sequencerStep) *RevertResult {
	return &RevertResult{
		Success:   step.success,
		Commits:   shas,
		Conflicts: step.conflicts,
		Message:   step.message,
	}
}
