package engine

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/git"
	"github.com/mrz1836/keel/internal/hook"
	"github.com/mrz1836/keel/internal/opstate"
	"github.com/mrz1836/keel/internal/repo"
)

// TodoLine is one instruction of an interactive rebase. Commit is required
// for every action except exec, which runs Arg, and break.
type TodoLine struct {
	Action opstate.SubAction `json:"action"`
	Commit string            `json:"commit,omitempty"`
	Arg    string            `json:"arg,omitempty"`
}

func (l TodoLine) render() (string, error) {
	switch l.Action {
	case opstate.SubActionBreak:
		return "break", nil
	case opstate.SubActionExec:
		if strings.TrimSpace(l.Arg) == "" {
			return "", fmt.Errorf("exec command: %w", keelerrors.ErrEmptyValue)
		}
		return "exec " + l.Arg, nil
	case opstate.SubActionPick, opstate.SubActionEdit, opstate.SubActionReword,
		opstate.SubActionSquash, opstate.SubActionFixup, opstate.SubActionDrop:
		if l.Commit == "" {
			return "", fmt.Errorf("%s commit: %w", l.Action, keelerrors.ErrEmptyValue)
		}
		return string(l.Action) + " " + l.Commit, nil
	}
	return "", fmt.Errorf("%w: todo action %q", keelerrors.ErrInvalidArgument, l.Action)
}

// Rebase replays the current branch onto onto.
func (e *Engine) Rebase(ctx context.Context, c *repo.Coordinator, onto string) (*RebaseResult, error) {
	if onto == "" {
		return nil, fmt.Errorf("rebase onto: %w", keelerrors.ErrEmptyValue)
	}

	return mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (*RebaseResult, error) {
		total, err := e.startRebase(ctx, r, onto)
		if err != nil {
			return nil, err
		}

		r.Logger().Info().Str("onto", onto).Int("commits", total).Msg("rebasing")
		res, err := run(ctx, r, nil, "rebase", onto)
		if err != nil {
			return nil, err
		}
		return e.rebaseOutcome(ctx, r, "rebase", res, total)
	})
}

// InteractiveRebase rebases onto onto following todo instead of the default
// pick list. Edit and break instructions pause the rebase and are reported
// as Stopped.
func (e *Engine) InteractiveRebase(ctx context.Context, c *repo.Coordinator, onto string, todo []TodoLine) (*RebaseResult, error) {
	if onto == "" {
		return nil, fmt.Errorf("rebase onto: %w", keelerrors.ErrEmptyValue)
	}
	if len(todo) == 0 {
		return nil, fmt.Errorf("rebase todo: %w", keelerrors.ErrEmptyValue)
	}
	lines := make([]string, 0, len(todo))
	for _, l := range todo {
		line, err := l.render()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (*RebaseResult, error) {
		if _, err := e.startRebase(ctx, r, onto); err != nil {
			return nil, err
		}

		f, err := os.CreateTemp("", "keel-todo-")
		if err != nil {
			return nil, fmt.Errorf("write rebase todo: %w", err)
		}
		defer func() { _ = os.Remove(f.Name()) }()
		_, err = f.WriteString(strings.Join(lines, "\n") + "\n")
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("write rebase todo: %w", err)
		}

		// Git appends the todo path to the sequence editor command line.
		env := []string{"GIT_SEQUENCE_EDITOR=cp " + shellQuote(f.Name())}

		r.Logger().Info().Str("onto", onto).Int("instructions", len(lines)).Msg("rebasing interactively")
		res, err := run(ctx, r, env, "rebase", "-i", onto)
		if err != nil {
			return nil, err
		}
		return e.rebaseOutcome(ctx, r, "interactive rebase", res, len(lines))
	})
}

// startRebase checks preconditions and runs pre-rebase. It returns the
// number of commits a plain rebase would replay.
func (e *Engine) startRebase(ctx context.Context, r *repo.Repository, onto string) (int, error) {
	if err := requireIdle(ctx, r); err != nil {
		return 0, err
	}
	if _, err := r.ResolveRef(ctx, onto); err != nil {
		return 0, fmt.Errorf("%w: cannot resolve %q", keelerrors.ErrInvalidArgument, onto)
	}
	if err := r.Gate().Check(ctx, hook.PreRebase, []string{onto}, ""); err != nil {
		return 0, err
	}

	hints := r.Hints()
	hints.OntoName = onto
	r.SetHints(hints)

	// Patches already upstream are dropped by rebase, so count like it does.
	out, err := r.Executor().Query(ctx, "rev-list", "--count", "--no-merges", "--cherry-pick", "--right-only", onto+"...HEAD")
	if err != nil {
		r.Logger().Debug().Err(err).Msg("could not count rebase commits")
		return 0, nil
	}
	total, _ := strconv.Atoi(out)
	return total, nil
}

// RebaseContinue resumes a rebase after conflicts were resolved or after an
// edit or break stop.
func (e *Engine) RebaseContinue(ctx context.Context, c *repo.Coordinator) (*RebaseResult, error) {
	return mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (*RebaseResult, error) {
		st, err := requireKind(r, opstate.Rebasing)
		if err != nil {
			return nil, err
		}
		if err := requireResolved(ctx, r); err != nil {
			return nil, err
		}

		res, err := run(ctx, r, nil, "rebase", "--continue")
		if err != nil {
			return nil, err
		}
		return e.rebaseOutcome(ctx, r, "rebase continue", res, st.Rebase.TotalSteps)
	})
}

// RebaseSkip drops the current commit and resumes the rebase.
func (e *Engine) RebaseSkip(ctx context.Context, c *repo.Coordinator) (*RebaseResult, error) {
	return mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (*RebaseResult, error) {
		st, err := requireKind(r, opstate.Rebasing)
		if err != nil {
			return nil, err
		}

		res, err := run(ctx, r, nil, "rebase", "--skip")
		if err != nil {
			return nil, err
		}
		return e.rebaseOutcome(ctx, r, "rebase skip", res, st.Rebase.TotalSteps)
	})
}

// RebaseAbort restores the branch as it was before the rebase. Without a
// rebase in progress it does nothing.
func (e *Engine) RebaseAbort(ctx context.Context, c *repo.Coordinator) error {
	_, err := mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (struct{}, error) {
		if err := e.abort(ctx, r, opstate.Rebasing, "rebase"); err != nil {
			return struct{}{}, err
		}
		clearOnto(r)
		return struct{}{}, nil
	})
	return err
}

// rebaseOutcome translates a rebase step, skipping commits that became empty
// until the rebase finishes, stops or fails.
func (e *Engine) rebaseOutcome(ctx context.Context, r *repo.Repository, op string, res *git.Result, total int) (*RebaseResult, error) {
	for {
		o, entries, err := observe(ctx, r, res, opstate.Rebasing)
		if err != nil {
			return nil, err
		}

		switch classifyRebase(o) {
		case outcomeSucceeded:
			e.Forget(r.WorkDir())
			clearOnto(r)
			upToDate := containsAny(o.Output, upToDateMarkers)
			if upToDate {
				total = 0
			} else {
				r.Gate().Notify(ctx, hook.PostRewrite, "rebase")
			}
			r.Logger().Info().Int("commits", total).Msg("rebase finished")
			return &RebaseResult{
				Success:     true,
				UpToDate:    upToDate,
				CurrentStep: total,
				TotalSteps:  total,
				Message:     firstLine(o.Output),
			}, nil

		case outcomeStopped:
			result := &RebaseResult{Stopped: true, TotalSteps: total, Message: firstLine(o.Output)}
			fillSteps(result, r.OperationState())
			return result, nil

		case outcomeConflicted:
			files, err := e.conflictsAfter(ctx, r, entries, o.Output)
			if err != nil {
				return nil, err
			}
			result := &RebaseResult{TotalSteps: total, Conflicts: files, Message: firstLine(o.Output)}
			fillSteps(result, r.OperationState())
			return result, nil

		case outcomeEmpty:
			r.Logger().Info().Msg("skipping commit that became empty")
			if res, err = run(ctx, r, nil, "rebase", "--skip"); err != nil {
				return nil, err
			}
			op = "rebase skip"
			continue
		}

		if !o.InProgress {
			clearOnto(r)
		}
		return nil, opError(op, res)
	}
}

func fillSteps(result *RebaseResult, st opstate.State) {
	if st.Rebase == nil {
		return
	}
	result.CurrentStep = st.Rebase.CurrentStep
	if st.Rebase.TotalSteps > 0 {
		result.TotalSteps = st.Rebase.TotalSteps
	}
}

func clearOnto(r *repo.Repository) {
	hints := r.Hints()
	hints.OntoName = ""
	r.SetHints(hints)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
