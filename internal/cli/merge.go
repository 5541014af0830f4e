package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrz1836/keel/internal/engine"
	"github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/service"
)

// sequenceFlags are the --continue/--skip/--abort controls shared by the
// multi-step commands.
type sequenceFlags struct {
	Continue bool
	Skip     bool
	Abort    bool
}

func (f *sequenceFlags) add(cmd *cobra.Command, withSkip bool) {
	cmd.Flags().BoolVar(&f.Continue, "continue", false, "continue after resolving conflicts")
	cmd.Flags().BoolVar(&f.Abort, "abort", false, "abort and restore the pre-operation state")
	names := []string{"continue", "abort"}
	if withSkip {
		cmd.Flags().BoolVar(&f.Skip, "skip", false, "skip the current commit")
		names = append(names, "skip")
	}
	cmd.MarkFlagsMutuallyExclusive(names...)
}

func (f *sequenceFlags) active() bool {
	return f.Continue || f.Skip || f.Abort
}

// args validates positional arguments: none with a control flag, at least
// min otherwise.
func (f *sequenceFlags) args(minArgs, maxArgs int) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if f.active() {
			if len(args) > 0 {
				return errors.NewExitCode2Error(fmt.Errorf("%w: no arguments allowed with --continue, --skip or --abort", errors.ErrInvalidArgument))
			}
			return nil
		}
		if len(args) < minArgs || (maxArgs >= 0 && len(args) > maxArgs) {
			return errors.NewExitCode2Error(fmt.Errorf("%w: unexpected number of arguments", errors.ErrInvalidArgument))
		}
		return nil
	}
}

// MergeFlags holds flags specific to the merge command.
type MergeFlags struct {
	sequenceFlags

	FFOnly   bool
	NoFF     bool
	Squash   bool
	NoCommit bool
	Message  string
}

// AddMergeCommand adds the merge command.
func AddMergeCommand(root *cobra.Command, a *app) {
	flags := &MergeFlags{}
	cmd := &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge a branch into the current branch",
		Long: `Merge a branch into HEAD. Conflicts are reported as data and leave the
merge suspended until --continue or --abort.

Examples:
  keel merge feature
  keel merge --no-ff feature -m "Merge feature"
  keel merge --continue
  keel merge --abort`,
		Args: flags.args(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch {
			case flags.Continue:
				return report(a, a.svc.MergeContinue(ctx, a.repoPath), renderMerge)
			case flags.Abort:
				return abortResponse(a, a.svc.MergeAbort(ctx, a.repoPath), "merge")
			}
			opts := engine.MergeOptions{
				FFOnly:   flags.FFOnly,
				NoFF:     flags.NoFF,
				Squash:   flags.Squash,
				NoCommit: flags.NoCommit,
				Message:  flags.Message,
			}
			return report(a, a.svc.Merge(ctx, a.repoPath, args[0], opts), renderMerge)
		},
	}

	flags.add(cmd, false)
	cmd.Flags().BoolVar(&flags.FFOnly, "ff-only", false, "refuse to merge unless fast-forward is possible")
	cmd.Flags().BoolVar(&flags.NoFF, "no-ff", false, "always create a merge commit")
	cmd.Flags().BoolVar(&flags.Squash, "squash", false, "stage the merged changes without committing")
	cmd.Flags().BoolVar(&flags.NoCommit, "no-commit", false, "stop before creating the merge commit")
	cmd.Flags().StringVarP(&flags.Message, "message", "m", "", "merge commit message")

	root.AddCommand(cmd)
}

// abortResponse is shared by the abort paths that return nothing.
func abortResponse(a *app, resp service.Response[service.Empty], what string) error {
	return report(a, resp, renderDone(what+" aborted"))
}
