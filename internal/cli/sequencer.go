package cli

import (
	"github.com/spf13/cobra"
)

// AddCherryPickCommand adds the cherry-pick command.
func AddCherryPickCommand(root *cobra.Command, a *app) {
	flags := &sequenceFlags{}
	cmd := &cobra.Command{
		Use:   "cherry-pick <commit>...",
		Short: "Apply commits on top of the current branch",
		Long: `Apply one or more commits in order. Commits that would be empty are
skipped. A conflict suspends the sequence until --continue, --skip or --abort.

Examples:
  keel cherry-pick a1b2c3d
  keel cherry-pick a1b2c3d e4f5a6b
  keel cherry-pick --skip`,
		Args: flags.args(1, -1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch {
			case flags.Continue:
				return report(a, a.svc.CherryPickContinue(ctx, a.repoPath), renderCherryPick)
			case flags.Skip:
				return report(a, a.svc.CherryPickSkip(ctx, a.repoPath), renderCherryPick)
			case flags.Abort:
				return abortResponse(a, a.svc.CherryPickAbort(ctx, a.repoPath), "cherry-pick")
			}
			return report(a, a.svc.CherryPick(ctx, a.repoPath, args), renderCherryPick)
		},
	}
	flags.add(cmd, true)
	root.AddCommand(cmd)
}

// RevertFlags holds flags specific to the revert command.
type RevertFlags struct {
	sequenceFlags

	NoCommit bool
}

// AddRevertCommand adds the revert command.
func AddRevertCommand(root *cobra.Command, a *app) {
	flags := &RevertFlags{}
	cmd := &cobra.Command{
		Use:   "revert <commit>",
		Short: "Create a commit that undoes another",
		Long: `Revert a commit. With --no-commit the inverse change is only staged.

Examples:
  keel revert a1b2c3d
  keel revert --no-commit a1b2c3d
  keel revert --continue`,
		Args: flags.args(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch {
			case flags.Continue:
				return report(a, a.svc.RevertContinue(ctx, a.repoPath), renderRevert)
			case flags.Abort:
				return abortResponse(a, a.svc.RevertAbort(ctx, a.repoPath), "revert")
			}
			return report(a, a.svc.Revert(ctx, a.repoPath, args[0], flags.NoCommit), renderRevert)
		},
	}
	flags.add(cmd, false)
	cmd.Flags().BoolVarP(&flags.NoCommit, "no-commit", "n", false, "stage the revert without committing")
	root.AddCommand(cmd)
}
