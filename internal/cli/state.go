package cli

import (
	"github.com/spf13/cobra"
)

// AddStateCommands adds the read-only `state` and `conflicts` commands.
func AddStateCommands(root *cobra.Command, a *app) {
	root.AddCommand(&cobra.Command{
		Use:   "state",
		Short: "Show which operation is suspended in the repository",
		Long: `Show the merge, rebase, cherry-pick, revert or bisect that is waiting in the
repository, read from git's control directory.

Examples:
  keel state
  keel state --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report(a, a.svc.GetOperationState(cmd.Context(), a.repoPath), renderState)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "conflicts",
		Short: "List conflicted files",
		Long: `List the files of the current conflict set with their conflict type.
Files already resolved during this operation are marked R, open ones U.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report(a, a.svc.GetConflictedFiles(cmd.Context(), a.repoPath), renderConflicts)
		},
	})
}
