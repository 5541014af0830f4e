package cli

import (
	"github.com/spf13/cobra"
)

// AddResetCommand adds the reset command.
func AddResetCommand(root *cobra.Command, a *app) {
	var mode string
	cmd := &cobra.Command{
		Use:   "reset [target]",
		Short: "Move HEAD to a commit",
		Long: `Move the current branch to target (default HEAD).

Modes:
  soft   keep the index and working tree
  mixed  reset the index, keep the working tree (default)
  hard   reset the index and the working tree

A hard reset also ends any suspended merge, cherry-pick or revert.

Examples:
  keel reset HEAD~1
  keel reset --mode hard origin/main`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			return report(a, a.svc.Reset(cmd.Context(), a.repoPath, target, mode), renderReset)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "mixed", "reset mode (soft|mixed|hard)")
	root.AddCommand(cmd)
}
