package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/keel/internal/engine"
	"github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/service"
)

// ResolveFlags holds flags specific to the resolve command.
type ResolveFlags struct {
	Ours    bool
	Theirs  bool
	Content string
}

func (f *ResolveFlags) resolution() (service.Resolution, error) {
	switch {
	case f.Ours:
		return service.Resolution{Side: engine.Ours}, nil
	case f.Theirs:
		return service.Resolution{Side: engine.Theirs}, nil
	case f.Content != "":
		data, err := os.ReadFile(f.Content) //#nosec G304 -- path is supplied by the user on purpose
		if err != nil {
			return service.Resolution{}, errors.Wrapf(err, "failed to read %s", f.Content)
		}
		return service.Resolution{Content: data}, nil
	}
	return service.Resolution{}, errors.NewExitCode2Error(
		fmt.Errorf("%w: one of --ours, --theirs or --content is required", errors.ErrInvalidArgument))
}

// AddResolveCommands adds the resolve and mark commands.
func AddResolveCommands(root *cobra.Command, a *app) {
	flags := &ResolveFlags{}
	resolve := &cobra.Command{
		Use:   "resolve <file>",
		Short: "Resolve a conflicted file",
		Long: `Resolve a conflicted file with one side or with custom content, and stage it.
During a rebase "ours" is the branch being rebased onto.

Examples:
  keel resolve --theirs conflict.txt
  keel resolve --content merged.txt conflict.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := flags.resolution()
			if err != nil {
				return err
			}
			resp := a.svc.ResolveConflict(cmd.Context(), a.repoPath, args[0], res)
			return report(a, resp, renderDone("resolved "+args[0]))
		},
	}
	resolve.Flags().BoolVar(&flags.Ours, "ours", false, "keep our version")
	resolve.Flags().BoolVar(&flags.Theirs, "theirs", false, "keep their version")
	resolve.Flags().StringVar(&flags.Content, "content", "", "file whose content becomes the resolution")
	resolve.MarkFlagsMutuallyExclusive("ours", "theirs", "content")
	root.AddCommand(resolve)

	var unresolved bool
	mark := &cobra.Command{
		Use:   "mark <file>",
		Short: "Mark a conflicted file resolved as it is on disk",
		Long: `Stage a conflicted file as resolved with its current working tree content.
With --unresolved the conflict is restored, markers included.

Examples:
  keel mark conflict.txt
  keel mark --unresolved conflict.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if unresolved {
				resp := a.svc.MarkConflictUnresolved(cmd.Context(), a.repoPath, args[0])
				return report(a, resp, renderDone("marked "+args[0]+" unresolved"))
			}
			resp := a.svc.MarkConflictResolved(cmd.Context(), a.repoPath, args[0])
			return report(a, resp, renderDone("marked "+args[0]+" resolved"))
		},
	}
	mark.Flags().BoolVar(&unresolved, "unresolved", false, "restore the conflict")
	root.AddCommand(mark)
}
