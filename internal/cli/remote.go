package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mrz1836/keel/internal/engine"
	"github.com/mrz1836/keel/internal/remote"
	"github.com/mrz1836/keel/internal/signal"
)

// withCancel runs fn with a fresh operation id. The first Ctrl+C cancels the
// operation through the registry; a second one cancels the context.
func (a *app) withCancel(ctx context.Context, fn func(ctx context.Context, id string) error) error {
	h := signal.NewHandler(ctx)
	defer h.Stop()

	id := uuid.NewString()
	h.OnInterrupt(func() {
		if a.svc.Cancel(id).Data {
			a.log.Info().Str("operation_id", id).Msg("cancellation requested")
		}
	})
	return fn(h.Context(), id)
}

// AddRemoteCommands adds fetch, push and pull.
func AddRemoteCommands(root *cobra.Command, a *app) {
	root.AddCommand(newFetchCmd(a), newPushCmd(a), newPullCmd(a))
}

func newFetchCmd(a *app) *cobra.Command {
	opts := remote.FetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download objects and refs from a remote",
		Long: `Fetch from a remote with live progress on stderr. Ctrl+C cancels.

Examples:
  keel fetch
  keel fetch --remote upstream --prune`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withCancel(cmd.Context(), func(ctx context.Context, id string) error {
				o := opts
				o.OperationID = id
				return report(a, a.svc.Fetch(ctx, a.repoPath, o), renderFetch)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "remote name (default from git.remote)")
	cmd.Flags().BoolVar(&opts.Prune, "prune", false, "remove remote-tracking refs that no longer exist")
	return cmd
}

func newPushCmd(a *app) *cobra.Command {
	opts := remote.PushOptions{}
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Update a remote branch",
		Long: `Push the current branch (or --branch) to the remote of the same name.
The pre-push hook runs first and may veto the push.

Examples:
  keel push --set-upstream
  keel push --force-with-lease`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withCancel(cmd.Context(), func(ctx context.Context, id string) error {
				o := opts
				o.OperationID = id
				return report(a, a.svc.Push(ctx, a.repoPath, o), renderPush)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "remote name (default from git.remote)")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "branch to push (default: current)")
	cmd.Flags().BoolVarP(&opts.SetUpstream, "set-upstream", "u", false, "record the remote branch as upstream")
	cmd.Flags().BoolVar(&opts.ForceWithLease, "force-with-lease", false, "overwrite the remote branch if it has not moved")
	return cmd
}

func newPullCmd(a *app) *cobra.Command {
	var (
		opts  remote.PullOptions
		merge engine.MergeOptions
	)
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch and merge the upstream branch",
		Long: `Fetch and merge into the current branch. Conflicts leave a suspended
merge, continued with 'keel merge --continue'.

Examples:
  keel pull
  keel pull --ff-only
  keel pull --remote origin --branch main`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withCancel(cmd.Context(), func(ctx context.Context, id string) error {
				o := opts
				o.Merge = merge
				o.OperationID = id
				return report(a, a.svc.Pull(ctx, a.repoPath, o), renderPull)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "remote name (default from git.remote)")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "remote branch to merge (default: upstream)")
	cmd.Flags().BoolVar(&merge.FFOnly, "ff-only", false, "refuse to merge unless fast-forward is possible")
	cmd.Flags().BoolVar(&merge.NoFF, "no-ff", false, "always create a merge commit")
	cmd.MarkFlagsMutuallyExclusive("ff-only", "no-ff")
	return cmd
}

func renderFetch(w io.Writer, s *outputStyles, res *remote.FetchResult) {
	_, _ = fmt.Fprintln(w, s.success.Render("fetched "+res.Remote))
}

func renderPush(w io.Writer, s *outputStyles, res *remote.PushResult) {
	if res.UpToDate {
		_, _ = fmt.Fprintln(w, s.success.Render("everything up to date"))
		return
	}
	line := fmt.Sprintf("pushed %s to %s", res.Branch, res.Remote)
	if res.Upstream != "" {
		line += ", upstream " + res.Upstream
	}
	_, _ = fmt.Fprintln(w, s.success.Render(line))
}

func renderPull(w io.Writer, s *outputStyles, res *remote.PullResult) {
	if res.Merge == nil {
		_, _ = fmt.Fprintln(w, s.success.Render("pulled "+res.Remote))
		return
	}
	renderMerge(w, s, res.Merge)
}
