package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/keel/internal/autofetch"
	"github.com/mrz1836/keel/internal/opstate"
	"github.com/mrz1836/keel/internal/service"
	"github.com/mrz1836/keel/internal/signal"
	"github.com/mrz1836/keel/internal/watch"
)

// stateChange is one line of `keel watch --output json`.
type stateChange struct {
	Time  time.Time     `json:"time"`
	State opstate.State `json:"state"`
}

// untilInterrupt returns a context that ends on the first Ctrl+C.
func untilInterrupt(parent context.Context) (context.Context, func()) {
	h := signal.NewHandler(parent)
	ctx, cancel := context.WithCancel(h.Context())
	h.OnInterrupt(cancel)
	return ctx, func() {
		cancel()
		h.Stop()
	}
}

// AddWatchCommand adds the watch command.
func AddWatchCommand(root *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print operation state changes as they happen",
		Long: `Watch git's control directory and print the operation state whenever it
changes, including changes made from another terminal. Runs until Ctrl+C.

When autofetch.enabled is set the repository is also fetched in the
background every autofetch.interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := untilInterrupt(cmd.Context())
			defer stop()

			info := a.svc.OpenRepository(ctx, a.repoPath)
			if !info.OK {
				return report(a, info, nil)
			}
			coord, err := a.cache.GetOrOpen(ctx, info.Data.Path)
			if err != nil {
				return service.ToCommandError(err)
			}

			a.printState(info.Data.State)
			w := watch.New(coord, a.printState,
				watch.WithDebounce(a.cfg.Watch.Debounce),
				watch.WithLogger(component(a.log.Logger, "watch")),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return w.Run(gctx) })
			if a.cfg.AutoFetch.Enabled {
				a.cache.SetActive(gctx, info.Data.Path, true)
				g.Go(func() error { return a.poller().Run(gctx) })
			}
			return g.Wait()
		},
	}
	root.AddCommand(cmd)
}

func (a *app) printState(st opstate.State) {
	if a.jsonOutput() {
		_ = writeJSON(a.out, stateChange{Time: time.Now(), State: st})
		return
	}
	renderState(a.out, newOutputStyles(), st)
}

func (a *app) poller() *autofetch.Poller {
	return autofetch.New(a.cache, a.syncer,
		autofetch.WithInterval(a.cfg.AutoFetch.Interval),
		autofetch.WithConcurrency(a.cfg.AutoFetch.Concurrency),
		autofetch.WithLogger(component(a.log.Logger, "autofetch")),
	)
}

// AddAutoFetchCommand adds the autofetch command.
func AddAutoFetchCommand(root *cobra.Command, a *app) {
	var (
		once     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "autofetch [repo...]",
		Short: "Fetch repositories in the background on an interval",
		Long: `Fetch the given repositories (default: --repo) every autofetch.interval
until Ctrl+C. Failures are logged and retried on the next round.

Examples:
  keel autofetch
  keel autofetch --interval 1m ~/src/a ~/src/b
  keel autofetch --once`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := untilInterrupt(cmd.Context())
			defer stop()

			if len(args) == 0 {
				args = []string{a.repoPath}
			}
			for _, path := range args {
				info := a.svc.OpenRepository(ctx, path)
				if !info.OK {
					return report(a, info, nil)
				}
				a.svc.SetActive(ctx, info.Data.Path, true)
			}

			if interval > 0 {
				a.cfg.AutoFetch.Interval = interval
			}
			p := a.poller()
			if !once {
				return p.Run(ctx)
			}

			round := p.FetchAll(ctx)
			if a.jsonOutput() {
				return writeJSON(a.out, round)
			}
			_, _ = fmt.Fprintf(a.out, "fetched %d, failed %d\n", round.Fetched, round.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single round and exit")
	cmd.Flags().DurationVar(&interval, "interval", 0, "override autofetch.interval")
	root.AddCommand(cmd)
}
