package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mrz1836/keel/internal/config"
	"github.com/mrz1836/keel/internal/engine"
	"github.com/mrz1836/keel/internal/git"
	"github.com/mrz1836/keel/internal/logging"
	"github.com/mrz1836/keel/internal/progress"
	"github.com/mrz1836/keel/internal/remote"
	"github.com/mrz1836/keel/internal/repo"
	"github.com/mrz1836/keel/internal/service"
)

// app holds everything one CLI invocation shares between commands. It is
// wired in the root command's PersistentPreRunE and torn down by Execute.
type app struct {
	flags *GlobalFlags

	cfg      *config.Config
	log      *logging.Logger
	registry *progress.Registry
	cache    *repo.Cache
	syncer   *remote.Service
	svc      *service.Service

	// repoPath is the working tree root, or flags.Repo when discovery failed
	// so the service reports not_found itself.
	repoPath string

	out    io.Writer
	errOut io.Writer
}

func newApp(flags *GlobalFlags) *app {
	return &app{flags: flags}
}

// init loads configuration and builds the service stack.
func (a *app) init(cmd *cobra.Command) error {
	ctx := cmd.Context()
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()

	root := ""
	a.repoPath = a.flags.Repo
	if info, err := git.Discover(ctx, a.flags.Repo); err == nil {
		root = info.WorkDir
		a.repoPath = info.WorkDir
	}

	cfg, err := config.Load(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	opts := logging.Options{
		Verbose:    a.flags.Verbose,
		Quiet:      a.flags.Quiet,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}
	if a.errOut != os.Stderr {
		opts.Console = a.errOut
	}
	a.log = logging.New(opts)
	logger := a.log.Logger

	a.registry = progress.NewRegistry()
	emitter := progress.NewEmitter(a.registry, progress.SinkFunc(a.showProgress),
		progress.WithInterval(cfg.Progress.ThrottleInterval),
		progress.WithLogger(component(logger, "progress")),
	)

	a.cache = repo.NewCache(repo.NewOpener(repo.OptionsFromConfig(cfg, logger)), component(logger, "cache"))
	eng := engine.New(engine.WithLogger(component(logger, "engine")))
	a.syncer = remote.NewService(eng, emitter,
		remote.WithDefaultRemote(cfg.Git.Remote),
		remote.WithLogger(component(logger, "remote")),
	)
	a.svc = service.New(a.cache, eng, a.syncer, a.registry,
		service.WithLogger(component(logger, "service")),
	)
	return nil
}

// close releases the repository cache and the log file. Safe on an app
// whose init never ran.
func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(context.Background()); err != nil {
			a.log.Warn().Err(err).Msg("failed to close repositories")
		}
	}
	if a.log != nil {
		_ = a.log.Close()
	}
}

func (a *app) jsonOutput() bool {
	return a.flags.Output == OutputJSON
}

// showProgress prints network progress on stderr: one JSON event per line
// in json mode, a short status line otherwise.
func (a *app) showProgress(ev progress.Event) {
	if a.flags.Quiet && !ev.Stage.Terminal() {
		return
	}
	if a.jsonOutput() {
		_ = json.NewEncoder(a.errOut).Encode(ev)
		return
	}
	_, _ = fmt.Fprintln(a.errOut, formatProgress(newOutputStyles(), ev))
}

func component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
