// Package repo owns open repositories: the per-repository access
// coordinator that serializes mutating commands against concurrent reads,
// and the process-wide cache that hands out one coordinator per checkout.
package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/keel/internal/config"
	"github.com/mrz1836/keel/internal/git"
	"github.com/mrz1836/keel/internal/hook"
	"github.com/mrz1836/keel/internal/opstate"
)

// Reader is the read-only view of a repository handed out under a read guard.
type Reader interface {
	// ConflictedPaths lists paths with unmerged index entries, sorted.
	ConflictedPaths(ctx context.Context) ([]string, error)
	// UnmergedEntries lists conflicted paths with their index stages.
	UnmergedEntries(ctx context.Context) ([]git.UnmergedEntry, error)
	// ThreeWay returns the base, ours and theirs contents of a conflicted path.
	ThreeWay(ctx context.Context, path string) (*git.ThreeWay, error)
	// CurrentBranch returns the checked-out branch, "" when detached.
	CurrentBranch() (string, error)
	// HeadHash returns the commit HEAD points at, "" on an unborn branch.
	HeadHash() (string, error)
	// ResolveRef turns a revision into a full commit hash.
	ResolveRef(ctx context.Context, rev string) (string, error)
	// OperationState reports the suspended operation, if any.
	OperationState() opstate.State
	// GitDir returns the per-worktree control directory.
	GitDir() string
	// WorkDir returns the canonical working tree root.
	WorkDir() string
}

// Options configure how a repository is opened.
type Options struct {
	GitBinary    string
	HooksEnabled bool
	HookTimeout  time.Duration
	LockRetry    git.LockRetryConfig
	Logger       zerolog.Logger
}

// OptionsFromConfig maps loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config, logger zerolog.Logger) Options {
	return Options{
		GitBinary:    cfg.Git.Binary,
		HooksEnabled: cfg.Hooks.Enabled,
		HookTimeout:  cfg.Hooks.Timeout,
		LockRetry: git.LockRetryConfig{
			MaxAttempts:  cfg.Git.LockRetry.MaxAttempts,
			InitialDelay: cfg.Git.LockRetry.InitialDelay,
			MaxDelay:     cfg.Git.LockRetry.MaxDelay,
			Multiplier:   cfg.Git.LockRetry.Multiplier,
		},
		Logger: logger,
	}
}

// DefaultOptions returns Options built from the default configuration.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig(), zerolog.Nop())
}

// Repository is the full surface of one open checkout: the executor for
// mutating git commands, the hook gate and the read-only views. It is only
// reachable through a WriteGuard.
type Repository struct {
	info      *git.RepoInfo
	exec      *git.Executor
	reader    *git.Reader
	gate      *hook.Gate
	lockRetry git.LockRetryConfig
	logger    zerolog.Logger

	mu    sync.Mutex
	hints opstate.Hints
}

// Open discovers the repository containing path and prepares its executor,
// reader and hook gate.
func Open(ctx context.Context, path string, opts Options) (*Repository, error) {
	info, err := git.Discover(ctx, path)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger.With().Str("repo", info.WorkDir).Logger()

	gate, err := hook.NewGate(ctx, info.WorkDir,
		hook.WithEnabled(opts.HooksEnabled),
		hook.WithTimeout(opts.HookTimeout),
		hook.WithLogger(logger.With().Str("component", "hook").Logger()),
	)
	if err != nil {
		return nil, err
	}
	noHooks, err := gate.NativeHooksDir()
	if err != nil {
		_ = gate.Close()
		return nil, err
	}

	exec := git.NewExecutor(info.WorkDir,
		git.WithBinary(opts.GitBinary),
		git.WithHooksPath(noHooks),
		git.WithLogger(logger.With().Str("component", "git").Logger()),
	)

	reader, err := git.OpenReader(info.WorkDir, exec, logger)
	if err != nil {
		_ = gate.Close()
		return nil, fmt.Errorf("open repository reader: %w", err)
	}

	return &Repository{
		info:      info,
		exec:      exec,
		reader:    reader,
		gate:      gate,
		lockRetry: opts.LockRetry,
		logger:    logger,
	}, nil
}

// Info returns the repository's location.
func (r *Repository) Info() *git.RepoInfo {
	return r.info
}

// Executor returns the git executor bound to the working tree.
func (r *Repository) Executor() *git.Executor {
	return r.exec
}

// Gate returns the hook gate.
func (r *Repository) Gate() *hook.Gate {
	return r.gate
}

// Logger returns the repository-scoped logger.
func (r *Repository) Logger() *zerolog.Logger {
	return &r.logger
}

// GitDir returns the per-worktree control directory.
func (r *Repository) GitDir() string {
	return r.info.GitDir
}

// WorkDir returns the canonical working tree root.
func (r *Repository) WorkDir() string {
	return r.info.WorkDir
}

// UnmergedEntries lists conflicted paths with their index stages.
func (r *Repository) UnmergedEntries(ctx context.Context) ([]git.UnmergedEntry, error) {
	return git.RunWithLockRetry(ctx, r.lockRetry, r.logger, r.reader.UnmergedEntries)
}

// ConflictedPaths lists paths with unmerged index entries, sorted.
func (r *Repository) ConflictedPaths(ctx context.Context) ([]string, error) {
	entries, err := r.UnmergedEntries(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths, nil
}

// ThreeWay returns the base, ours and theirs contents of a conflicted path.
func (r *Repository) ThreeWay(ctx context.Context, path string) (*git.ThreeWay, error) {
	return r.reader.ThreeWay(ctx, path)
}

// CurrentBranch returns the checked-out branch, "" when detached.
func (r *Repository) CurrentBranch() (string, error) {
	return r.reader.CurrentBranch()
}

// HeadHash returns the commit HEAD points at.
func (r *Repository) HeadHash() (string, error) {
	return r.reader.HeadHash()
}

// ResolveRef turns a revision into a full commit hash.
func (r *Repository) ResolveRef(ctx context.Context, rev string) (string, error) {
	return git.RunWithLockRetry(ctx, r.lockRetry, r.logger, func(ctx context.Context) (string, error) {
		return r.reader.ResolveRevision(ctx, rev)
	})
}

// OperationState reports the suspended operation, merged with remembered hints.
// A rebase started by another process has no remembered onto name, so it is
// recovered from the branch whose tip is the onto commit.
func (r *Repository) OperationState() opstate.State {
	st := opstate.DetectWithHints(r.info.GitDir, r.Hints())
	if rs := st.Rebase; rs != nil && rs.OntoName == "" && rs.Onto != "" {
		name, err := r.reader.BranchAt(rs.Onto)
		if err != nil {
			r.logger.Debug().Err(err).Msg("resolve rebase onto name")
		}
		rs.OntoName = name
	}
	return st
}

// Hints returns the remembered operation hints.
func (r *Repository) Hints() opstate.Hints {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hints
}

// SetHints replaces the remembered operation hints.
func (r *Repository) SetHints(h opstate.Hints) {
	r.mu.Lock()
	r.hints = h
	r.mu.Unlock()
}

// Close releases resources held by the repository.
func (r *Repository) Close() error {
	return r.gate.Close()
}

var _ Reader = (*Repository)(nil)
