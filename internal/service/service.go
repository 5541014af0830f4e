// Package service is keel's command surface. Every user-facing action is one
// method taking a repository path and returning a Response, and this is the
// only place internal errors are turned into their outward form.
package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/keel/internal/engine"
	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/opstate"
	"github.com/mrz1836/keel/internal/progress"
	"github.com/mrz1836/keel/internal/remote"
	"github.com/mrz1836/keel/internal/repo"
)

// RepositoryInfo describes an opened repository.
type RepositoryInfo struct {
	Path   string        `json:"path"`
	GitDir string        `json:"git_dir"`
	Branch string        `json:"branch,omitempty"`
	Head   string        `json:"head,omitempty"`
	State  opstate.State `json:"state"`
}

// Resolution selects how a conflicted path is resolved. A non-nil Content
// wins over Side.
type Resolution struct {
	Side    engine.Side `json:"side,omitempty"`
	Content []byte      `json:"content,omitempty"`
}

// Service dispatches commands to the engine and the network layer.
type Service struct {
	cache    *repo.Cache
	engine   *engine.Engine
	remote   remote.Syncer
	registry *progress.Registry
	logger   zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New returns a Service.
func New(cache *repo.Cache, eng *engine.Engine, syncer remote.Syncer, registry *progress.Registry, opts ...Option) *Service {
	s := &Service{
		cache:    cache,
		engine:   eng,
		remote:   syncer,
		registry: registry,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// dispatch opens path and runs fn, logging failures by severity.
func dispatch[T any](ctx context.Context, s *Service, name, path string, fn func(*repo.Coordinator) (T, error)) Response[T] {
	c, err := s.cache.GetOrOpen(ctx, path)
	if err == nil {
		var data T
		if data, err = fn(c); err == nil {
			return Response[T]{OK: true, Data: data}
		}
	}

	resp := respond(*new(T), err)
	event := s.logger.Debug()
	if resp.Error.Kind == KindInternal || resp.Error.Kind == KindHardFailure {
		event = s.logger.Warn()
	}
	event.Err(err).Str("command", name).Str("repo", path).Str("kind", string(resp.Error.Kind)).Msg("command failed")
	return resp
}

func empty(err error) (Empty, error) {
	return Empty{}, err
}

// OpenRepository opens path and describes it.
func (s *Service) OpenRepository(ctx context.Context, path string) Response[*RepositoryInfo] {
	return dispatch(ctx, s, "open", path, func(c *repo.Coordinator) (*RepositoryInfo, error) {
		return repo.WithRead(ctx, c, func(rd repo.Reader) (*RepositoryInfo, error) {
			branch, err := rd.CurrentBranch()
			if err != nil {
				return nil, err
			}
			head, err := rd.HeadHash()
			if err != nil {
				return nil, err
			}
			return &RepositoryInfo{
				Path:   rd.WorkDir(),
				GitDir: rd.GitDir(),
				Branch: branch,
				Head:   head,
				State:  rd.OperationState(),
			}, nil
		})
	})
}

// SetActive marks an opened repository for background fetching.
func (s *Service) SetActive(ctx context.Context, path string, active bool) Response[bool] {
	if !s.cache.SetActive(ctx, path, active) {
		return respond(false, fmt.Errorf("%w: %s is not open", keelerrors.ErrInvalidArgument, path))
	}
	return respond(true, nil)
}

// CloseRepository evicts path from the cache and forgets its conflict set.
func (s *Service) CloseRepository(ctx context.Context, path string) Response[Empty] {
	if c, ok := s.cache.Lookup(ctx, path); ok {
		s.engine.Forget(c.Path())
	}
	return respond(Empty{}, s.cache.Remove(ctx, path))
}

// Cancel flags a running network operation. It reports false for unknown or
// finished operations.
func (s *Service) Cancel(id string) Response[bool] {
	ok := s.registry.Cancel(id)
	s.logger.Debug().Str("operation_id", id).Bool("found", ok).Msg("cancel requested")
	return respond(ok, nil)
}

// Merge merges branch into the current branch.
func (s *Service) Merge(ctx context.Context, path, branch string, opts engine.MergeOptions) Response[*engine.MergeResult] {
	return dispatch(ctx, s, "merge", path, func(c *repo.Coordinator) (*engine.MergeResult, error) {
		return s.engine.Merge(ctx, c, branch, opts)
	})
}

// MergeContinue commits a resolved merge.
func (s *Service) MergeContinue(ctx context.Context, path string) Response[*engine.MergeResult] {
	return dispatch(ctx, s, "merge continue", path, func(c *repo.Coordinator) (*engine.MergeResult, error) {
		return s.engine.MergeContinue(ctx, c)
	})
}

// MergeAbort abandons a merge.
func (s *Service) MergeAbort(ctx context.Context, path string) Response[Empty] {
	return dispatch(ctx, s, "merge abort", path, func(c *repo.Coordinator) (Empty, error) {
		return empty(s.engine.MergeAbort(ctx, c))
	})
}

// Rebase rebases the current branch onto onto.
func (s *Service) Rebase(ctx context.Context, path, onto string) Response[*engine.RebaseResult] {
	return dispatch(ctx, s, "rebase", path, func(c *repo.Coordinator) (*engine.RebaseResult, error) {
		return s.engine.Rebase(ctx, c, onto)
	})
}

// InteractiveRebase rebases onto onto following todo.
func (s *Service) InteractiveRebase(ctx context.Context, path, onto string, todo []engine.TodoLine) Response[*engine.RebaseResult] {
	return dispatch(ctx, s, "interactive rebase", path, func(c *repo.Coordinator) (*engine.RebaseResult, error) {
		return s.engine.InteractiveRebase(ctx, c, onto, todo)
	})
}

// RebaseContinue resumes a rebase.
func (s *Service) RebaseContinue(ctx context.Context, path string) Response[*engine.RebaseResult] {
	return dispatch(ctx, s, "rebase continue", path, func(c *repo.Coordinator) (*engine.RebaseResult, error) {
		return s.engine.RebaseContinue(ctx, c)
	})
}

// RebaseSkip drops the current commit of a rebase.
func (s *Service) RebaseSkip(ctx context.Context, path string) Response[*engine.RebaseResult] {
	return dispatch(ctx, s, "rebase skip", path, func(c *repo.Coordinator) (*engine.RebaseResult, error) {
		return s.engine.RebaseSkip(ctx, c)
	})
}

// RebaseAbort abandons a rebase.
func (s *Service) RebaseAbort(ctx context.Context, path string) Response[Empty] {
	return dispatch(ctx, s, "rebase abort", path, func(c *repo.Coordinator) (Empty, error) {
		return empty(s.engine.RebaseAbort(ctx, c))
	})
}

// CherryPick applies commits onto the current branch.
func (s *Service) CherryPick(ctx context.Context, path string, commits []string) Response[*engine.CherryPickResult] {
	return dispatch(ctx, s, "cherry-pick", path, func(c *repo.Coordinator) (*engine.CherryPickResult, error) {
		return s.engine.CherryPick(ctx, c, commits...)
	})
}

// CherryPickContinue resumes a cherry-pick.
func (s *Service) CherryPickContinue(ctx context.Context, path string) Response[*engine.CherryPickResult] {
	return dispatch(ctx, s, "cherry-pick continue", path, func(c *repo.Coordinator) (*engine.CherryPickResult, error) {
		return s.engine.CherryPickContinue(ctx, c)
	})
}

// CherryPickSkip drops the current pick.
func (s *Service) CherryPickSkip(ctx context.Context, path string) Response[*engine.CherryPickResult] {
	return dispatch(ctx, s, "cherry-pick skip", path, func(c *repo.Coordinator) (*engine.CherryPickResult, error) {
		return s.engine.CherryPickSkip(ctx, c)
	})
}

// CherryPickAbort abandons a cherry-pick.
func (s *Service) CherryPickAbort(ctx context.Context, path string) Response[Empty] {
	return dispatch(ctx, s, "cherry-pick abort", path, func(c *repo.Coordinator) (Empty, error) {
		return empty(s.engine.CherryPickAbort(ctx, c))
	})
}

// Revert undoes commit.
func (s *Service) Revert(ctx context.Context, path, commit string, noCommit bool) Response[*engine.RevertResult] {
	return dispatch(ctx, s, "revert", path, func(c *repo.Coordinator) (*engine.RevertResult, error) {
		return s.engine.Revert(ctx, c, commit, noCommit)
	})
}

// RevertContinue resumes a revert.
func (s *Service) RevertContinue(ctx context.Context, path string) Response[*engine.RevertResult] {
	return dispatch(ctx, s, "revert continue", path, func(c *repo.Coordinator) (*engine.RevertResult, error) {
		return s.engine.RevertContinue(ctx, c)
	})
}

// RevertAbort abandons a revert.
func (s *Service) RevertAbort(ctx context.Context, path string) Response[Empty] {
	return dispatch(ctx, s, "revert abort", path, func(c *repo.Coordinator) (Empty, error) {
		return empty(s.engine.RevertAbort(ctx, c))
	})
}

// Reset moves the current branch to target. mode is soft, mixed or hard.
func (s *Service) Reset(ctx context.Context, path, target, mode string) Response[*engine.ResetResult] {
	return dispatch(ctx, s, "reset", path, func(c *repo.Coordinator) (*engine.ResetResult, error) {
		m, err := engine.ParseResetMode(mode)
		if err != nil {
			return nil, err
		}
		return s.engine.Reset(ctx, c, target, m)
	})
}

// GetOperationState reports the suspended operation, if any.
func (s *Service) GetOperationState(ctx context.Context, path string) Response[opstate.State] {
	return dispatch(ctx, s, "state", path, func(c *repo.Coordinator) (opstate.State, error) {
		return s.engine.OperationState(ctx, c)
	})
}

// GetConflictedFiles lists the conflict set.
func (s *Service) GetConflictedFiles(ctx context.Context, path string) Response[[]engine.ConflictedFile] {
	return dispatch(ctx, s, "conflicts", path, func(c *repo.Coordinator) ([]engine.ConflictedFile, error) {
		return s.engine.ConflictedFiles(ctx, c)
	})
}

// GetRebaseProgress reports rebase progress, or nil when not rebasing.
func (s *Service) GetRebaseProgress(ctx context.Context, path string) Response[*opstate.RebaseState] {
	return dispatch(ctx, s, "rebase progress", path, func(c *repo.Coordinator) (*opstate.RebaseState, error) {
		return s.engine.RebaseProgress(ctx, c)
	})
}

// ResolveConflict resolves file with a side or with custom content.
func (s *Service) ResolveConflict(ctx context.Context, path, file string, res Resolution) Response[Empty] {
	return dispatch(ctx, s, "resolve", path, func(c *repo.Coordinator) (Empty, error) {
		if res.Content != nil {
			return empty(s.engine.ResolveWithCustom(ctx, c, file, res.Content))
		}
		return empty(s.engine.ResolveWithVersion(ctx, c, file, res.Side))
	})
}

// MarkConflictResolved stages file as it is in the working tree.
func (s *Service) MarkConflictResolved(ctx context.Context, path, file string) Response[Empty] {
	return dispatch(ctx, s, "mark resolved", path, func(c *repo.Coordinator) (Empty, error) {
		return empty(s.engine.MarkResolved(ctx, c, file))
	})
}

// MarkConflictUnresolved puts file back into conflict.
func (s *Service) MarkConflictUnresolved(ctx context.Context, path, file string) Response[Empty] {
	return dispatch(ctx, s, "mark unresolved", path, func(c *repo.Coordinator) (Empty, error) {
		return empty(s.engine.MarkUnresolved(ctx, c, file))
	})
}

// Fetch downloads from a remote.
func (s *Service) Fetch(ctx context.Context, path string, opts remote.FetchOptions) Response[*remote.FetchResult] {
	return dispatch(ctx, s, "fetch", path, func(c *repo.Coordinator) (*remote.FetchResult, error) {
		return s.remote.Fetch(ctx, c, opts)
	})
}

// Push uploads a branch.
func (s *Service) Push(ctx context.Context, path string, opts remote.PushOptions) Response[*remote.PushResult] {
	return dispatch(ctx, s, "push", path, func(c *repo.Coordinator) (*remote.PushResult, error) {
		return s.remote.Push(ctx, c, opts)
	})
}

// Pull fetches and merges.
func (s *Service) Pull(ctx context.Context, path string, opts remote.PullOptions) Response[*remote.PullResult] {
	return dispatch(ctx, s, "pull", path, func(c *repo.Coordinator) (*remote.PullResult, error) {
		return s.remote.Pull(ctx, c, opts)
	})
}
