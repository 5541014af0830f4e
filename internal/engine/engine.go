// Package engine drives git's conflict-bearing operations (merge, rebase,
// cherry-pick and revert) through their succeed, conflict, continue, skip
// and abort transitions, plus reset and conflict resolution.
//
// Every mutating entry point takes the repository's write guard first. Once
// the guard is held the git command runs to completion even if the caller's
// context is canceled, so a repository is never left half-rewritten by an
// interrupted call.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/git"
	"github.com/mrz1836/keel/internal/opstate"
	"github.com/mrz1836/keel/internal/repo"
)

// nonInteractiveEnv keeps git from waiting on an editor.
//
//nolint:gochecknoglobals // constant environment
var nonInteractiveEnv = []string{"GIT_EDITOR=true", "GIT_MERGE_AUTOEDIT=no"}

// Engine runs mutating operations. One Engine serves every repository; it
// remembers each repository's current conflict set so resolved paths can be
// listed and restored.
type Engine struct {
	logger zerolog.Logger

	mu        sync.Mutex
	conflicts map[string]map[string]rememberedConflict
}

type rememberedConflict struct {
	entry git.UnmergedEntry
	typ   ConflictType
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:    zerolog.Nop(),
		conflicts: make(map[string]map[string]rememberedConflict),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Forget drops what the engine remembers about a repository.
func (e *Engine) Forget(workDir string) {
	e.mu.Lock()
	delete(e.conflicts, workDir)
	e.mu.Unlock()
}

func (e *Engine) remember(workDir string, entries []git.UnmergedEntry, files []ConflictedFile) {
	set := make(map[string]rememberedConflict, len(entries))
	types := make(map[string]ConflictType, len(files))
	for _, f := range files {
		types[f.Path] = f.Type
	}
	for _, entry := range entries {
		set[entry.Path] = rememberedConflict{entry: entry, typ: types[entry.Path]}
	}
	e.mu.Lock()
	e.conflicts[workDir] = set
	e.mu.Unlock()
}

func (e *Engine) remembered(workDir string, path string) (rememberedConflict, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rc, ok := e.conflicts[workDir][path]
	return rc, ok
}

func (e *Engine) rememberedSet(workDir string) map[string]rememberedConflict {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]rememberedConflict, len(e.conflicts[workDir]))
	for k, v := range e.conflicts[workDir] {
		out[k] = v
	}
	return out
}

// run executes a mutating git command with an editor that accepts defaults.
func run(ctx context.Context, r *repo.Repository, extraEnv []string, args ...string) (*git.Result, error) {
	env := append(append([]string(nil), nonInteractiveEnv...), extraEnv...)
	res, err := r.Executor().RunWith(ctx, git.RunOptions{Env: env}, args...)
	if err != nil {
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	return res, nil
}

// observe gathers what the translators need after a command returns.
func observe(ctx context.Context, r *repo.Repository, res *git.Result, kind opstate.Kind) (observation, []git.UnmergedEntry, error) {
	o := observation{
		ExitCode:   res.ExitCode,
		Output:     res.Combined(),
		InProgress: r.OperationState().Kind == kind,
	}
	if res.ExitCode == 0 {
		return o, nil, nil
	}
	entries, err := r.UnmergedEntries(ctx)
	if err != nil {
		return o, nil, err
	}
	o.Unmerged = len(entries) > 0
	return o, entries, nil
}

func opError(op string, res *git.Result) error {
	return &OperationError{
		Op:       op,
		Args:     res.Args,
		ExitCode: res.ExitCode,
		Output:   strings.TrimSpace(res.Combined()),
	}
}

// requireIdle rejects starting an operation while another is suspended or
// while the index still holds conflicts from outside one (a stash pop, say).
func requireIdle(ctx context.Context, r *repo.Repository) error {
	if st := r.OperationState(); st.InProgress() {
		return fmt.Errorf("%w: %s", keelerrors.ErrOperationInProgress, st.Kind)
	}
	return requireResolved(ctx, r)
}

func requireKind(r *repo.Repository, kind opstate.Kind) (opstate.State, error) {
	st := r.OperationState()
	if st.Kind != kind {
		return st, fmt.Errorf("%w: not %s", keelerrors.ErrNoOperationInProgress, kind)
	}
	return st, nil
}

func requireResolved(ctx context.Context, r *repo.Repository) error {
	paths, err := r.ConflictedPaths(ctx)
	if err != nil {
		return err
	}
	if len(paths) > 0 {
		return fmt.Errorf("%w: %s", keelerrors.ErrUnresolvedConflicts, strings.Join(paths, ", "))
	}
	return nil
}

// firstLine returns the first non-empty line of git output, used as a short
// human-readable message.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
