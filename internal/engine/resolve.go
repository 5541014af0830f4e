package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/git"
	"github.com/mrz1836/keel/internal/repo"
)

// Resolver edits the conflict set of a repository whose write guard the
// caller holds.
type Resolver struct {
	e *Engine
	r *repo.Repository
}

// Resolver binds conflict resolution to a held write guard.
func (e *Engine) Resolver(g *repo.WriteGuard) *Resolver {
	return &Resolver{e: e, r: g.Repository()}
}

// ResolveWithVersion resolves path by taking one side of the conflict.
func (e *Engine) ResolveWithVersion(ctx context.Context, c *repo.Coordinator, path string, side Side) error {
	return e.resolve(ctx, c, func(ctx context.Context, rs *Resolver) error {
		return rs.WithVersion(ctx, path, side)
	})
}

// ResolveWithCustom resolves path with caller-supplied content.
func (e *Engine) ResolveWithCustom(ctx context.Context, c *repo.Coordinator, path string, content []byte) error {
	return e.resolve(ctx, c, func(ctx context.Context, rs *Resolver) error {
		return rs.WithCustom(ctx, path, content)
	})
}

// MarkResolved stages path as it is in the working tree.
func (e *Engine) MarkResolved(ctx context.Context, c *repo.Coordinator, path string) error {
	return e.resolve(ctx, c, func(ctx context.Context, rs *Resolver) error {
		return rs.MarkResolved(ctx, path)
	})
}

// MarkUnresolved puts path back into conflict with markers in the file.
func (e *Engine) MarkUnresolved(ctx context.Context, c *repo.Coordinator, path string) error {
	return e.resolve(ctx, c, func(ctx context.Context, rs *Resolver) error {
		return rs.MarkUnresolved(ctx, path)
	})
}

func (e *Engine) resolve(ctx context.Context, c *repo.Coordinator, fn func(context.Context, *Resolver) error) error {
	_, err := mutate(ctx, c, func(ctx context.Context, r *repo.Repository) (struct{}, error) {
		return struct{}{}, fn(ctx, &Resolver{e: e, r: r})
	})
	return err
}

// WithVersion takes side for path. When that side deleted the path, the
// path is removed.
func (rs *Resolver) WithVersion(ctx context.Context, path string, side Side) error {
	if _, err := ParseSide(string(side)); err != nil {
		return err
	}
	path, entry, err := rs.conflict(ctx, path, true)
	if err != nil {
		return err
	}

	present := entry.HasOurs()
	if side == Theirs {
		present = entry.HasTheirs()
	}
	if !present {
		return rs.git(ctx, "resolve", nil, "rm", "--quiet", "--", path)
	}
	if err := rs.git(ctx, "resolve", nil, "checkout", "--"+string(side), "--", path); err != nil {
		return err
	}
	if err := rs.git(ctx, "resolve", nil, "add", "--", path); err != nil {
		return err
	}
	rs.r.Logger().Info().Str("path", path).Str("side", string(side)).Msg("conflict resolved")
	return nil
}

// WithCustom writes content to path and stages it.
func (rs *Resolver) WithCustom(ctx context.Context, path string, content []byte) error {
	path, _, err := rs.conflict(ctx, path, false)
	if err != nil {
		return err
	}
	if err := rs.writeFile(path, content); err != nil {
		return err
	}
	if err := rs.git(ctx, "resolve", nil, "add", "--", path); err != nil {
		return err
	}
	rs.r.Logger().Info().Str("path", path).Msg("conflict resolved with custom content")
	return nil
}

// MarkResolved stages the working tree version of path, including its
// deletion.
func (rs *Resolver) MarkResolved(ctx context.Context, path string) error {
	path, _, err := rs.conflict(ctx, path, false)
	if err != nil {
		return err
	}
	return rs.git(ctx, "mark resolved", nil, "add", "-A", "--", path)
}

// MarkUnresolved restores the conflict stages of path and rewrites the file
// with conflict markers. When one side deleted the path the surviving
// version is written instead.
func (rs *Resolver) MarkUnresolved(ctx context.Context, path string) error {
	path, entry, err := rs.conflict(ctx, path, true)
	if err != nil {
		return err
	}

	if entry.HasOurs() && entry.HasTheirs() {
		return rs.git(ctx, "mark unresolved", nil, "checkout", "-m", "--", path)
	}

	tw, err := rs.r.ThreeWay(ctx, path)
	if err != nil {
		return err
	}
	content := tw.Ours
	if content == nil {
		content = tw.Theirs
	}
	return rs.writeFile(path, content)
}

// conflict validates path against the conflict set. With restore, a path
// that was already resolved gets its conflict stages back.
func (rs *Resolver) conflict(ctx context.Context, path string, restore bool) (string, git.UnmergedEntry, error) {
	if path == "" {
		return "", git.UnmergedEntry{}, fmt.Errorf("path: %w", keelerrors.ErrEmptyValue)
	}
	path = filepath.ToSlash(filepath.Clean(path))
	if !filepath.IsLocal(path) {
		return "", git.UnmergedEntry{}, fmt.Errorf("%w: path %q escapes the work tree", keelerrors.ErrInvalidArgument, path)
	}

	entries, err := rs.r.UnmergedEntries(ctx)
	if err != nil {
		return "", git.UnmergedEntry{}, err
	}
	for _, entry := range entries {
		if entry.Path == path {
			return path, entry, nil
		}
	}

	rc, ok := rs.e.remembered(rs.r.WorkDir(), path)
	if !ok || !rs.r.OperationState().InProgress() {
		return "", git.UnmergedEntry{}, fmt.Errorf("%w: %s", keelerrors.ErrNotConflicted, path)
	}
	if restore {
		if err := rs.git(ctx, "restore conflict", strings.NewReader(rc.entry.IndexInfo()), "update-index", "--index-info"); err != nil {
			return "", git.UnmergedEntry{}, err
		}
	}
	return path, rc.entry, nil
}

func (rs *Resolver) writeFile(path string, content []byte) error {
	full := filepath.Join(rs.r.WorkDir(), filepath.FromSlash(path))
	mode := os.FileMode(0o644)
	if info, err := os.Stat(full); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.WriteFile(full, content, mode); err != nil { //nolint:gosec // path is checked to stay inside the work tree
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (rs *Resolver) git(ctx context.Context, op string, stdin *strings.Reader, args ...string) error {
	opts := git.RunOptions{Env: nonInteractiveEnv}
	if stdin != nil {
		opts.Stdin = stdin
	}
	res, err := rs.r.Executor().RunWith(ctx, opts, args...)
	if err != nil {
		return fmt.Errorf("git %s: %w", args[0], err)
	}
	if !res.Success() {
		return opError(op, res)
	}
	return nil
}
