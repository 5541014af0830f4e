package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	keelerrors "github.com/mrz1836/keel/internal/errors"
)

// RepoInfo locates a working tree and its control directories.
type RepoInfo struct {
	// WorkDir is the canonical working tree root (symlinks resolved).
	WorkDir string

	// GitDir is the per-worktree control directory holding HEAD, MERGE_HEAD,
	// rebase-merge/ and friends.
	GitDir string

	// CommonDir is the shared control directory. Equal to GitDir outside
	// linked worktrees.
	CommonDir string

	// IsWorktree is true inside a linked worktree.
	IsWorktree bool
}

// Discover returns the repository containing path. The returned WorkDir is
// canonical, so two spellings of the same checkout yield equal values.
func Discover(ctx context.Context, path string) (*RepoInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	out, err := RunCommand(ctx, abs, "rev-parse", "--show-toplevel", "--absolute-git-dir", "--git-common-dir")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", keelerrors.ErrNotGitRepo, path, err)
	}

	lines := strings.Split(out, "\n")
	if len(lines) < 3 || lines[0] == "" {
		return nil, fmt.Errorf("%w: %s", keelerrors.ErrNotGitRepo, path)
	}

	workDir, err := canonical(lines[0])
	if err != nil {
		return nil, err
	}
	gitDir, err := canonical(lines[1])
	if err != nil {
		return nil, err
	}

	commonDir := strings.TrimSpace(lines[2])
	if !filepath.IsAbs(commonDir) {
		commonDir = filepath.Join(abs, commonDir)
	}
	if commonDir, err = canonical(commonDir); err != nil {
		return nil, err
	}

	return &RepoInfo{
		WorkDir:    workDir,
		GitDir:     gitDir,
		CommonDir:  commonDir,
		IsWorktree: gitDir != commonDir,
	}, nil
}

func canonical(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(filepath.Clean(strings.TrimSpace(p)))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return resolved, nil
}
