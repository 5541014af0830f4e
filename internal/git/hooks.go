package git

import (
	"context"
	"path/filepath"
)

// ResolveHooksDir returns the directory git would run hooks from for the
// working tree at workDir. It honors core.hooksPath and linked worktrees.
func ResolveHooksDir(ctx context.Context, workDir string) (string, error) {
	dir, err := RunCommand(ctx, workDir, "rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workDir, dir)
	}
	return filepath.Clean(dir), nil
}
