package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/testutil"
)

func TestDiscover(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T) (path, wantWorkDir string)
		wantErr    error
		isWorktree bool
	}{
		{
			name: "main repository",
			setup: func(t *testing.T) (string, string) {
				t.Helper()
				r := testutil.NewRepo(t)
				return r.Dir, r.Dir
			},
		},
		{
			name: "subdirectory",
			setup: func(t *testing.T) (string, string) {
				t.Helper()
				r := testutil.NewRepo(t)
				r.WriteFile("nested/dir/file.txt", "x")
				return r.Path("nested/dir"), r.Dir
			},
		},
		{
			name: "symlinked path",
			setup: func(t *testing.T) (string, string) {
				t.Helper()
				r := testutil.NewRepo(t)
				link := filepath.Join(t.TempDir(), "link")
				require.NoError(t, os.Symlink(r.Dir, link))
				return link, r.Dir
			},
		},
		{
			name: "linked worktree",
			setup: func(t *testing.T) (string, string) {
				t.Helper()
				r := testutil.NewRepo(t)
				r.CommitFile("README.md", "# Test", "initial")
				wtPath := filepath.Join(t.TempDir(), "worktree")
				r.Git("worktree", "add", "-q", wtPath, "-b", "feature")
				resolved, err := filepath.EvalSymlinks(wtPath)
				require.NoError(t, err)
				return wtPath, resolved
			},
			isWorktree: true,
		},
		{
			name: "not a git repo",
			setup: func(t *testing.T) (string, string) {
				t.Helper()
				return t.TempDir(), ""
			},
			wantErr: keelerrors.ErrNotGitRepo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, wantWorkDir := tt.setup(t)

			info, err := Discover(context.Background(), path)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, wantWorkDir, info.WorkDir)
			assert.True(t, filepath.IsAbs(info.GitDir))
			assert.True(t, filepath.IsAbs(info.CommonDir))
			assert.Equal(t, tt.isWorktree, info.IsWorktree)
			if !tt.isWorktree {
				assert.Equal(t, filepath.Join(wantWorkDir, ".git"), info.GitDir)
				assert.Equal(t, info.GitDir, info.CommonDir)
			}
		})
	}
}

func TestDiscover_ContextCancellation(t *testing.T) {
	r := testutil.NewRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Discover(ctx, r.Dir)
	require.Error(t, err)
}
