package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/keel/internal/config"
	"github.com/mrz1836/keel/internal/opstate"
	"github.com/mrz1836/keel/internal/testutil"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Git.Binary = "/usr/local/bin/git"
	cfg.Hooks.Enabled = false

	opts := OptionsFromConfig(cfg, zerolog.Nop())

	assert.Equal(t, "/usr/local/bin/git", opts.GitBinary)
	assert.False(t, opts.HooksEnabled)
	assert.Equal(t, cfg.Git.LockRetry.MaxAttempts, opts.LockRetry.MaxAttempts)
}

func TestOpen_WiresNativeHooksAway(t *testing.T) {
	r := testutil.NewRepo(t)
	r.WriteHook("pre-commit", "exit 1")
	r.WriteFile("a.txt", "a\n")
	r.Git("add", "a.txt")

	repository, err := Open(context.Background(), r.Dir, DefaultOptions())
	require.NoError(t, err)

	res, err := repository.Executor().Run(context.Background(), "commit", "-m", "native hook bypassed")
	require.NoError(t, err)
	assert.True(t, res.Success(), res.Combined())

	emptyDir, err := repository.Gate().NativeHooksDir()
	require.NoError(t, err)
	require.NoError(t, repository.Close())
	_, err = os.Stat(emptyDir)
	assert.True(t, os.IsNotExist(err))
}

func TestRepository_ReaderSurface(t *testing.T) {
	r := testutil.NewConflictRepo(t)
	_, err := r.GitMayFail("merge", "feature")
	require.Error(t, err)

	repository, err := Open(context.Background(), r.Dir, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })
	ctx := context.Background()

	assert.Equal(t, r.Dir, repository.WorkDir())
	assert.Equal(t, filepath.Join(r.Dir, ".git"), repository.GitDir())

	paths, err := repository.ConflictedPaths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"conflict.txt"}, paths)

	branch, err := repository.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	feature, err := repository.ResolveRef(ctx, "feature")
	require.NoError(t, err)
	assert.Equal(t, r.Git("rev-parse", "feature"), feature)

	assert.Equal(t, opstate.Merging, repository.OperationState().Kind)
}

func TestRepository_Hints(t *testing.T) {
	r := testutil.NewRebaseRepo(t)
	_, err := r.GitMayFail("rebase", "main")
	require.Error(t, err)

	repository, err := Open(context.Background(), r.Dir, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })

	repository.SetHints(opstate.Hints{OntoName: "main"})
	st := repository.OperationState()
	require.Equal(t, opstate.Rebasing, st.Kind)
	assert.Equal(t, "main", st.Rebase.OntoName)
}

func TestRepository_OntoNameWithoutHints(t *testing.T) {
	r := testutil.NewRebaseRepo(t)
	_, err := r.GitMayFail("rebase", "main")
	require.Error(t, err)

	repository, err := Open(context.Background(), r.Dir, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })

	st := repository.OperationState()
	require.Equal(t, opstate.Rebasing, st.Kind)
	assert.Equal(t, r.Git("rev-parse", "main"), st.Rebase.Onto)
	assert.Equal(t, "main", st.Rebase.OntoName)
}
