package remote

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/keel/internal/engine"
	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/hook"
	"github.com/mrz1836/keel/internal/opstate"
	"github.com/mrz1836/keel/internal/progress"
	"github.com/mrz1836/keel/internal/repo"
	"github.com/mrz1836/keel/internal/testutil"
)

type recordingSink struct {
	mu     sync.Mutex
	events []progress.Event
}

func (s *recordingSink) Send(ev progress.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) terminal() []progress.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stages []progress.Stage
	for _, ev := range s.events {
		if ev.Stage.Terminal() {
			stages = append(stages, ev.Stage)
		}
	}
	return stages
}

type fixture struct {
	svc      *Service
	sink     *recordingSink
	registry *progress.Registry
}

func newFixture() *fixture {
	sink := &recordingSink{}
	registry := progress.NewRegistry()
	return &fixture{
		svc:      NewService(engine.New(), progress.NewEmitter(registry, sink)),
		sink:     sink,
		registry: registry,
	}
}

func openCoordinator(t *testing.T, dir string) *repo.Coordinator {
	t.Helper()
	r, err := repo.Open(context.Background(), dir, repo.DefaultOptions())
	require.NoError(t, err)
	c := repo.NewCoordinator(r)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

// newUpstream returns a local repository with an origin remote and a second
// clone of that remote for making upstream changes.
func newUpstream(t *testing.T) (*testutil.Repo, *testutil.Repo) {
	t.Helper()
	local := testutil.NewRepo(t)
	local.CommitFile("shared.txt", "base\n", "base")
	bare := local.AddBareRemote("origin")
	return local, testutil.Clone(t, bare)
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	local, other := newUpstream(t)
	upstream := other.CommitFile("new.txt", "new\n", "upstream change")
	other.Git("push", "-q", "origin", "main")

	f := newFixture()
	res, err := f.svc.Fetch(ctx, openCoordinator(t, local.Dir), FetchOptions{OperationID: "fetch-1"})
	require.NoError(t, err)
	assert.Equal(t, "fetch-1", res.OperationID)
	assert.Equal(t, "origin", res.Remote)
	assert.Equal(t, upstream, local.Git("rev-parse", "origin/main"))

	assert.Equal(t, []progress.Stage{progress.StageComplete}, f.sink.terminal())
	_, ok := f.registry.Get("fetch-1")
	assert.False(t, ok, "operation is cleaned up")
}

func TestFetch_CanceledBeforeTransfer(t *testing.T) {
	ctx := context.Background()
	local, _ := newUpstream(t)

	f := newFixture()
	f.registry.Register("fetch-2").Cancel()

	_, err := f.svc.Fetch(ctx, openCoordinator(t, local.Dir), FetchOptions{OperationID: "fetch-2"})
	require.ErrorIs(t, err, keelerrors.ErrOperationCanceled)
	assert.Equal(t, []progress.Stage{progress.StageCancelled}, f.sink.terminal())
	assert.False(t, f.registry.Cancel("fetch-2"), "cleaned up ids cannot be canceled")
}

func TestFetch_UnknownRemote(t *testing.T) {
	ctx := context.Background()
	local, _ := newUpstream(t)
	local.Git("remote", "add", "gone", filepath.Join(t.TempDir(), "missing.git"))

	f := newFixture()
	_, err := f.svc.Fetch(ctx, openCoordinator(t, local.Dir), FetchOptions{Remote: "gone"})
	require.ErrorIs(t, err, keelerrors.ErrRemoteNotFound)
	assert.Equal(t, []progress.Stage{progress.StageFailed}, f.sink.terminal())
}

func TestPush(t *testing.T) {
	ctx := context.Background()
	local, _ := newUpstream(t)
	head := local.CommitFile("b.txt", "b\n", "local change")

	f := newFixture()
	res, err := f.svc.Push(ctx, openCoordinator(t, local.Dir), PushOptions{})
	require.NoError(t, err)
	assert.Equal(t, "main", res.Branch)
	assert.False(t, res.UpToDate)
	assert.Equal(t, head, local.Git("ls-remote", "origin", "refs/heads/main")[:40])

	res, err = f.svc.Push(ctx, openCoordinator(t, local.Dir), PushOptions{})
	require.NoError(t, err)
	assert.True(t, res.UpToDate)
}

func TestPush_PrePushHook(t *testing.T) {
	ctx := context.Background()
	local, _ := newUpstream(t)
	remoteBefore := local.Git("rev-parse", "origin/main")
	head := local.CommitFile("b.txt", "b\n", "local change")
	local.WriteHook("pre-push", "cat > .git/pre-push-stdin\necho \"blocked $1\" >&2\nexit 1")

	f := newFixture()
	_, err := f.svc.Push(ctx, openCoordinator(t, local.Dir), PushOptions{})
	var rejected *hook.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, hook.PrePush, rejected.Hook)
	assert.Contains(t, rejected.Output, "blocked origin")
	assert.Equal(t, []progress.Stage{progress.StageFailed}, f.sink.terminal())

	stdin, err := os.ReadFile(filepath.Join(local.GitDir(), "pre-push-stdin"))
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/main "+head+" refs/heads/main "+remoteBefore+"\n", string(stdin))
	assert.Equal(t, remoteBefore, local.Git("ls-remote", "origin", "refs/heads/main")[:40])
}

func TestPush_Rejected(t *testing.T) {
	ctx := context.Background()
	local, other := newUpstream(t)
	other.CommitFile("other.txt", "other\n", "upstream change")
	other.Git("push", "-q", "origin", "main")
	local.CommitFile("mine.txt", "mine\n", "local change")

	f := newFixture()
	_, err := f.svc.Push(ctx, openCoordinator(t, local.Dir), PushOptions{})
	require.ErrorIs(t, err, keelerrors.ErrPushRejected)
}

func TestPush_DetachedHead(t *testing.T) {
	ctx := context.Background()
	local, _ := newUpstream(t)
	local.Git("checkout", "-q", "--detach")

	f := newFixture()
	_, err := f.svc.Push(ctx, openCoordinator(t, local.Dir), PushOptions{})
	require.ErrorIs(t, err, keelerrors.ErrInvalidArgument)
}

func TestPull(t *testing.T) {
	ctx := context.Background()

	t.Run("fast forward", func(t *testing.T) {
		local, other := newUpstream(t)
		upstream := other.CommitFile("new.txt", "new\n", "upstream change")
		other.Git("push", "-q", "origin", "main")

		f := newFixture()
		res, err := f.svc.Pull(ctx, openCoordinator(t, local.Dir), PullOptions{Branch: "main"})
		require.NoError(t, err)
		require.NotNil(t, res.Merge)
		assert.True(t, res.Merge.Success)
		assert.Equal(t, engine.MergeFastForward, res.Merge.Kind)
		assert.Equal(t, upstream, local.Head())
		assert.Equal(t, []progress.Stage{progress.StageComplete}, f.sink.terminal())
	})

	t.Run("conflict leaves a merge in progress", func(t *testing.T) {
		local, other := newUpstream(t)
		other.CommitFile("shared.txt", "theirs\n", "upstream edit")
		other.Git("push", "-q", "origin", "main")
		local.CommitFile("shared.txt", "ours\n", "local edit")

		f := newFixture()
		c := openCoordinator(t, local.Dir)
		res, err := f.svc.Pull(ctx, c, PullOptions{Branch: "main"})
		require.NoError(t, err)
		assert.False(t, res.Merge.Success)
		require.Len(t, res.Merge.Conflicts, 1)
		assert.Equal(t, "shared.txt", res.Merge.Conflicts[0].Path)

		st, err := engine.New().OperationState(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, opstate.Merging, st.Kind)

		_, err = f.svc.Pull(ctx, c, PullOptions{Branch: "main"})
		require.ErrorIs(t, err, keelerrors.ErrOperationInProgress)
	})

	t.Run("defaults to the upstream branch", func(t *testing.T) {
		local, other := newUpstream(t)
		upstream := other.CommitFile("new.txt", "new\n", "upstream change")
		other.Git("push", "-q", "origin", "main")

		f := newFixture()
		res, err := f.svc.Pull(ctx, openCoordinator(t, local.Dir), PullOptions{})
		require.NoError(t, err)
		assert.True(t, res.Merge.Success)
		assert.Equal(t, upstream, local.Head())
	})
}

func TestPull_CanceledBeforeFetch(t *testing.T) {
	local, other := newUpstream(t)
	other.CommitFile("new.txt", "new\n", "upstream change")
	other.Git("push", "-q", "origin", "main")
	head := local.Head()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFixture()
	_, err := f.svc.Pull(ctx, openCoordinator(t, local.Dir), PullOptions{Branch: "main"})
	require.ErrorIs(t, err, keelerrors.ErrOperationCanceled)
	assert.Equal(t, head, local.Head())
	assert.Equal(t, []progress.Stage{progress.StageCancelled}, f.sink.terminal())
}

func TestPull_MergeOutlivesCancellation(t *testing.T) {
	local := testutil.NewRepo(t)
	local.WriteFile(".gitattributes", "shared.txt merge=slow\n")
	local.CommitFile("shared.txt", "base\n", "base")
	bare := local.AddBareRemote("origin")
	other := testutil.Clone(t, bare)
	other.CommitFile("shared.txt", "theirs\n", "upstream edit")
	other.Git("push", "-q", "origin", "main")
	local.CommitFile("shared.txt", "ours\n", "local edit")

	// The driver marks that the merge has started, then stalls and reports
	// a conflict.
	started := filepath.Join(t.TempDir(), "started")
	local.Git("config", "merge.slow.driver", "touch '"+started+"'; sleep 1; exit 1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture()
	c := openCoordinator(t, local.Dir)

	go func() {
		for {
			if _, err := os.Stat(started); err == nil {
				cancel()
				f.registry.Cancel("pull-1")
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}()

	res, err := f.svc.Pull(ctx, c, PullOptions{Branch: "main", OperationID: "pull-1"})
	require.NoError(t, err)
	require.FileExists(t, started)
	assert.False(t, res.Merge.Success)
	require.Len(t, res.Merge.Conflicts, 1)
	assert.Equal(t, "shared.txt", res.Merge.Conflicts[0].Path)

	assert.NoFileExists(t, filepath.Join(local.GitDir(), "index.lock"))
	assert.Equal(t, []string{"shared.txt"}, local.Unmerged())
	st, err := engine.New().OperationState(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, opstate.Merging, st.Kind)
	assert.Equal(t, []progress.Stage{progress.StageComplete}, f.sink.terminal())
}
