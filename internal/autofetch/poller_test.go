package autofetch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/keel/internal/engine"
	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/progress"
	"github.com/mrz1836/keel/internal/remote"
	"github.com/mrz1836/keel/internal/repo"
	"github.com/mrz1836/keel/internal/testutil"
)

type fakeSyncer struct {
	mu      sync.Mutex
	fetched []string
	fail    map[string]bool
}

func (f *fakeSyncer) Fetch(_ context.Context, c *repo.Coordinator, _ remote.FetchOptions) (*remote.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, c.Path())
	if f.fail[c.Path()] {
		return nil, fmt.Errorf("fetch %s: %w", c.Path(), keelerrors.ErrPushNetworkFailed)
	}
	return &remote.FetchResult{Remote: "origin"}, nil
}

func (f *fakeSyncer) Push(context.Context, *repo.Coordinator, remote.PushOptions) (*remote.PushResult, error) {
	return nil, keelerrors.ErrInvalidArgument
}

func (f *fakeSyncer) Pull(context.Context, *repo.Coordinator, remote.PullOptions) (*remote.PullResult, error) {
	return nil, keelerrors.ErrInvalidArgument
}

func (f *fakeSyncer) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.fetched...)
	sort.Strings(out)
	return out
}

func newCache(t *testing.T) *repo.Cache {
	t.Helper()
	cache := repo.NewCache(repo.NewOpener(repo.DefaultOptions()), zerolog.Nop())
	t.Cleanup(func() { _ = cache.Close(context.Background()) })
	return cache
}

func newCommitted(t *testing.T) string {
	t.Helper()
	r := testutil.NewRepo(t)
	r.CommitFile("a.txt", "a\n", "initial")
	return r.Dir
}

func openActive(t *testing.T, cache *repo.Cache, dir string, active bool) string {
	t.Helper()
	coord, err := cache.GetOrOpen(context.Background(), dir)
	require.NoError(t, err)
	require.True(t, cache.SetActive(context.Background(), dir, active))
	return coord.Path()
}

func TestPoller_FetchAllOnlyActive(t *testing.T) {
	cache := newCache(t)
	a := openActive(t, cache, newCommitted(t), true)
	b := openActive(t, cache, newCommitted(t), true)
	openActive(t, cache, newCommitted(t), false)

	syncer := &fakeSyncer{}
	round := New(cache, syncer).FetchAll(context.Background())

	assert.Equal(t, Round{Fetched: 2}, round)
	want := []string{a, b}
	sort.Strings(want)
	assert.Equal(t, want, syncer.calls())
}

func TestPoller_FailureDoesNotStopOthers(t *testing.T) {
	cache := newCache(t)
	a := openActive(t, cache, newCommitted(t), true)
	openActive(t, cache, newCommitted(t), true)
	openActive(t, cache, newCommitted(t), true)

	syncer := &fakeSyncer{fail: map[string]bool{a: true}}
	round := New(cache, syncer, WithConcurrency(1)).FetchAll(context.Background())

	assert.Equal(t, Round{Fetched: 2, Failed: 1}, round)
	assert.Len(t, syncer.calls(), 3)
}

func TestPoller_NothingActive(t *testing.T) {
	cache := newCache(t)
	openActive(t, cache, newCommitted(t), false)

	syncer := &fakeSyncer{}
	assert.Equal(t, Round{}, New(cache, syncer).FetchAll(context.Background()))
	assert.Empty(t, syncer.calls())
}

func TestPoller_CanceledContextSkipsRound(t *testing.T) {
	cache := newCache(t)
	openActive(t, cache, newCommitted(t), true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	syncer := &fakeSyncer{}
	assert.Equal(t, Round{}, New(cache, syncer).FetchAll(ctx))
	assert.Empty(t, syncer.calls())
}

func TestPoller_RunTicksUntilCanceled(t *testing.T) {
	cache := newCache(t)
	openActive(t, cache, newCommitted(t), true)

	syncer := &fakeSyncer{}
	p := New(cache, syncer, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(syncer.calls()) >= 3
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPoller_RealFetchUpdatesTrackingRef(t *testing.T) {
	local := testutil.NewRepo(t)
	local.CommitFile("a.txt", "a\n", "initial")
	url := local.AddBareRemote("origin")

	other := testutil.Clone(t, url)
	tip := other.CommitFile("b.txt", "b\n", "upstream work")
	other.Git("push", "-q", "origin", "main")

	cache := newCache(t)
	openActive(t, cache, local.Dir, true)

	eng := engine.New()
	syncer := remote.NewService(eng, progress.NewEmitter(progress.NewRegistry(), nil))

	round := New(cache, syncer).FetchAll(context.Background())
	assert.Equal(t, Round{Fetched: 1}, round)
	assert.Equal(t, tip, local.Git("rev-parse", "origin/main"))
}
