package repo

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/git"
	"github.com/mrz1836/keel/internal/opstate"
)

// maxReaders is the semaphore capacity. A reader takes one unit and a writer
// takes all of them.
const maxReaders int64 = 1 << 30

// Coordinator arbitrates access to one repository. Any number of read guards
// may be held at once; a write guard excludes every other guard. Waiters are
// served in arrival order, so a waiting writer holds back readers that
// arrive after it.
type Coordinator struct {
	sem    *semaphore.Weighted
	repo   *Repository
	view   Reader
	closed atomic.Bool
}

// NewCoordinator takes ownership of repo.
func NewCoordinator(repo *Repository) *Coordinator {
	return &Coordinator{
		sem:  semaphore.NewWeighted(maxReaders),
		repo: repo,
		view: readView{r: repo},
	}
}

// Path returns the canonical working tree the coordinator guards.
func (c *Coordinator) Path() string {
	return c.repo.WorkDir()
}

// Read waits for shared access. It fails only when ctx ends first or the
// coordinator has been closed.
func (c *Coordinator) Read(ctx context.Context) (*ReadGuard, error) {
	if err := c.acquire(ctx, 1); err != nil {
		return nil, err
	}
	g := &ReadGuard{view: c.view}
	g.release = func() { c.sem.Release(1) }
	return g, nil
}

// Write waits for exclusive access. It fails only when ctx ends first or the
// coordinator has been closed.
func (c *Coordinator) Write(ctx context.Context) (*WriteGuard, error) {
	if err := c.acquire(ctx, maxReaders); err != nil {
		return nil, err
	}
	g := &WriteGuard{repo: c.repo}
	g.release = func() { c.sem.Release(maxReaders) }
	return g, nil
}

func (c *Coordinator) acquire(ctx context.Context, n int64) error {
	if c.closed.Load() {
		return keelerrors.ErrCacheClosed
	}
	if err := c.sem.Acquire(ctx, n); err != nil {
		return err
	}
	if c.closed.Load() {
		c.sem.Release(n)
		return keelerrors.ErrCacheClosed
	}
	return nil
}

// Close waits for every outstanding guard, then closes the repository. Later
// acquisitions fail with ErrCacheClosed.
func (c *Coordinator) Close(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, maxReaders); err != nil {
		return err
	}
	defer c.sem.Release(maxReaders)

	if c.closed.Swap(true) {
		return nil
	}
	return c.repo.Close()
}

// ReadGuard grants shared, read-only access until Release.
type ReadGuard struct {
	view    Reader
	once    sync.Once
	release func()
}

// Reader returns the read-only repository view.
func (g *ReadGuard) Reader() Reader {
	return g.view
}

// Release gives the access back. Extra calls are no-ops.
func (g *ReadGuard) Release() {
	g.once.Do(g.release)
}

// WriteGuard grants exclusive access until Release.
type WriteGuard struct {
	repo    *Repository
	once    sync.Once
	release func()
}

// Repository returns the full repository surface.
func (g *WriteGuard) Repository() *Repository {
	return g.repo
}

// Release gives the access back. Extra calls are no-ops.
func (g *WriteGuard) Release() {
	g.once.Do(g.release)
}

// WithRead runs fn under a read guard released when fn returns or panics.
func WithRead[T any](ctx context.Context, c *Coordinator, fn func(Reader) (T, error)) (T, error) {
	g, err := c.Read(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	defer g.Release()
	return fn(g.Reader())
}

// WithWrite runs fn under a write guard released when fn returns or panics.
func WithWrite[T any](ctx context.Context, c *Coordinator, fn func(*Repository) (T, error)) (T, error) {
	g, err := c.Write(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	defer g.Release()
	return fn(g.Repository())
}

// readView hides the mutating surface of Repository behind Reader.
type readView struct {
	r *Repository
}

func (v readView) ConflictedPaths(ctx context.Context) ([]string, error) {
	return v.r.ConflictedPaths(ctx)
}

func (v readView) UnmergedEntries(ctx context.Context) ([]git.UnmergedEntry, error) {
	return v.r.UnmergedEntries(ctx)
}

func (v readView) ThreeWay(ctx context.Context, path string) (*git.ThreeWay, error) {
	return v.r.ThreeWay(ctx, path)
}

func (v readView) CurrentBranch() (string, error) { return v.r.CurrentBranch() }

func (v readView) HeadHash() (string, error) { return v.r.HeadHash() }

func (v readView) ResolveRef(ctx context.Context, rev string) (string, error) {
	return v.r.ResolveRef(ctx, rev)
}

func (v readView) OperationState() opstate.State { return v.r.OperationState() }

func (v readView) GitDir() string { return v.r.GitDir() }

func (v readView) WorkDir() string { return v.r.WorkDir() }
