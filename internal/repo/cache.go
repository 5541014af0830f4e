package repo

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/git"
)

// Opener opens the repository whose canonical working tree is workDir.
type Opener func(ctx context.Context, workDir string) (*Repository, error)

// NewOpener returns an Opener using opts.
func NewOpener(opts Options) Opener {
	return func(ctx context.Context, workDir string) (*Repository, error) {
		return Open(ctx, workDir, opts)
	}
}

type cacheEntry struct {
	coord  *Coordinator
	active bool
}

// Cache maps canonical working tree paths to coordinators. Its own mutex
// guards only the map; it is never held while a repository lock is.
type Cache struct {
	open   Opener
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
	closed  bool
}

// NewCache returns an empty cache that opens repositories with open.
func NewCache(open Opener, logger zerolog.Logger) *Cache {
	return &Cache{
		open:    open,
		logger:  logger,
		entries: make(map[string]*cacheEntry),
	}
}

// GetOrOpen returns the coordinator for the repository containing path,
// opening it on first use. Every spelling of one checkout yields the same
// coordinator.
func (c *Cache) GetOrOpen(ctx context.Context, path string) (*Coordinator, error) {
	key, err := c.canonical(ctx, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, keelerrors.ErrCacheClosed
	}
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return e.coord, nil
	}
	c.mu.Unlock()

	// Opening spawns git; do it outside the map lock and re-check after.
	r, err := c.open(ctx, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		_ = r.Close()
		return nil, keelerrors.ErrCacheClosed
	}
	if e, ok := c.entries[key]; ok {
		_ = r.Close()
		return e.coord, nil
	}

	coord := NewCoordinator(r)
	c.entries[key] = &cacheEntry{coord: coord}
	c.logger.Debug().Str("repo", key).Msg("repository opened")
	return coord, nil
}

// Lookup returns the cached coordinator for path without opening anything.
func (c *Cache) Lookup(ctx context.Context, path string) (*Coordinator, bool) {
	key, err := c.canonical(ctx, path)
	if err != nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.coord, true
}

// SetActive marks a cached repository as active or inactive for background
// fetching. It returns false when the repository is not cached.
func (c *Cache) SetActive(ctx context.Context, path string, active bool) bool {
	key, err := c.canonical(ctx, path)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	e.active = active
	return true
}

// ActivePaths lists the active repositories, sorted.
func (c *Cache) ActivePaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var paths []string
	for key, e := range c.entries {
		if e.active {
			paths = append(paths, key)
		}
	}
	sort.Strings(paths)
	return paths
}

// Paths lists every cached repository, sorted.
func (c *Cache) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	paths := make([]string, 0, len(c.entries))
	for key := range c.entries {
		paths = append(paths, key)
	}
	sort.Strings(paths)
	return paths
}

// Remove evicts the repository so the next GetOrOpen yields a fresh
// coordinator. The evicted coordinator closes once its outstanding guards
// are released. Removing an unknown path is a no-op.
func (c *Cache) Remove(ctx context.Context, path string) error {
	key, err := c.canonical(ctx, path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	e, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	c.logger.Debug().Str("repo", key).Msg("repository evicted")
	// The entry is already gone from the map, so nothing else can close it.
	return e.coord.Close(context.WithoutCancel(ctx))
}

// Close evicts every repository. Later GetOrOpen calls fail with ErrCacheClosed.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*cacheEntry)
	c.closed = true
	c.mu.Unlock()

	var firstErr error
	for _, e := range entries {
		if err := e.coord.Close(context.WithoutCancel(ctx)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// canonical maps path to its cache key. A path that is already a key skips
// the git round trip.
func (c *Cache) canonical(ctx context.Context, path string) (string, error) {
	if abs, err := filepath.Abs(path); err == nil {
		c.mu.Lock()
		_, ok := c.entries[abs]
		c.mu.Unlock()
		if ok {
			return abs, nil
		}
	}
	info, err := git.Discover(ctx, path)
	if err != nil {
		return "", err
	}
	return info.WorkDir, nil
}
