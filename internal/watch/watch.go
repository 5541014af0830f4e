// Package watch notices operation-state changes made outside keel, such as a
// merge started or aborted from the user's terminal.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/mrz1836/keel/internal/constants"
	"github.com/mrz1836/keel/internal/opstate"
	"github.com/mrz1836/keel/internal/repo"
)

// stateDirs are control directories that hold sentinel files of their own.
//
//nolint:gochecknoglobals // fixed directory names
var stateDirs = []string{"rebase-merge", "rebase-apply", "sequencer"}

// Listener receives the new operation state after a change.
type Listener func(opstate.State)

// Watcher re-detects the operation state whenever the control directory
// changes and reports transitions to its listener.
type Watcher struct {
	coord    *repo.Coordinator
	listener Listener
	debounce time.Duration
	logger   zerolog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the directory must stay quiet before the state
// is re-detected.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New returns a Watcher for the repository guarded by coord.
func New(coord *repo.Coordinator, listener Listener, opts ...Option) *Watcher {
	w := &Watcher{
		coord:    coord,
		listener: listener,
		debounce: constants.DefaultWatchDebounce,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx ends. The listener is called from Run's goroutine
// only when the detected state differs from the previous one.
func (w *Watcher) Run(ctx context.Context) error {
	gitDir, last, err := w.detect(ctx)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() {
		if cerr := fsw.Close(); cerr != nil {
			w.logger.Warn().Err(cerr).Msg("watcher close")
		}
	}()

	if err := fsw.Add(gitDir); err != nil {
		return fmt.Errorf("watch %s: %w", gitDir, err)
	}
	w.addStateDirs(fsw, gitDir)
	w.logger.Debug().Str("git_dir", gitDir).Str("state", string(last.Kind)).Msg("watching control directory")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ignored(ev) {
				continue
			}
			if ev.Has(fsnotify.Create) && isStateDir(gitDir, ev.Name) {
				w.add(fsw, ev.Name)
			}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("fsnotify error")

		case <-timer.C:
			_, st, err := w.detect(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Warn().Err(err).Msg("state detection failed")
				continue
			}
			w.addStateDirs(fsw, gitDir)
			if st.Equal(last) {
				continue
			}
			w.logger.Debug().Str("from", string(last.Kind)).Str("to", string(st.Kind)).Msg("operation state changed")
			last = st
			w.listener(st)
		}
	}
}

func (w *Watcher) detect(ctx context.Context) (string, opstate.State, error) {
	var gitDir string
	st, err := repo.WithRead(ctx, w.coord, func(rd repo.Reader) (opstate.State, error) {
		gitDir = rd.GitDir()
		return rd.OperationState(), nil
	})
	return gitDir, st, err
}

func (w *Watcher) addStateDirs(fsw *fsnotify.Watcher, gitDir string) {
	for _, name := range stateDirs {
		dir := filepath.Join(gitDir, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			w.add(fsw, dir)
		}
	}
}

func (w *Watcher) add(fsw *fsnotify.Watcher, dir string) {
	if err := fsw.Add(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Debug().Err(err).Str("dir", dir).Msg("cannot watch state directory")
	}
}

func isStateDir(gitDir, name string) bool {
	if filepath.Dir(name) != filepath.Clean(gitDir) {
		return false
	}
	base := filepath.Base(name)
	for _, dir := range stateDirs {
		if base == dir {
			return true
		}
	}
	return false
}

// ignored filters lock-file churn and attribute-only changes.
func ignored(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return true
	}
	return strings.HasSuffix(ev.Name, ".lock")
}
