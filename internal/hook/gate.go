// Package hook runs the repository's user-supplied git hooks on behalf of
// keel's operations.
//
// Git itself is always invoked with native hooks disabled, so the Gate is the
// single place hooks run. A small set of hooks may veto the operation they
// guard; every other hook is informational and its failure is only logged.
package hook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/mrz1836/keel/internal/clock"
	"github.com/mrz1836/keel/internal/constants"
	keelerrors "github.com/mrz1836/keel/internal/errors"
	"github.com/mrz1836/keel/internal/git"
)

// Type is a git hook name.
type Type string

// Hooks the gate knows how to wire.
const (
	PreCommit        Type = constants.HookPreCommit
	PrepareCommitMsg Type = constants.HookPrepareCommitMsg
	CommitMsg        Type = constants.HookCommitMsg
	PrePush          Type = constants.HookPrePush
	PreRebase        Type = constants.HookPreRebase
	PostMerge        Type = constants.HookPostMerge
	PostCheckout     Type = constants.HookPostCheckout
	PostRewrite      Type = constants.HookPostRewrite
	PostCommit       Type = constants.HookPostCommit
)

// CanVeto reports whether a failing run of this hook blocks the operation.
func (t Type) CanVeto() bool {
	switch t {
	case PreCommit, PrepareCommitMsg, CommitMsg, PrePush, PreRebase:
		return true
	}
	return false
}

// Result is the outcome of one hook invocation. Skipped hooks (disabled, not
// installed or not executable) count as successful.
type Result struct {
	Type     Type          `json:"type"`
	Success  bool          `json:"success"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Skipped  bool          `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Output returns stderr and stdout joined, as git shows them to the user.
func (r *Result) Output() string {
	return strings.TrimSpace(strings.TrimSpace(r.Stderr) + "\n" + strings.TrimSpace(r.Stdout))
}

// RejectedError reports a veto.
type RejectedError struct {
	Hook     Type
	ExitCode int
	Output   string
}

func (e *RejectedError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s hook rejected the operation (exit %d)", e.Hook, e.ExitCode)
	}
	return fmt.Sprintf("%s hook rejected the operation (exit %d): %s", e.Hook, e.ExitCode, e.Output)
}

// Unwrap lets errors.Is match ErrHookRejected.
func (e *RejectedError) Unwrap() error {
	return keelerrors.ErrHookRejected
}

// Gate runs hooks from a repository's hooks directory.
type Gate struct {
	workDir  string
	hooksDir string
	enabled  bool
	timeout  time.Duration
	runner   Runner
	clock    clock.Clock
	logger   zerolog.Logger

	mu       sync.Mutex
	emptyDir string
}

// Option configures a Gate.
type Option func(*Gate)

// WithEnabled turns hook execution on or off. Disabled gates skip every hook.
func WithEnabled(enabled bool) Option {
	return func(g *Gate) {
		g.enabled = enabled
	}
}

// WithTimeout bounds each hook run. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		g.timeout = d
	}
}

// WithRunner replaces the script runner.
func WithRunner(r Runner) Option {
	return func(g *Gate) {
		g.runner = r
	}
}

// WithHooksDir uses dir instead of asking git for the hooks directory.
func WithHooksDir(dir string) Option {
	return func(g *Gate) {
		g.hooksDir = dir
	}
}

// WithClock sets the clock used to time hook runs.
func WithClock(c clock.Clock) Option {
	return func(g *Gate) {
		g.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate returns a Gate for the working tree at workDir. Unless WithHooksDir
// is given, the hooks directory is resolved through git so core.hooksPath and
// linked worktrees are honored.
func NewGate(ctx context.Context, workDir string, opts ...Option) (*Gate, error) {
	g := &Gate{
		workDir: workDir,
		enabled: true,
		timeout: constants.DefaultHookTimeout,
		runner:  &ExecRunner{},
		clock:   clock.RealClock{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.hooksDir == "" {
		dir, err := git.ResolveHooksDir(ctx, workDir)
		if err != nil {
			return nil, fmt.Errorf("resolve hooks dir: %w", err)
		}
		g.hooksDir = dir
	}
	return g, nil
}

// HooksDir returns the directory hooks are read from.
func (g *Gate) HooksDir() string {
	return g.hooksDir
}

// Enabled reports whether hooks run at all.
func (g *Gate) Enabled() bool {
	return g.enabled
}

// NativeHooksDir returns an empty directory owned by the gate. Git is pointed
// at it through core.hooksPath so it never runs hooks on its own.
func (g *Gate) NativeHooksDir() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.emptyDir != "" {
		return g.emptyDir, nil
	}
	dir, err := os.MkdirTemp("", "keel-nohooks-")
	if err != nil {
		return "", fmt.Errorf("create empty hooks dir: %w", err)
	}
	g.emptyDir = dir
	return dir, nil
}

// Close removes the gate's empty hooks directory.
func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.emptyDir == "" {
		return nil
	}
	err := os.RemoveAll(g.emptyDir)
	g.emptyDir = ""
	return err
}

// Run executes hookType synchronously in the work tree and waits for it.
//
// Failures of informational hooks are logged at warn level. The returned
// error is non-nil only when ctx ends while the hook runs; a failing hook is
// described by the Result.
func (g *Gate) Run(ctx context.Context, hookType Type, args []string, stdin string) (*Result, error) {
	script, ok := g.lookup(hookType)
	if !ok {
		return &Result{Type: hookType, Success: true, Skipped: true}, nil
	}

	runCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := g.clock.Now()
	g.logger.Debug().Str("hook", string(hookType)).Strs("args", args).Msg("running hook")

	stdout, stderr, exitCode, err := g.runner.Run(runCtx, g.workDir, script, args, stdin)

	res := &Result{
		Type:     hookType,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: g.clock.Now().Sub(start),
	}

	switch {
	case ctx.Err() != nil:
		return res, ctx.Err()
	case runCtx.Err() != nil:
		res.ExitCode = -1
		res.Stderr = strings.TrimSpace(res.Stderr + "\n" + fmt.Sprintf("hook timed out after %s", g.timeout))
	case err != nil:
		res.ExitCode = -1
		res.Stderr = strings.TrimSpace(res.Stderr + "\n" + err.Error())
	}
	res.Success = res.ExitCode == 0

	if !res.Success {
		event := g.logger.Warn()
		if hookType.CanVeto() {
			event = g.logger.Info()
		}
		event.Str("hook", string(hookType)).
			Int("exit_code", res.ExitCode).
			Dur("duration", res.Duration).
			Str("output", truncate(res.Output())).
			Msg("hook failed")
	}

	return res, nil
}

// Check runs a hook and converts a vetoing failure into *RejectedError.
// Failures of informational hooks never produce an error.
func (g *Gate) Check(ctx context.Context, hookType Type, args []string, stdin string) error {
	res, err := g.Run(ctx, hookType, args, stdin)
	if err != nil {
		return err
	}
	if res.Success || !hookType.CanVeto() {
		return nil
	}
	return &RejectedError{Hook: hookType, ExitCode: res.ExitCode, Output: truncate(res.Output())}
}

// Notify runs an informational hook. Its outcome, including a canceled
// context, is only logged.
func (g *Gate) Notify(ctx context.Context, hookType Type, args ...string) {
	if _, err := g.Run(ctx, hookType, args, ""); err != nil {
		g.logger.Warn().Err(err).Str("hook", string(hookType)).Msg("hook interrupted")
	}
}

// lookup returns the script path when the hook is enabled, installed and
// executable.
func (g *Gate) lookup(hookType Type) (string, bool) {
	if !g.enabled {
		return "", false
	}
	path := filepath.Join(g.hooksDir, string(hookType))
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
		return "", false
	}
	return path, true
}

// truncate caps s at MaxHookOutputLength bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= constants.MaxHookOutputLength {
		return s
	}
	cut := constants.MaxHookOutputLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[output truncated]"
}
