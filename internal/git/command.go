// Package git runs the git executable and reads repository data for keel.
//
// Two styles of execution live here. RunCommand is for queries whose failure
// is an error. Executor.Run is for mutating operations whose non-zero exit is
// data to be classified (a conflict is not a failure of the call).
package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrz1836/keel/internal/constants"
	keelerrors "github.com/mrz1836/keel/internal/errors"
)

// RunCommand executes a git query in workDir and returns trimmed stdout.
// A non-zero exit is wrapped with ErrGitOperation and includes stderr.
func RunCommand(ctx context.Context, workDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, constants.DefaultGitBinary, args...) //#nosec G204 -- args are constructed internally
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "LC_ALL=C", "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if stderr.Len() > 0 {
			return "", fmt.Errorf("git %s failed: %s: %w", args[0], strings.TrimSpace(stderr.String()), keelerrors.ErrGitOperation)
		}
		return "", fmt.Errorf("git %s failed: %w", args[0], keelerrors.ErrGitOperation)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Result is the captured outcome of a git subprocess.
type Result struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports a zero exit status.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Combined returns stdout followed by stderr. Conflict markers may appear on
// either stream depending on the git version and command, so classifiers
// read both.
func (r *Result) Combined() string {
	switch {
	case r.Stdout == "":
		return r.Stderr
	case r.Stderr == "":
		return r.Stdout
	}
	return r.Stdout + "\n" + r.Stderr
}

// RunOptions tunes a single Executor.Run call.
type RunOptions struct {
	// Env is appended to the inherited environment.
	Env []string

	// Stdin is fed to the process.
	Stdin io.Reader

	// OnProgress receives every stderr line as git emits it, split on
	// carriage returns as well as newlines. Returning false stops the process
	// and the call returns ErrOperationCanceled.
	OnProgress func(line string) bool
}

// Executor runs git subprocesses inside one working tree.
type Executor struct {
	binary   string
	workDir  string
	hooksDir string
	logger   zerolog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithBinary sets the git executable.
func WithBinary(binary string) ExecutorOption {
	return func(e *Executor) {
		if binary != "" {
			e.binary = binary
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithHooksPath points git's core.hooksPath at dir for every invocation, so
// git itself never runs the repository's hooks. The hook gate runs them instead.
func WithHooksPath(dir string) ExecutorOption {
	return func(e *Executor) {
		e.hooksDir = dir
	}
}

// NewExecutor returns an Executor for workDir.
func NewExecutor(workDir string, opts ...ExecutorOption) *Executor {
	e := &Executor{
		binary:  constants.DefaultGitBinary,
		workDir: workDir,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WorkDir returns the working tree the executor runs in.
func (e *Executor) WorkDir() string {
	return e.workDir
}

// Run executes git with args. A non-zero exit is reported in Result, not as
// an error. Errors are reserved for failing to start git, for context
// cancellation and for OnProgress cancellation.
func (e *Executor) Run(ctx context.Context, args ...string) (*Result, error) {
	return e.RunWith(ctx, RunOptions{}, args...)
}

// RunWith executes git with args and per-call options.
func (e *Executor) RunWith(ctx context.Context, opts RunOptions, args ...string) (*Result, error) {
	fullArgs := args
	if e.hooksDir != "" {
		fullArgs = append([]string{"-c", "core.hooksPath=" + e.hooksDir}, args...)
	}

	cmd := exec.Command(e.binary, fullArgs...) //#nosec G204 -- args are constructed internally
	cmd.Dir = e.workDir
	cmd.Env = append(os.Environ(), "LC_ALL=C", "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, opts.Env...)
	cmd.Stdin = opts.Stdin
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout

	var stderrPipe io.ReadCloser
	if opts.OnProgress != nil {
		var err error
		if stderrPipe, err = cmd.StderrPipe(); err != nil {
			return nil, fmt.Errorf("git %s: stderr pipe: %w", args[0], err)
		}
	} else {
		cmd.Stderr = &stderr
	}

	e.logger.Debug().Strs("args", args).Str("dir", e.workDir).Msg("running git")

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("git %s: start: %w", args[0], err)
	}

	var (
		stopOnce sync.Once
		canceled bool
	)
	stop := func() {
		stopOnce.Do(func() {
			canceled = true
			killProcessGroup(cmd)
		})
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	if stderrPipe != nil {
		scanProgress(stderrPipe, &stderr, func(line string) {
			if !opts.OnProgress(line) {
				stop()
			}
		})
	}

	waitErr := cmd.Wait()

	res := &Result{
		Args:   args,
		Stdout: strings.TrimRight(stdout.String(), "\n"),
		Stderr: strings.TrimRight(stderr.String(), "\n"),
	}

	// Seal stop so a cancellation arriving after exit cannot flip canceled.
	stopOnce.Do(func() {})
	if canceled {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, keelerrors.ErrOperationCanceled
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("git %s: %w", args[0], waitErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	e.logger.Debug().
		Strs("args", args).
		Int("exit_code", res.ExitCode).
		Msg("git finished")

	return res, nil
}

// Query runs git and returns trimmed stdout, treating a non-zero exit as an
// error wrapped with ErrGitOperation.
func (e *Executor) Query(ctx context.Context, args ...string) (string, error) {
	res, err := e.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	if !res.Success() {
		return "", &CommandError{Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return strings.TrimSpace(res.Stdout), nil
}

// CommandError reports a failed git query with its diagnostic text.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	name := ""
	if len(e.Args) > 0 {
		name = e.Args[0]
	}
	if e.Stderr == "" {
		return fmt.Sprintf("git %s exited %d", name, e.ExitCode)
	}
	return fmt.Sprintf("git %s exited %d: %s", name, e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Unwrap lets errors.Is match ErrGitOperation.
func (e *CommandError) Unwrap() error {
	return keelerrors.ErrGitOperation
}

// scanProgress copies r into sink while handing each \r or \n terminated
// line to fn.
func scanProgress(r io.Reader, sink *bytes.Buffer, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	scanner.Split(splitProgressLines)
	for scanner.Scan() {
		line := scanner.Text()
		sink.WriteString(line)
		sink.WriteByte('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			fn(trimmed)
		}
	}
	// Drain whatever is left so the child never blocks on a full pipe.
	_, _ = io.Copy(sink, r)
}

// splitProgressLines is a bufio.SplitFunc that treats '\r' like '\n'.
func splitProgressLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
