package testutil

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Repo is a throwaway git repository rooted in a test temp dir.
type Repo struct {
	t   *testing.T
	Dir string
}

// NewRepo initializes an empty repository on branch main with a test
// identity and signing disabled.
func NewRepo(t *testing.T) *Repo {
	t.Helper()

	dir := t.TempDir()
	// macOS temp dirs live behind a symlink; git reports the resolved path.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	r := &Repo{t: t, Dir: dir}
	r.Git("init", "-b", "main")
	r.Git("config", "user.email", "test@keel.local")
	r.Git("config", "user.name", "Keel Test")
	r.Git("config", "commit.gpgsign", "false")
	r.Git("config", "core.autocrlf", "false")
	return r
}

// Git runs git in the repository and fails the test on a non-zero exit.
// It returns trimmed stdout.
func (r *Repo) Git(args ...string) string {
	r.t.Helper()
	out, stderr, err := r.run(args...)
	require.NoError(r.t, err, "git %s: %s", strings.Join(args, " "), stderr)
	return out
}

// GitMayFail runs git and returns combined output and the exit error.
func (r *Repo) GitMayFail(args ...string) (string, error) {
	r.t.Helper()
	out, stderr, err := r.run(args...)
	return strings.TrimSpace(out + "\n" + stderr), err
}

func (r *Repo) run(args ...string) (string, string, error) {
	cmd := exec.CommandContext(context.Background(), "git", args...) //#nosec G204 -- test code with safe inputs
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), "LC_ALL=C", "GIT_EDITOR=true", "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stdout.String()), stderr.String(), err
}

// Path returns the absolute path of name inside the work tree.
func (r *Repo) Path(name string) string {
	return filepath.Join(r.Dir, name)
}

// GitDir returns the absolute .git directory.
func (r *Repo) GitDir() string {
	return filepath.Join(r.Dir, ".git")
}

// WriteFile writes content to name, creating parent directories.
func (r *Repo) WriteFile(name, content string) {
	r.t.Helper()
	path := r.Path(name)
	require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(r.t, os.WriteFile(path, []byte(content), 0o600))
}

// ReadFile returns the content of name.
func (r *Repo) ReadFile(name string) string {
	r.t.Helper()
	data, err := os.ReadFile(r.Path(name)) //#nosec G304 -- test fixture path
	require.NoError(r.t, err)
	return string(data)
}

// Commit stages everything and commits it, returning the new HEAD.
func (r *Repo) Commit(msg string) string {
	r.t.Helper()
	r.Git("add", "-A")
	r.Git("commit", "-m", msg)
	return r.Head()
}

// CommitFile writes a single file and commits it.
func (r *Repo) CommitFile(name, content, msg string) string {
	r.t.Helper()
	r.WriteFile(name, content)
	return r.Commit(msg)
}

// Head returns the full hash of HEAD.
func (r *Repo) Head() string {
	r.t.Helper()
	return r.Git("rev-parse", "HEAD")
}

// Branch returns the checked-out branch name, or "HEAD" when detached.
func (r *Repo) Branch() string {
	r.t.Helper()
	return r.Git("rev-parse", "--abbrev-ref", "HEAD")
}

// WriteHook installs an executable shell hook.
func (r *Repo) WriteHook(name, body string) {
	r.t.Helper()
	dir := filepath.Join(r.GitDir(), "hooks")
	require.NoError(r.t, os.MkdirAll(dir, 0o750))
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(r.t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0o700)) //#nosec G306 -- hooks must be executable
}

// Unmerged lists paths with unmerged index entries.
func (r *Repo) Unmerged() []string {
	r.t.Helper()
	out := r.Git("diff", "--name-only", "--diff-filter=U")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// NewConflictRepo builds the canonical two-branch conflict: conflict.txt is
// "base" on the root commit, "ours" on main and "theirs" on feature. The
// repository is left on main with a clean tree.
func NewConflictRepo(t *testing.T) *Repo {
	t.Helper()
	r := NewRepo(t)
	r.CommitFile("conflict.txt", "base\n", "base")
	r.Git("checkout", "-q", "-b", "feature")
	r.CommitFile("conflict.txt", "theirs\n", "theirs")
	r.Git("checkout", "-q", "main")
	r.CommitFile("conflict.txt", "ours\n", "ours")
	return r
}

// NewRebaseRepo builds a three-commit topic branch over main where only the
// second topic commit conflicts with main. The repository is left on topic.
func NewRebaseRepo(t *testing.T) *Repo {
	t.Helper()
	r := NewRepo(t)
	r.CommitFile("shared.txt", "base\n", "base")
	r.Git("checkout", "-q", "-b", "topic")
	r.CommitFile("one.txt", "one\n", "topic one")
	r.CommitFile("shared.txt", "topic\n", "topic two")
	r.CommitFile("three.txt", "three\n", "topic three")
	r.Git("checkout", "-q", "main")
	r.CommitFile("shared.txt", "main\n", "main change")
	r.Git("checkout", "-q", "topic")
	return r
}

// AddBareRemote creates a bare repository, registers it as remote name and
// pushes main to it. It returns the bare repository path.
func (r *Repo) AddBareRemote(name string) string {
	r.t.Helper()
	bare := filepath.Join(r.t.TempDir(), name+".git")
	r.Git("init", "-q", "--bare", "-b", "main", bare)
	r.Git("remote", "add", name, bare)
	r.Git("push", "-q", "-u", name, "main")
	return bare
}

// Clone clones url into a new temp dir with the test identity.
func Clone(t *testing.T, url string) *Repo {
	t.Helper()
	dir := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	parent := &Repo{t: t, Dir: dir}
	parent.Git("clone", "-q", url, "work")

	r := &Repo{t: t, Dir: filepath.Join(dir, "work")}
	r.Git("config", "user.email", "test@keel.local")
	r.Git("config", "user.name", "Keel Test")
	r.Git("config", "commit.gpgsign", "false")
	return r
}
