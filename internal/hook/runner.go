package hook

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/mrz1836/keel/internal/constants"
)

// Runner executes a hook script. The gate talks to scripts only through this
// interface so tests can inject fakes.
type Runner interface {
	Run(ctx context.Context, workDir, script string, args []string, stdin string) (stdout, stderr string, exitCode int, err error)
}

// ExecRunner runs hook scripts as subprocesses. Scripts are user-owned and
// trusted the same way git trusts them.
type ExecRunner struct {
	// Env is appended to the inherited environment.
	Env []string
}

// Run executes script with args in workDir, feeding stdin. A non-zero exit
// is reported through exitCode with a nil error. err is set only when the
// script could not be started or the context ended.
func (r *ExecRunner) Run(ctx context.Context, workDir, script string, args []string, stdin string) (stdout, stderr string, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, script, args...) //#nosec G204 -- hook scripts are configured by the repository owner
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.WaitDelay = constants.ProcessTerminationTimeout
	cmd.Stdin = strings.NewReader(stdin)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	if runErr == nil {
		return stdout, stderr, 0, nil
	}
	if ctx.Err() != nil {
		return stdout, stderr, -1, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return stdout, stderr, exitErr.ExitCode(), nil
	}
	return stdout, stderr, -1, runErr
}

var _ Runner = (*ExecRunner)(nil)
