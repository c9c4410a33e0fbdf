package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// Result captures the outcome of one external command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external commands. It exists so the systemd and container
// backends can be exercised in tests without touching the host.
type Runner interface {
	// Run executes name with args. A command that ran but exited non-zero returns
	// its Result together with an error wrapping *exec.ExitError.
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and captures stdout and stderr.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	res := Result{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
		// Include stderr in the error message for better diagnostics
		return res, fmt.Errorf("failed to execute '%s %s': %w. Stderr: %s", name, strings.Join(args, " "), runErr, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// SplitCommand splits an operator-supplied command line into words using shell
// quoting rules. Empty lines are rejected.
func SplitCommand(line string) ([]string, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command %q: %w", line, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return words, nil
}

// RunCommandLine splits line and runs it with runner.
func RunCommandLine(ctx context.Context, runner Runner, line string, extraArgs ...string) (Result, error) {
	words, err := SplitCommand(line)
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	words = append(words, extraArgs...)
	return runner.Run(ctx, words[0], words[1:]...)
}
