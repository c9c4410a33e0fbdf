// Package snapshot hands off to an external system-state snapshot tool after a
// boot run. bootctl never produces or compares snapshots itself.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"bootctl/internal/utils"
	"bootctl/pkg/logging"
)

const subsystem = "Snapshot"

// Taker captures a labelled snapshot of system state.
type Taker interface {
	Take(ctx context.Context, label string) error
}

// ExecTaker runs an operator-configured command with the label appended as the
// last argument.
type ExecTaker struct {
	runner  utils.Runner
	command string
	timeout time.Duration
}

// NewExecTaker returns an ExecTaker. A zero timeout means no limit beyond ctx.
func NewExecTaker(runner utils.Runner, command string, timeout time.Duration) *ExecTaker {
	return &ExecTaker{runner: runner, command: command, timeout: timeout}
}

// Take runs the snapshot command.
func (t *ExecTaker) Take(ctx context.Context, label string) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	started := time.Now()
	res, err := utils.RunCommandLine(ctx, t.runner, t.command, label)
	if err != nil {
		return fmt.Errorf("snapshot command failed (exit %d): %w", res.ExitCode, err)
	}
	logging.Info(subsystem, "Snapshot %s taken in %s", label, time.Since(started).Round(time.Millisecond))
	return nil
}
