package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"bootctl/internal/history"
	"bootctl/internal/metrics"
	"bootctl/internal/orchestrator"
	"bootctl/internal/runguard"
	"bootctl/pkg/logging"
)

// Process exit codes. ExitCodeRecovery is never used for anything but recovery.
const (
	ExitCodeOK       = 0
	ExitCodeError    = 1
	ExitCodeRecovery = 3
)

// bookkeepingTimeout bounds history, metrics and snapshot work after the phases.
const bookkeepingTimeout = 2 * time.Minute

// ExitError carries the process exit code for a failed run.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitCodeOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCodeError
}

// runBoot holds the run lock for the whole sequence. A concurrent run is a
// benign no-op.
func runBoot(ctx context.Context, cfg *Config, services *Services) error {
	handle, status, err := services.Guard.Acquire()
	if err != nil {
		logging.Error("Boot", err, "Failed to acquire run lock")
		return &ExitError{Code: ExitCodeError, Err: err}
	}
	if status == runguard.AlreadyRunning {
		logging.Info("Boot", "Another bootctl run is in progress, nothing to do")
		return nil
	}
	defer func() {
		if err := handle.Release(); err != nil {
			logging.Error("Boot", err, "Failed to release run lock")
		}
	}()

	runID := uuid.NewString()
	logging.Info("Boot", "Run %s started (pid %d)", runID, os.Getpid())

	result := services.Scheduler.Run(ctx)
	finished := time.Now()

	// Bookkeeping still runs after an interrupt.
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	succeeded := result.Status == orchestrator.RunCompleted
	successCount, lastSuccess := recordHistory(bctx, cfg, runID, result, finished)
	exportMetrics(services, result, succeeded, successCount, lastSuccess, finished)

	if succeeded && services.Snapshot != nil {
		if err := services.Snapshot.Take(bctx, "post-boot-"+runID); err != nil {
			logging.Warn("Boot", "Snapshot hook failed: %v", err)
		}
	}

	switch result.Status {
	case orchestrator.RunRecovery:
		rec := result.Recovery
		err := fmt.Errorf("recovery mode entered after critical phase %s: %s", rec.TriggeringPhase, rec.Reason)
		logging.Error("Boot", err, "Run %s needs manual recovery, see %s", runID, rec.ArtifactPath)
		return &ExitError{Code: ExitCodeRecovery, Err: err}
	case orchestrator.RunInterrupted:
		logging.Warn("Boot", "Run %s interrupted", runID)
		return &ExitError{Code: ExitCodeError, Err: fmt.Errorf("boot run interrupted: %w", context.Cause(ctx))}
	}

	if result.Degraded() {
		logging.Warn("Boot", "Run %s completed with failed non-critical phases", runID)
	} else {
		logging.Info("Boot", "Run %s completed", runID)
	}
	return nil
}

// recordHistory appends the run and returns the success counter and the
// previous success time for the metrics export. Failures are logged only.
func recordHistory(ctx context.Context, cfg *Config, runID string, result orchestrator.RunResult, finished time.Time) (int64, time.Time) {
	s := cfg.Settings
	if !s.HistoryEnabled {
		return -1, time.Time{}
	}

	store, err := history.Open(s.HistoryDB)
	if err != nil {
		logging.Warn("History", "Run history unavailable: %v", err)
		return -1, time.Time{}
	}
	defer store.Close()

	lastSuccess, err := store.LastSuccess(ctx)
	if err != nil {
		logging.Warn("History", "Could not read last success: %v", err)
	}

	var failed []string
	for _, p := range result.Phases {
		if p.Status == orchestrator.StatusFailed {
			failed = append(failed, p.Name)
		}
	}
	err = store.Append(ctx, history.RunRecord{
		RunID:         runID,
		StartedAt:     result.Started,
		FinishedAt:    finished,
		Status:        result.Status.String(),
		Succeeded:     result.Status == orchestrator.RunCompleted,
		TotalDuration: result.Timing.Total,
		WithinTarget:  result.Timing.WithinTarget,
		FailedPhases:  failed,
	})
	if err != nil {
		logging.Warn("History", "Could not record run %s: %v", runID, err)
		return -1, lastSuccess
	}

	count, err := store.SuccessCount(ctx)
	if err != nil {
		logging.Warn("History", "Could not count successful runs: %v", err)
		return -1, lastSuccess
	}
	return count, lastSuccess
}

func exportMetrics(services *Services, result orchestrator.RunResult, succeeded bool, successCount int64, lastSuccess, now time.Time) {
	if services.Exporter == nil {
		return
	}
	err := services.Exporter.Export(metrics.ExportInput{
		Report:       result.Timing,
		Succeeded:    succeeded,
		SuccessCount: successCount,
		LastSuccess:  lastSuccess,
		Now:          now,
	})
	if err != nil {
		logging.Warn("Metrics", "Metrics export failed: %v", err)
		return
	}
	logging.Debug("Metrics", "Metrics written to %s", services.Exporter.Path())
}
