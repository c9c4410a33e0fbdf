package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bootctl/internal/metrics"
	"bootctl/internal/recovery"
	"bootctl/internal/starter"
	"bootctl/internal/unit"
	"bootctl/internal/utils"
	"bootctl/pkg/logging"
)

const (
	subsystemScheduler = "Scheduler"
	subsystemEscalator = "Escalator"
)

// ErrInvalidPhases is returned when the declared phase list breaks ordering or naming rules.
var ErrInvalidPhases = errors.New("invalid phase list")

// BatchStarter starts a set of independent units and joins on all of them.
// *starter.Group satisfies it.
type BatchStarter interface {
	RunAll(ctx context.Context, specs []unit.Spec) map[string]starter.Report
}

// TimingRecorder receives phase durations. *metrics.Recorder satisfies it.
type TimingRecorder interface {
	Record(ordinal int, name, status string, d time.Duration)
	Finalize() metrics.PhaseTimingReport
}

// Recoverer puts the host into recovery posture. *recovery.Mode satisfies it.
type Recoverer interface {
	Enter(ctx context.Context, t recovery.Trigger) recovery.Record
}

// RunStatus is the run-level outcome.
type RunStatus int

const (
	// RunCompleted means every phase ran; non-critical phases may have failed.
	RunCompleted RunStatus = iota
	// RunRecovery means a critical phase failed and recovery mode was entered.
	RunRecovery
	// RunInterrupted means the context was cancelled before all phases ran.
	RunInterrupted
)

func (s RunStatus) String() string {
	switch s {
	case RunCompleted:
		return "COMPLETED"
	case RunRecovery:
		return "RECOVERY"
	case RunInterrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// RunResult is the immutable outcome of one Run.
type RunResult struct {
	Status   RunStatus
	Phases   []Phase
	Timing   metrics.PhaseTimingReport
	Recovery *recovery.Record
	Started  time.Time
	Elapsed  time.Duration
}

// Degraded reports whether any phase ended FAILED.
func (r RunResult) Degraded() bool {
	for _, p := range r.Phases {
		if p.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Config holds the collaborators of a Scheduler.
type Config struct {
	Phases    []Phase
	Starter   starter.UnitStarter
	Group     BatchStarter
	Runner    utils.Runner
	Recorder  TimingRecorder
	Escalator Escalator
	Recoverer Recoverer

	// WorkloadsEnabled gates phases marked Workload.
	WorkloadsEnabled bool
}

// Scheduler runs phases strictly in ordinal order. Each phase is a barrier:
// the next one is not dispatched until the previous one reached a terminal status.
type Scheduler struct {
	phases           []Phase
	starter          starter.UnitStarter
	group            BatchStarter
	runner           utils.Runner
	recorder         TimingRecorder
	escalator        Escalator
	recoverer        Recoverer
	workloadsEnabled bool
	now              func() time.Time
}

// New validates cfg.Phases and returns a Scheduler. Phases are copied and
// reset to PENDING.
func New(cfg Config) (*Scheduler, error) {
	if err := ValidatePhases(cfg.Phases); err != nil {
		return nil, err
	}
	if cfg.Starter == nil || cfg.Recorder == nil || cfg.Recoverer == nil {
		return nil, errors.New("scheduler requires a starter, a recorder and a recoverer")
	}

	s := &Scheduler{
		phases:           make([]Phase, len(cfg.Phases)),
		starter:          cfg.Starter,
		group:            cfg.Group,
		runner:           cfg.Runner,
		recorder:         cfg.Recorder,
		escalator:        cfg.Escalator,
		recoverer:        cfg.Recoverer,
		workloadsEnabled: cfg.WorkloadsEnabled,
		now:              time.Now,
	}
	if s.group == nil {
		s.group = starter.NewGroup(cfg.Starter)
	}
	if s.runner == nil {
		s.runner = utils.NewExecRunner()
	}
	if s.escalator == nil {
		s.escalator = FailureEscalator{}
	}

	for i, p := range cfg.Phases {
		p.Units = append([]unit.Spec(nil), p.Units...)
		p.Commands = append([]string(nil), p.Commands...)
		p.Status = StatusPending
		p.UnitReports = nil
		p.Reason = ""
		s.phases[i] = p
	}
	return s, nil
}

// Phases returns a copy of the current phase list.
func (s *Scheduler) Phases() []Phase {
	out := make([]Phase, len(s.phases))
	copy(out, s.phases)
	return out
}

// Run executes every phase in order. Only the escalator changes control flow:
// a critical failure enters recovery and every later phase is marked SKIPPED.
// Cancelling ctx abandons the in-flight phase and skips the rest.
func (s *Scheduler) Run(ctx context.Context) RunResult {
	result := RunResult{Status: RunCompleted, Started: s.now()}
	logging.Info(subsystemScheduler, "Starting boot sequence with %d phase(s)", len(s.phases))

	for i := range s.phases {
		p := &s.phases[i]

		if ctx.Err() != nil {
			result.Status = RunInterrupted
			s.skipFrom(i, "interrupted")
			break
		}

		if p.Workload && !s.workloadsEnabled {
			s.skip(p, "workload containers disabled")
			continue
		}

		s.runPhase(ctx, p)

		if ctx.Err() != nil && p.Status == StatusFailed {
			// Abandoned phases are not escalated.
			result.Status = RunInterrupted
			s.skipFrom(i+1, "interrupted")
			break
		}

		if s.escalator.Evaluate(*p) == EnterRecovery {
			record := s.recoverer.Enter(ctx, recovery.Trigger{
				Ordinal:     p.Ordinal,
				Phase:       p.Name,
				Reason:      p.Reason,
				FailedUnits: p.FailedUnits(),
			})
			result.Status = RunRecovery
			result.Recovery = &record
			s.skipFrom(i+1, fmt.Sprintf("recovery entered after phase %s", p.Name))
			break
		}
	}

	result.Phases = s.Phases()
	result.Timing = s.recorder.Finalize()
	result.Elapsed = s.now().Sub(result.Started)

	logging.Info(subsystemScheduler, "Boot sequence %s in %s (phase total %s, within target: %t)",
		result.Status, result.Elapsed.Round(time.Millisecond), result.Timing.Total.Round(time.Millisecond), result.Timing.WithinTarget)
	return result
}

func (s *Scheduler) runPhase(ctx context.Context, p *Phase) {
	p.Status = StatusRunning
	p.StartedAt = s.now()
	logging.Info(subsystemScheduler, "Phase %d/%d %s (%s) started: %d unit(s), %d command(s)",
		p.Ordinal, len(s.phases), p.Name, p.Severity, len(p.Units), len(p.Commands))

	var reasons []string
	if err := s.runCommands(ctx, p); err != nil {
		reasons = append(reasons, err.Error())
	}

	if p.Parallel && len(p.Units) > 1 {
		byID := s.group.RunAll(ctx, p.Units)
		for _, u := range p.Units {
			r, ok := byID[u.ID]
			if !ok {
				r = starter.Report{ID: u.ID, Name: u.Name(), Outcome: unit.OutcomeFailed}
			}
			p.UnitReports = append(p.UnitReports, r)
		}
	} else {
		for _, u := range p.Units {
			p.UnitReports = append(p.UnitReports, s.starter.Start(ctx, u))
		}
	}

	if failed := p.FailedUnits(); len(failed) > 0 {
		reasons = append(reasons, fmt.Sprintf("unit(s) failed: %s", strings.Join(failed, ", ")))
	}
	if ctx.Err() != nil && len(reasons) == 0 && len(p.Units)+len(p.Commands) > 0 {
		reasons = append(reasons, "interrupted")
	}

	p.Duration = s.now().Sub(p.StartedAt)
	if len(reasons) > 0 {
		p.Status = StatusFailed
		p.Reason = strings.Join(reasons, "; ")
	} else {
		p.Status = StatusSucceeded
	}
	s.recorder.Record(p.Ordinal, p.Name, p.Status.String(), p.Duration)

	elapsed := p.Duration.Round(time.Millisecond)
	if p.Status == StatusSucceeded {
		logging.Info(subsystemScheduler, "Phase %s SUCCEEDED in %s (retries: %d)", p.Name, elapsed, p.Retries())
	} else {
		logging.Warn(subsystemScheduler, "Phase %s FAILED in %s (retries: %d): %s", p.Name, elapsed, p.Retries(), p.Reason)
	}
}

// runCommands runs the phase's commands in order and stops at the first failure.
func (s *Scheduler) runCommands(ctx context.Context, p *Phase) error {
	for _, line := range p.Commands {
		res, err := utils.RunCommandLine(ctx, s.runner, line)
		if err != nil {
			logging.Error(subsystemScheduler, err, "Phase %s command %q failed (exit %d)", p.Name, line, res.ExitCode)
			return fmt.Errorf("command %q failed: %w", line, err)
		}
		logging.Debug(subsystemScheduler, "Phase %s command %q ok", p.Name, line)
	}
	return nil
}

func (s *Scheduler) skip(p *Phase, reason string) {
	p.Status = StatusSkipped
	p.Reason = reason
	p.Duration = 0
	s.recorder.Record(p.Ordinal, p.Name, p.Status.String(), 0)
	logging.Info(subsystemScheduler, "Phase %s SKIPPED: %s", p.Name, reason)
}

func (s *Scheduler) skipFrom(i int, reason string) {
	for ; i < len(s.phases); i++ {
		s.skip(&s.phases[i], reason)
	}
}
