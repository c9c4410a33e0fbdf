// Package starter brings single units up with a bounded retry budget and fans
// batches of independent units out concurrently.
package starter

import (
	"context"
	"time"

	"bootctl/internal/health"
	"bootctl/internal/unit"
	"bootctl/pkg/logging"
)

const subsystem = "Starter"

// ControllerSource resolves the backend for a unit kind. *unit.Dispatcher
// satisfies it.
type ControllerSource interface {
	For(kind unit.Kind) (unit.Controller, error)
}

// Prober confirms readiness after a start. *health.Prober satisfies it.
type Prober interface {
	Probe(ctx context.Context, ctrl unit.Controller, spec unit.Spec, mode unit.HealthMode, timeout time.Duration) health.Result
}

// UnitStarter starts one unit to completion or exhaustion.
type UnitStarter interface {
	Start(ctx context.Context, spec unit.Spec) Report
}

// Report is the result of one Start call.
type Report struct {
	ID      string
	Name    string
	Outcome unit.Outcome
	// Attempts is the number of attempts made; zero for units that were not applicable.
	Attempts int
	// NotApplicable is set when the unit's presence could not be confirmed.
	NotApplicable bool
	// Abandoned is set when the context was cancelled before the budget was spent.
	Abandoned bool
	Elapsed   time.Duration
}

// Retries returns the number of attempts beyond the first.
func (r Report) Retries() int {
	if r.Attempts <= 1 {
		return 0
	}
	return r.Attempts - 1
}

// attempt is the ephemeral record of one try; it only lives long enough to be logged.
type attempt struct {
	number       int
	startSkipped bool
	startErr     error
	probe        health.Result
	elapsed      time.Duration
}

func (a attempt) ok() bool {
	return a.startErr == nil && a.probe == health.Ready
}

// Starter is the retrying starter used for OS services and containers alike.
type Starter struct {
	controllers ControllerSource
	prober      Prober
	sleep       health.SleepFunc
}

// New returns a Starter.
func New(controllers ControllerSource, prober Prober) *Starter {
	return &Starter{
		controllers: controllers,
		prober:      prober,
		sleep:       health.Sleep,
	}
}

// Start brings spec up. Units whose presence cannot be confirmed are reported
// SUCCEEDED without any attempt. Otherwise up to spec.MaxAttempts attempts are
// made, each bounded by spec.PerAttemptTimeout and separated by
// spec.InterAttemptDelay.
func (s *Starter) Start(ctx context.Context, spec unit.Spec) Report {
	began := time.Now()
	report := Report{ID: spec.ID, Name: spec.Name(), Outcome: unit.OutcomeFailed}

	// Presence queries fail on a dead context, which would read as "not applicable".
	if ctx.Err() != nil {
		report.Abandoned = true
		return report
	}

	ctrl, err := s.controllers.For(spec.Kind)
	if err != nil {
		logging.Error(subsystem, err, "No backend for unit %s", spec.Name())
		report.Elapsed = time.Since(began)
		return report
	}

	switch presence := ctrl.Presence(ctx, spec.ID); presence {
	case unit.PresencePresent:
	case unit.PresenceAbsent:
		logging.Info(subsystem, "Unit %s is not installed, skipping", spec.Name())
		return notApplicable(report, began)
	default:
		logging.Warn(subsystem, "Presence of unit %s could not be confirmed, skipping", spec.Name())
		return notApplicable(report, began)
	}

	for n := 1; n <= spec.MaxAttempts; n++ {
		if ctx.Err() != nil {
			report.Abandoned = true
			break
		}

		a := s.attempt(ctx, ctrl, spec, n)
		report.Attempts = n
		s.logAttempt(spec, a)

		if a.ok() {
			report.Outcome = unit.OutcomeSucceeded
			break
		}
		if n == spec.MaxAttempts {
			break
		}
		if err := s.sleep(ctx, spec.InterAttemptDelay); err != nil {
			report.Abandoned = true
			break
		}
	}

	report.Elapsed = time.Since(began)
	if report.Outcome == unit.OutcomeSucceeded {
		logging.Info(subsystem, "Unit %s up after %d attempt(s) in %s", spec.Name(), report.Attempts, report.Elapsed.Round(time.Millisecond))
	} else if report.Abandoned {
		logging.Warn(subsystem, "Unit %s abandoned after %d attempt(s) in %s", spec.Name(), report.Attempts, report.Elapsed.Round(time.Millisecond))
	} else {
		logging.Error(subsystem, nil, "Unit %s failed after %d attempt(s) in %s", spec.Name(), report.Attempts, report.Elapsed.Round(time.Millisecond))
	}
	return report
}

func notApplicable(r Report, began time.Time) Report {
	r.Outcome = unit.OutcomeSucceeded
	r.NotApplicable = true
	r.Elapsed = time.Since(began)
	return r
}

func (s *Starter) attempt(ctx context.Context, ctrl unit.Controller, spec unit.Spec, n int) attempt {
	began := time.Now()
	a := attempt{number: n, probe: health.TimedOut}

	attemptCtx, cancel := context.WithTimeout(ctx, spec.PerAttemptTimeout)
	defer cancel()

	// A unit that is already up counts as started; its health is not re-checked.
	if state, err := ctrl.State(attemptCtx, spec.ID); err == nil && state.IsUp() {
		a.startSkipped = true
		a.probe = health.Ready
		a.elapsed = time.Since(began)
		return a
	}

	a.startErr = ctrl.Start(attemptCtx, spec.ID)
	if a.startErr == nil {
		a.probe = s.prober.Probe(attemptCtx, ctrl, spec, spec.HealthMode, spec.PerAttemptTimeout)
	}

	a.elapsed = time.Since(began)
	return a
}

func (s *Starter) logAttempt(spec unit.Spec, a attempt) {
	elapsed := a.elapsed.Round(time.Millisecond)
	switch {
	case a.ok() && a.startSkipped:
		logging.Debug(subsystem, "Unit %s attempt %d/%d: already up (%s)", spec.Name(), a.number, spec.MaxAttempts, elapsed)
	case a.ok():
		logging.Debug(subsystem, "Unit %s attempt %d/%d: started, probe %s (%s)", spec.Name(), a.number, spec.MaxAttempts, a.probe, elapsed)
	case a.startErr != nil:
		logging.Warn(subsystem, "Unit %s attempt %d/%d: start failed after %s: %v", spec.Name(), a.number, spec.MaxAttempts, elapsed, a.startErr)
	default:
		logging.Warn(subsystem, "Unit %s attempt %d/%d: probe %s (%s mode) after %s", spec.Name(), a.number, spec.MaxAttempts, a.probe, spec.HealthMode, elapsed)
	}
}
