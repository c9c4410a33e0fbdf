// Package health confirms that a started unit is ready.
package health

import (
	"context"
	"time"

	"bootctl/internal/unit"
	"bootctl/pkg/logging"
)

const subsystem = "HealthProbe"

// DefaultPollInterval is the spacing between health reads in HEALTHY mode.
const DefaultPollInterval = 2 * time.Second

// Result is the outcome of a probe.
type Result int

const (
	Ready Result = iota
	TimedOut
)

func (r Result) String() string {
	if r == Ready {
		return "READY"
	}
	return "TIMED_OUT"
}

// Prober polls units for readiness. The zero value is not usable; use NewProber.
type Prober struct {
	interval time.Duration
	sleep    SleepFunc
}

// NewProber returns a Prober polling every interval (DefaultPollInterval when zero).
func NewProber(interval time.Duration) *Prober {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Prober{interval: interval, sleep: Sleep}
}

// Probe checks spec according to mode for at most timeout. Units that do not
// exist or expose no health telemetry are reported Ready.
func (p *Prober) Probe(ctx context.Context, ctrl unit.Controller, spec unit.Spec, mode unit.HealthMode, timeout time.Duration) Result {
	switch mode {
	case unit.HealthNone:
		return Ready
	case unit.HealthStarted:
		return p.probeStarted(ctx, ctrl, spec)
	case unit.HealthHealthy:
		return p.probeHealthy(ctx, ctrl, spec, timeout)
	default:
		logging.Warn(subsystem, "Unit %s has unknown health mode %q, treating as ready", spec.Name(), mode)
		return Ready
	}
}

func (p *Prober) probeStarted(ctx context.Context, ctrl unit.Controller, spec unit.Spec) Result {
	state, err := ctrl.State(ctx, spec.ID)
	if err != nil {
		if ctrl.Presence(ctx, spec.ID) != unit.PresencePresent {
			return Ready
		}
		logging.Debug(subsystem, "State query for %s failed: %v", spec.Name(), err)
		return TimedOut
	}
	if state.IsUp() || state == unit.StateUnknown {
		return Ready
	}
	logging.Debug(subsystem, "Unit %s is %s, not started", spec.Name(), state)
	return TimedOut
}

func (p *Prober) probeHealthy(ctx context.Context, ctrl unit.Controller, spec unit.Spec, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	for {
		h := ctrl.Health(ctx, spec)
		// A read cut off by the deadline looks like missing telemetry.
		if ctx.Err() != nil {
			return TimedOut
		}
		switch h {
		case unit.HealthIsHealthy:
			logging.Debug(subsystem, "Unit %s healthy after %s", spec.Name(), time.Since(start).Round(time.Millisecond))
			return Ready
		case unit.HealthUnsupported:
			return Ready
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			logging.Debug(subsystem, "Unit %s still %s after %s", spec.Name(), h, time.Since(start).Round(time.Millisecond))
			return TimedOut
		}
	}
}
