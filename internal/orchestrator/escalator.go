package orchestrator

import (
	"strings"

	"bootctl/pkg/logging"
)

// Decision is the escalator's verdict on a finished phase.
type Decision int

const (
	Continue Decision = iota
	EnterRecovery
)

func (d Decision) String() string {
	if d == EnterRecovery {
		return "ENTER_RECOVERY"
	}
	return "CONTINUE"
}

// Escalator decides whether a finished phase changes run-level control flow.
type Escalator interface {
	Evaluate(p Phase) Decision
}

// FailureEscalator applies the severity decision table. It is the only
// component allowed to stop a run.
type FailureEscalator struct{}

// Evaluate returns EnterRecovery for a FAILED critical phase and Continue for
// everything else, logging non-critical failures at a level matching their
// severity.
func (FailureEscalator) Evaluate(p Phase) Decision {
	if p.Status != StatusFailed {
		return Continue
	}

	failed := strings.Join(p.FailedUnits(), ", ")
	switch p.Severity {
	case SeverityCritical:
		logging.Error(subsystemEscalator, nil, "Critical phase %s failed (units: %s): entering recovery", p.Name, failed)
		return EnterRecovery
	case SeverityDegraded:
		logging.Warn(subsystemEscalator, "Degraded phase %s failed (units: %s): continuing with reduced functionality", p.Name, failed)
	default:
		logging.Info(subsystemEscalator, "Informational phase %s failed (units: %s)", p.Name, failed)
	}
	return Continue
}
