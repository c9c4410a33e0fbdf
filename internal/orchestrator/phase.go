package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"bootctl/internal/starter"
	"bootctl/internal/unit"
)

// Severity is how a phase failure is escalated.
type Severity int

const (
	// SeverityCritical failures put the host into recovery mode.
	SeverityCritical Severity = iota
	// SeverityDegraded failures are logged as warnings; boot continues.
	SeverityDegraded
	// SeverityInformational failures are logged only.
	SeverityInformational
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityDegraded:
		return "DEGRADED"
	case SeverityInformational:
		return "INFORMATIONAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity parses a severity name case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical, nil
	case "degraded":
		return SeverityDegraded, nil
	case "informational", "info":
		return SeverityInformational, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

// Status is a phase's position in its state machine:
// PENDING -> RUNNING -> SUCCEEDED | FAILED, or PENDING -> SKIPPED.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusSucceeded:
		return "SUCCEEDED"
	case StatusFailed:
		return "FAILED"
	case StatusSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// Phase is one ordered stage of the boot sequence.
type Phase struct {
	Ordinal     int
	Name        string
	Description string
	Severity    Severity
	Units       []unit.Spec

	// Parallel starts Units concurrently instead of one after another.
	Parallel bool
	// Workload marks phases gated by the workload-container toggle.
	Workload bool
	// Commands are run in order before the units. A failing command fails the
	// phase but the units are still started.
	Commands []string

	Status    Status
	StartedAt time.Time
	Duration  time.Duration

	// UnitReports holds one report per unit in declaration order.
	UnitReports []starter.Report
	// Reason explains a FAILED or SKIPPED status.
	Reason string
}

// FailedUnits lists the identifiers of units that ended FAILED.
func (p *Phase) FailedUnits() []string {
	var ids []string
	for _, r := range p.UnitReports {
		if r.Outcome == unit.OutcomeFailed {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// Retries sums the retries consumed by the phase's units.
func (p *Phase) Retries() int {
	n := 0
	for _, r := range p.UnitReports {
		n += r.Retries()
	}
	return n
}

func (p *Phase) String() string {
	return fmt.Sprintf("%d:%s", p.Ordinal, p.Name)
}

// ValidatePhases checks that ordinals run 1..n in slice order, that names are
// unique and that every unit is well formed and unique within its phase. A
// service and a container sharing an identifier in one phase are rejected.
func ValidatePhases(phases []Phase) error {
	names := make(map[string]bool, len(phases))
	for i, p := range phases {
		if p.Ordinal != i+1 {
			return fmt.Errorf("%w: phase %q has ordinal %d, expected %d", ErrInvalidPhases, p.Name, p.Ordinal, i+1)
		}
		if p.Name == "" {
			return fmt.Errorf("%w: phase %d has no name", ErrInvalidPhases, p.Ordinal)
		}
		if names[p.Name] {
			return fmt.Errorf("%w: duplicate phase name %q", ErrInvalidPhases, p.Name)
		}
		names[p.Name] = true

		switch p.Severity {
		case SeverityCritical, SeverityDegraded, SeverityInformational:
		default:
			return fmt.Errorf("%w: phase %q has unknown severity %d", ErrInvalidPhases, p.Name, p.Severity)
		}

		// Unit reports are keyed by identifier alone, whatever the kind.
		kinds := make(map[string]unit.Kind, len(p.Units))
		for _, u := range p.Units {
			if err := u.Validate(); err != nil {
				return fmt.Errorf("%w: phase %q: %v", ErrInvalidPhases, p.Name, err)
			}
			if k, dup := kinds[u.ID]; dup {
				if k != u.Kind {
					return fmt.Errorf("%w: phase %q declares %q as both %s and %s; unit identifiers must be unique within a phase",
						ErrInvalidPhases, p.Name, u.ID, k, u.Kind)
				}
				return fmt.Errorf("%w: phase %q declares unit %q twice", ErrInvalidPhases, p.Name, u.ID)
			}
			kinds[u.ID] = u.Kind
		}
	}
	return nil
}
