package unit

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownKind is returned when a unit declares a kind no backend handles.
var ErrUnknownKind = errors.New("unknown unit kind")

// Kind identifies which backend manages a unit.
type Kind string

const (
	KindOSService Kind = "service"
	KindContainer Kind = "container"
)

// ParseKind accepts the spellings operators use in phase files.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "service", "os_service", "os-service", "systemd":
		return KindOSService, nil
	case "container", "docker", "podman":
		return KindContainer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// HealthMode is the readiness-confirmation strategy for a unit.
type HealthMode string

const (
	// HealthNone treats a successful start call as ready.
	HealthNone HealthMode = "none"
	// HealthStarted requires the unit to report an active/running state once.
	HealthStarted HealthMode = "started"
	// HealthHealthy polls the unit's health indicator until it reports healthy.
	HealthHealthy HealthMode = "healthy"
)

// ParseHealthMode parses a health mode; the empty string yields HealthStarted.
func ParseHealthMode(s string) (HealthMode, error) {
	switch HealthMode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return HealthStarted, nil
	case HealthNone:
		return HealthNone, nil
	case HealthStarted:
		return HealthStarted, nil
	case HealthHealthy:
		return HealthHealthy, nil
	default:
		return "", fmt.Errorf("unknown health mode %q", s)
	}
}

// Spec declares one unit the orchestrator starts and verifies. Specs are
// read-only once a run begins.
type Spec struct {
	Kind              Kind
	ID                string // systemd unit name or container name
	FriendlyName      string
	MaxAttempts       int
	PerAttemptTimeout time.Duration
	HealthMode        HealthMode
	InterAttemptDelay time.Duration

	// HealthCommand is an optional command line whose zero exit status marks the
	// unit healthy. It is the only health indicator OS services have.
	HealthCommand string
}

// Name returns the friendly name, falling back to the identifier.
func (s Spec) Name() string {
	if s.FriendlyName != "" {
		return s.FriendlyName
	}
	return s.ID
}

// Validate checks the invariants every spec must satisfy.
func (s Spec) Validate() error {
	if s.ID == "" {
		return errors.New("unit identifier is required")
	}
	switch s.Kind {
	case KindOSService, KindContainer:
	default:
		return fmt.Errorf("unit %s: %w: %q", s.ID, ErrUnknownKind, s.Kind)
	}
	if s.MaxAttempts < 1 {
		return fmt.Errorf("unit %s: maxAttempts must be >= 1, got %d", s.ID, s.MaxAttempts)
	}
	if s.PerAttemptTimeout <= 0 {
		return fmt.Errorf("unit %s: timeout must be positive", s.ID)
	}
	if s.InterAttemptDelay < 0 {
		return fmt.Errorf("unit %s: delay must not be negative", s.ID)
	}
	switch s.HealthMode {
	case HealthNone, HealthStarted, HealthHealthy:
	default:
		return fmt.Errorf("unit %s: unknown health mode %q", s.ID, s.HealthMode)
	}
	return nil
}

// Presence is the answer to "does this unit exist on this host".
type Presence int

const (
	PresenceUnknown Presence = iota
	PresencePresent
	PresenceAbsent
)

func (p Presence) String() string {
	switch p {
	case PresencePresent:
		return "present"
	case PresenceAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// State is the activity state a backend reports for a unit.
type State int

const (
	StateUnknown State = iota
	StateInactive
	StateActivating
	StateRunning
	// StateExited means the unit ran to completion successfully (oneshot
	// services, containers that exited 0).
	StateExited
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActivating:
		return "activating"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsUp reports whether the state counts as successfully started.
func (s State) IsUp() bool {
	return s == StateRunning || s == StateExited
}

// Health is a unit's health indicator reading.
type Health int

const (
	// HealthUnsupported means the unit exposes no health telemetry.
	HealthUnsupported Health = iota
	HealthStarting
	HealthUnhealthy
	HealthIsHealthy
)

func (h Health) String() string {
	switch h {
	case HealthStarting:
		return "starting"
	case HealthUnhealthy:
		return "unhealthy"
	case HealthIsHealthy:
		return "healthy"
	default:
		return "unsupported"
	}
}

// Outcome is the binary result of starting a unit.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
)

func (o Outcome) String() string {
	if o == OutcomeSucceeded {
		return "SUCCEEDED"
	}
	return "FAILED"
}
