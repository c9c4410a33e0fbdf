package unit

import (
	"context"
	"fmt"
)

// Controller is implemented by every unit backend. Queries are read-only; only
// Start changes host state.
type Controller interface {
	// Presence reports whether the unit exists. Backends return PresenceUnknown
	// when the question cannot be answered rather than an error.
	Presence(ctx context.Context, id string) Presence

	// State returns the unit's current activity state.
	State(ctx context.Context, id string) (State, error)

	// Start issues the start command for the unit.
	Start(ctx context.Context, id string) error

	// Health reads the unit's health indicator. Units without one report
	// HealthUnsupported.
	Health(ctx context.Context, spec Spec) Health
}

// Dispatcher routes a unit to the controller registered for its kind.
type Dispatcher struct {
	controllers map[Kind]Controller
}

// NewDispatcher creates a dispatcher over the given backends.
func NewDispatcher(services, containers Controller) *Dispatcher {
	d := &Dispatcher{controllers: make(map[Kind]Controller)}
	if services != nil {
		d.controllers[KindOSService] = services
	}
	if containers != nil {
		d.controllers[KindContainer] = containers
	}
	return d
}

// For returns the controller for kind.
func (d *Dispatcher) For(kind Kind) (Controller, error) {
	c, ok := d.controllers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no controller registered for %q", ErrUnknownKind, kind)
	}
	return c, nil
}
