// Package systemd drives OS services through the systemctl command line.
package systemd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"bootctl/internal/unit"
	"bootctl/internal/utils"
	"bootctl/pkg/logging"
)

const subsystem = "Systemd"

// Manager implements unit.Controller for systemd units.
type Manager struct {
	runner    utils.Runner
	systemctl string
}

// NewManager returns a Manager that invokes the systemctl binary at path.
func NewManager(runner utils.Runner, path string) *Manager {
	if path == "" {
		path = "systemctl"
	}
	return &Manager{runner: runner, systemctl: path}
}

// properties reads a fixed set of unit properties via `systemctl show`.
func (m *Manager) properties(ctx context.Context, id string) (map[string]string, error) {
	res, err := m.runner.Run(ctx, m.systemctl, "show", id, "--property=LoadState,ActiveState,SubState")
	if err != nil {
		return nil, err
	}
	props := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(res.Stdout))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		props[key] = value
	}
	return props, nil
}

// Presence maps LoadState onto the tri-state presence answer.
func (m *Manager) Presence(ctx context.Context, id string) unit.Presence {
	props, err := m.properties(ctx, id)
	if err != nil {
		logging.Debug(subsystem, "Cannot determine presence of %s: %v", id, err)
		return unit.PresenceUnknown
	}
	switch props["LoadState"] {
	case "loaded":
		return unit.PresencePresent
	case "not-found", "masked":
		return unit.PresenceAbsent
	default:
		return unit.PresenceUnknown
	}
}

// State maps ActiveState/SubState onto unit.State.
func (m *Manager) State(ctx context.Context, id string) (unit.State, error) {
	props, err := m.properties(ctx, id)
	if err != nil {
		return unit.StateUnknown, fmt.Errorf("failed to query state of %s: %w", id, err)
	}
	return parseActiveState(props["ActiveState"], props["SubState"]), nil
}

func parseActiveState(active, sub string) unit.State {
	switch active {
	case "active":
		if sub == "exited" {
			return unit.StateExited
		}
		return unit.StateRunning
	case "activating", "reloading":
		return unit.StateActivating
	case "inactive", "deactivating":
		return unit.StateInactive
	case "failed":
		return unit.StateFailed
	default:
		return unit.StateUnknown
	}
}

// Start runs `systemctl start`, which blocks until the unit's start job completes.
func (m *Manager) Start(ctx context.Context, id string) error {
	if _, err := m.runner.Run(ctx, m.systemctl, "start", id); err != nil {
		return fmt.Errorf("failed to start %s: %w", id, err)
	}
	return nil
}

// Health runs the unit's health command when one is declared. systemd itself
// has no health indicator, so units without a command are unsupported.
func (m *Manager) Health(ctx context.Context, spec unit.Spec) unit.Health {
	if spec.HealthCommand == "" {
		return unit.HealthUnsupported
	}
	if _, err := utils.RunCommandLine(ctx, m.runner, spec.HealthCommand); err != nil {
		logging.Debug(subsystem, "Health command for %s failed: %v", spec.ID, err)
		return unit.HealthUnhealthy
	}
	return unit.HealthIsHealthy
}
