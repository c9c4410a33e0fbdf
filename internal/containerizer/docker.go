package containerizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bootctl/internal/unit"
	"bootctl/internal/utils"
	"bootctl/pkg/logging"
)

// ContainerRuntime is the container surface the boot path needs. Containers are
// created ahead of time by the operator (compose, quadlets, docker create); the
// boot path only starts and inspects them.
type ContainerRuntime interface {
	unit.Controller

	// Inspect returns the raw runtime view of a container.
	Inspect(ctx context.Context, name string) (ContainerStatus, error)
}

// ContainerStatus is the subset of `docker inspect` output bootctl consumes.
type ContainerStatus struct {
	Status   string // created, running, restarting, exited, paused, dead
	ExitCode string
	Health   string // empty when the image declares no HEALTHCHECK
}

// errNoSuchContainer marks an inspect that failed because the container does not exist.
var errNoSuchContainer = errors.New("no such container")

// inspectFormat prints status, exit code and health on one line separated by '|'.
const inspectFormat = "{{.State.Status}}|{{.State.ExitCode}}|{{if .State.Health}}{{.State.Health.Status}}{{end}}"

// DockerRuntime drives containers through a docker-compatible CLI. Podman works
// unchanged by pointing Binary at it.
type DockerRuntime struct {
	runner utils.Runner
	Binary string
}

// NewDockerRuntime returns a runtime invoking binary ("docker" when empty).
func NewDockerRuntime(runner utils.Runner, binary string) *DockerRuntime {
	if binary == "" {
		binary = "docker"
	}
	return &DockerRuntime{runner: runner, Binary: binary}
}

func (d *DockerRuntime) subsystem() string {
	return "Container-" + d.Binary
}

// Inspect queries the container's state.
func (d *DockerRuntime) Inspect(ctx context.Context, name string) (ContainerStatus, error) {
	res, err := d.runner.Run(ctx, d.Binary, "container", "inspect", "--format", inspectFormat, name)
	if err != nil {
		if strings.Contains(strings.ToLower(res.Stderr), "no such") || strings.Contains(strings.ToLower(err.Error()), "no such") {
			return ContainerStatus{}, fmt.Errorf("%w: %s", errNoSuchContainer, name)
		}
		return ContainerStatus{}, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}
	return parseInspect(res.Stdout)
}

func parseInspect(out string) (ContainerStatus, error) {
	parts := strings.Split(strings.TrimSpace(out), "|")
	if len(parts) != 3 {
		return ContainerStatus{}, fmt.Errorf("unexpected inspect output %q", out)
	}
	return ContainerStatus{Status: parts[0], ExitCode: parts[1], Health: parts[2]}, nil
}

// Presence distinguishes "no such container" from a runtime that cannot answer.
func (d *DockerRuntime) Presence(ctx context.Context, name string) unit.Presence {
	_, err := d.Inspect(ctx, name)
	switch {
	case err == nil:
		return unit.PresencePresent
	case errors.Is(err, errNoSuchContainer):
		return unit.PresenceAbsent
	default:
		logging.Debug(d.subsystem(), "Cannot determine presence of %s: %v", name, err)
		return unit.PresenceUnknown
	}
}

// State maps the container status onto unit.State. An exited container is
// reported inactive whatever its exit code: a container stopped cleanly at
// shutdown looks the same as one that finished its work, and only the former
// is expected at boot.
func (d *DockerRuntime) State(ctx context.Context, name string) (unit.State, error) {
	st, err := d.Inspect(ctx, name)
	if err != nil {
		return unit.StateUnknown, err
	}
	switch st.Status {
	case "running":
		return unit.StateRunning, nil
	case "restarting":
		return unit.StateActivating, nil
	case "created", "exited":
		return unit.StateInactive, nil
	case "dead", "paused", "removing":
		return unit.StateFailed, nil
	default:
		return unit.StateUnknown, nil
	}
}

// Start runs `docker start`.
func (d *DockerRuntime) Start(ctx context.Context, name string) error {
	if _, err := d.runner.Run(ctx, d.Binary, "start", name); err != nil {
		return fmt.Errorf("failed to start container %s: %w", name, err)
	}
	logging.Debug(d.subsystem(), "Issued start for container %s", name)
	return nil
}

// Health reads the HEALTHCHECK status, falling back to running the unit's health
// command inside the container when the image declares none.
func (d *DockerRuntime) Health(ctx context.Context, spec unit.Spec) unit.Health {
	st, err := d.Inspect(ctx, spec.ID)
	if err != nil {
		logging.Debug(d.subsystem(), "Health inspect for %s failed: %v", spec.ID, err)
		return unit.HealthUnsupported
	}

	switch st.Health {
	case "healthy":
		return unit.HealthIsHealthy
	case "unhealthy":
		return unit.HealthUnhealthy
	case "starting":
		return unit.HealthStarting
	}

	if spec.HealthCommand == "" {
		return unit.HealthUnsupported
	}
	words, err := utils.SplitCommand(spec.HealthCommand)
	if err != nil {
		logging.Warn(d.subsystem(), "Ignoring invalid health command for %s: %v", spec.ID, err)
		return unit.HealthUnsupported
	}
	args := append([]string{"exec", spec.ID}, words...)
	if _, err := d.runner.Run(ctx, d.Binary, args...); err != nil {
		return unit.HealthUnhealthy
	}
	return unit.HealthIsHealthy
}
