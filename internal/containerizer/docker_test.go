package containerizer

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"bootctl/internal/unit"
	"bootctl/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to check if Docker is available
func dockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// Helper to skip test if Docker is not available
func skipIfNoDocker(t *testing.T) {
	if !dockerAvailable() {
		t.Skip("Docker not available, skipping test")
	}
}

type mockCommand struct {
	result utils.Result
	err    error
}

// mockRunner returns canned results keyed by the full command line.
type mockRunner struct {
	commands map[string]mockCommand
	calls    []string
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) (utils.Result, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	m.calls = append(m.calls, line)
	c, ok := m.commands[line]
	if !ok {
		return utils.Result{}, nil
	}
	return c.result, c.err
}

func inspectLine(name string) string {
	return "docker container inspect --format " + inspectFormat + " " + name
}

func TestParseInspect(t *testing.T) {
	st, err := parseInspect("running|0|healthy\n")
	require.NoError(t, err)
	assert.Equal(t, ContainerStatus{Status: "running", ExitCode: "0", Health: "healthy"}, st)

	st, err = parseInspect("exited|137|")
	require.NoError(t, err)
	assert.Equal(t, "", st.Health)

	_, err = parseInspect("garbage")
	assert.Error(t, err)
}

func TestDockerRuntime_Presence(t *testing.T) {
	tests := []struct {
		name string
		cmd  mockCommand
		want unit.Presence
	}{
		{
			name: "exists",
			cmd:  mockCommand{result: utils.Result{Stdout: "created|0|"}},
			want: unit.PresencePresent,
		},
		{
			name: "no such container",
			cmd: mockCommand{
				result: utils.Result{Stderr: "Error: No such container: grafana", ExitCode: 1},
				err:    errors.New("exit status 1"),
			},
			want: unit.PresenceAbsent,
		},
		{
			name: "daemon down",
			cmd: mockCommand{
				result: utils.Result{Stderr: "Cannot connect to the Docker daemon", ExitCode: 1},
				err:    errors.New("exit status 1"),
			},
			want: unit.PresenceUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockRunner{commands: map[string]mockCommand{inspectLine("grafana"): tt.cmd}}
			d := NewDockerRuntime(m, "")
			assert.Equal(t, tt.want, d.Presence(context.Background(), "grafana"))
		})
	}
}

func TestDockerRuntime_State(t *testing.T) {
	tests := []struct {
		stdout string
		want   unit.State
	}{
		{"running|0|", unit.StateRunning},
		{"restarting|1|", unit.StateActivating},
		{"exited|0|", unit.StateInactive},
		{"created|0|", unit.StateInactive},
		{"dead|137|", unit.StateFailed},
		{"weird|0|", unit.StateUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.stdout, func(t *testing.T) {
			m := &mockRunner{commands: map[string]mockCommand{inspectLine("app"): {result: utils.Result{Stdout: tt.stdout}}}}
			state, err := NewDockerRuntime(m, "").State(context.Background(), "app")
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestDockerRuntime_StartUsesBinary(t *testing.T) {
	m := &mockRunner{commands: map[string]mockCommand{
		"podman start broken": {err: errors.New("exit status 125")},
	}}
	d := NewDockerRuntime(m, "podman")

	assert.NoError(t, d.Start(context.Background(), "app"))
	assert.Error(t, d.Start(context.Background(), "broken"))
	assert.Equal(t, []string{"podman start app", "podman start broken"}, m.calls)
}

func TestDockerRuntime_Health(t *testing.T) {
	tests := []struct {
		name     string
		inspect  mockCommand
		healthOK bool
		command  string
		want     unit.Health
	}{
		{name: "healthy", inspect: mockCommand{result: utils.Result{Stdout: "running|0|healthy"}}, want: unit.HealthIsHealthy},
		{name: "starting", inspect: mockCommand{result: utils.Result{Stdout: "running|0|starting"}}, want: unit.HealthStarting},
		{name: "unhealthy", inspect: mockCommand{result: utils.Result{Stdout: "running|0|unhealthy"}}, want: unit.HealthUnhealthy},
		{name: "no healthcheck", inspect: mockCommand{result: utils.Result{Stdout: "running|0|"}}, want: unit.HealthUnsupported},
		{name: "exec fallback ok", inspect: mockCommand{result: utils.Result{Stdout: "running|0|"}}, command: "redis-cli ping", healthOK: true, want: unit.HealthIsHealthy},
		{name: "exec fallback fails", inspect: mockCommand{result: utils.Result{Stdout: "running|0|"}}, command: "redis-cli ping", want: unit.HealthUnhealthy},
		{name: "inspect fails", inspect: mockCommand{err: errors.New("boom")}, want: unit.HealthUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := map[string]mockCommand{inspectLine("cache"): tt.inspect}
			if tt.command != "" && !tt.healthOK {
				cmds["docker exec cache redis-cli ping"] = mockCommand{err: errors.New("exit status 1")}
			}
			d := NewDockerRuntime(&mockRunner{commands: cmds}, "")
			got := d.Health(context.Background(), unit.Spec{ID: "cache", HealthCommand: tt.command})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDockerRuntime_Integration(t *testing.T) {
	skipIfNoDocker(t)

	d := NewDockerRuntime(utils.NewExecRunner(), "docker")
	assert.Equal(t, unit.PresenceAbsent, d.Presence(context.Background(), "bootctl-test-does-not-exist"))
}
