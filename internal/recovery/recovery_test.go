package recovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bootctl/internal/health"
	"bootctl/internal/starter"
	"bootctl/internal/unit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNetwork struct {
	calls []string
	err   error
}

func (f *fakeNetwork) BringUp(ctx context.Context, iface, cidr string) error {
	f.calls = append(f.calls, iface+" "+cidr)
	return f.err
}

type fakeStarter struct {
	started []string
	outcome unit.Outcome
}

func (f *fakeStarter) Start(ctx context.Context, spec unit.Spec) starter.Report {
	f.started = append(f.started, spec.ID)
	return starter.Report{ID: spec.ID, Name: spec.Name(), Outcome: f.outcome, Attempts: 1}
}

// absentController reports every unit as not installed.
type absentController struct{}

func (absentController) Presence(context.Context, string) unit.Presence { return unit.PresenceAbsent }
func (absentController) State(context.Context, string) (unit.State, error) {
	return unit.StateUnknown, errors.New("not loaded")
}
func (absentController) Start(context.Context, string) error { return errors.New("not loaded") }
func (absentController) Health(context.Context, unit.Spec) unit.Health { return unit.HealthUnsupported }
func (absentController) For(unit.Kind) (unit.Controller, error) { return absentController{}, nil }

func testConfig(t *testing.T, enabled bool) Config {
	dir := t.TempDir()
	return Config{
		Enabled:         enabled,
		Interface:       "eth0",
		FallbackAddress: "192.168.1.250/24",
		RemoteAccess:    unit.Spec{Kind: unit.KindOSService, ID: "ssh", FriendlyName: "SSH", MaxAttempts: 3, PerAttemptTimeout: time.Second},
		LogDir:          dir,
		LogFile:         filepath.Join(dir, "bootctl.log"),
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestMode_Enter(t *testing.T) {
	cfg := testConfig(t, true)
	net := &fakeNetwork{}
	st := &fakeStarter{outcome: unit.OutcomeSucceeded}
	m := New(cfg, net, st)
	m.now = fixedNow

	rec := m.Enter(context.Background(), Trigger{
		Ordinal:     2,
		Phase:       "network",
		Reason:      "unit(s) failed: systemd-networkd",
		FailedUnits: []string{"systemd-networkd"},
	})

	assert.Equal(t, []string{"eth0 192.168.1.250/24"}, net.calls)
	assert.Equal(t, []string{"ssh"}, st.started)
	assert.NoError(t, rec.NetworkErr)
	assert.NoError(t, rec.RemoteAccessErr)
	assert.NoError(t, rec.ArtifactErr)
	assert.True(t, rec.Posture)
	assert.Equal(t, "network", rec.TriggeringPhase)
	assert.Equal(t, fixedNow(), rec.Timestamp)
	require.NotEmpty(t, rec.Steps)
	assert.Contains(t, rec.Steps[0], "Connect to 192.168.1.250")

	data, err := os.ReadFile(filepath.Join(cfg.LogDir, ArtifactName))
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "Triggering phase: network (phase 2)")
	assert.Contains(t, out, "Reason:           unit(s) failed: systemd-networkd")
	assert.Contains(t, out, "Fallback address: 192.168.1.250/24 on eth0")
	assert.Contains(t, out, "2026-03-01T12:00:00Z")
	assert.Contains(t, out, "  1. Connect to 192.168.1.250")
	assert.Contains(t, out, "systemd-networkd (systemctl status")
}

func TestMode_EnterDisabled(t *testing.T) {
	cfg := testConfig(t, false)
	net := &fakeNetwork{}
	st := &fakeStarter{outcome: unit.OutcomeSucceeded}
	m := New(cfg, net, st)

	rec := m.Enter(context.Background(), Trigger{Ordinal: 1, Phase: "core"})

	assert.Empty(t, net.calls)
	assert.Empty(t, st.started)
	assert.False(t, rec.Posture)
	assert.Equal(t, "critical phase core failed", rec.Reason)
	assert.Contains(t, rec.Steps[0], "NOT available")

	data, err := os.ReadFile(m.ArtifactPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "Fallback network: disabled")
}

func TestMode_EnterStepFailures(t *testing.T) {
	cfg := testConfig(t, true)
	net := &fakeNetwork{err: errors.New("interface eth0 not found")}
	st := &fakeStarter{outcome: unit.OutcomeFailed}
	m := New(cfg, net, st)

	rec := m.Enter(context.Background(), Trigger{Ordinal: 1, Phase: "core", Reason: "boom"})

	assert.Error(t, rec.NetworkErr)
	assert.Error(t, rec.RemoteAccessErr)
	assert.NoError(t, rec.ArtifactErr)
	assert.Contains(t, rec.Steps[0], "NOT available")

	data, err := os.ReadFile(rec.ArtifactPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Fallback network: FAILED: interface eth0 not found")
	assert.Contains(t, string(data), "Remote access:    FAILED:")
}

func TestMode_EnterRemoteAccessNotInstalled(t *testing.T) {
	cfg := testConfig(t, true)
	net := &fakeNetwork{}
	st := starter.New(absentController{}, health.NewProber(time.Millisecond))
	m := New(cfg, net, st)

	rec := m.Enter(context.Background(), Trigger{Ordinal: 2, Phase: "network", Reason: "unit(s) failed: networkd"})

	require.Error(t, rec.RemoteAccessErr)
	assert.Contains(t, rec.RemoteAccessErr.Error(), "not installed")
	assert.NoError(t, rec.NetworkErr)
	assert.Contains(t, rec.Steps[0], "NOT available")
	assert.NotContains(t, rec.Steps[0], "using SSH")

	data, err := os.ReadFile(rec.ArtifactPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Remote access:    FAILED: remote access service SSH is not installed")
}

func TestHostPart(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"192.168.1.250/24", "192.168.1.250"},
		{"fd00::5/64", "fd00::5"},
		{"not-an-address", "not-an-address"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, hostPart(tt.in))
		})
	}
}

func TestNetlinkNetwork_RejectsBadAddress(t *testing.T) {
	err := NetlinkNetwork{}.BringUp(context.Background(), "lo", "not-an-address")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid fallback address")
}
