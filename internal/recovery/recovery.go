// Package recovery implements the terminal posture entered after a critical
// phase fails: a fallback network address, the remote-access service and a
// plain-text artifact telling the operator what to do next.
package recovery

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"bootctl/internal/starter"
	"bootctl/internal/unit"
	"bootctl/pkg/logging"
)

const subsystem = "Recovery"

// ArtifactName is the file written into the log directory on recovery.
const ArtifactName = "RECOVERY-REQUIRED.txt"

// Trigger identifies the phase failure that caused recovery.
type Trigger struct {
	Ordinal     int
	Phase       string
	Reason      string
	FailedUnits []string
}

// Record is written once per recovery and never modified afterwards.
type Record struct {
	TriggeringPhase string
	Ordinal         int
	Reason          string
	FallbackAddress string
	Interface       string
	Timestamp       time.Time
	Steps           []string

	// NetworkErr and RemoteAccessErr are nil when the step succeeded or was not attempted.
	NetworkErr      error
	RemoteAccessErr error
	// Posture is false when recovery was disabled and nothing was brought up.
	Posture      bool
	ArtifactPath string
	ArtifactErr  error
}

// Network brings the fallback address up on an interface.
type Network interface {
	BringUp(ctx context.Context, iface, cidr string) error
}

// Config is the static configuration of recovery mode.
type Config struct {
	// Enabled controls whether the fallback network and remote access are brought up.
	// The artifact is written either way.
	Enabled         bool
	Interface       string
	FallbackAddress string
	RemoteAccess    unit.Spec
	LogDir          string
	LogFile         string
}

// Mode enters recovery posture.
type Mode struct {
	cfg     Config
	network Network
	starter starter.UnitStarter
	now     func() time.Time
}

// New returns a Mode. network and s may be nil when cfg.Enabled is false.
func New(cfg Config, network Network, s starter.UnitStarter) *Mode {
	return &Mode{
		cfg:     cfg,
		network: network,
		starter: s,
		now:     time.Now,
	}
}

// ArtifactPath returns where the recovery artifact is written.
func (m *Mode) ArtifactPath() string {
	return filepath.Join(m.cfg.LogDir, ArtifactName)
}

// Enter brings up the fallback access path and writes the artifact. Failures of
// individual steps are recorded in the returned Record rather than aborting.
func (m *Mode) Enter(ctx context.Context, t Trigger) Record {
	rec := Record{
		TriggeringPhase: t.Phase,
		Ordinal:         t.Ordinal,
		Reason:          t.Reason,
		FallbackAddress: m.cfg.FallbackAddress,
		Interface:       m.cfg.Interface,
		Timestamp:       m.now().UTC(),
		Posture:         m.cfg.Enabled,
	}
	if rec.Reason == "" {
		rec.Reason = fmt.Sprintf("critical phase %s failed", t.Phase)
	}

	logging.Error(subsystem, nil, "Entering recovery mode after phase %s: %s", t.Phase, rec.Reason)

	if m.cfg.Enabled {
		if m.network != nil {
			rec.NetworkErr = m.network.BringUp(ctx, m.cfg.Interface, m.cfg.FallbackAddress)
		} else {
			rec.NetworkErr = fmt.Errorf("no network backend configured")
		}
		if rec.NetworkErr != nil {
			logging.Error(subsystem, rec.NetworkErr, "Failed to bring up fallback address %s on %s", m.cfg.FallbackAddress, m.cfg.Interface)
		} else {
			logging.Info(subsystem, "Fallback address %s is up on %s", m.cfg.FallbackAddress, m.cfg.Interface)
		}

		rec.RemoteAccessErr = m.startRemoteAccess(ctx)
	} else {
		logging.Warn(subsystem, "Recovery posture disabled; fallback network and remote access left untouched")
	}

	rec.Steps = remediationSteps(m.cfg, t, rec)
	rec.ArtifactPath = m.ArtifactPath()
	if err := WriteArtifact(rec.ArtifactPath, rec); err != nil {
		rec.ArtifactErr = err
		logging.Error(subsystem, err, "Failed to write recovery artifact")
	} else {
		logging.Info(subsystem, "Recovery instructions written to %s", rec.ArtifactPath)
	}
	return rec
}

func (m *Mode) startRemoteAccess(ctx context.Context) error {
	if m.cfg.RemoteAccess.ID == "" {
		return nil
	}
	if m.starter == nil {
		return fmt.Errorf("no starter configured for %s", m.cfg.RemoteAccess.Name())
	}
	report := m.starter.Start(ctx, m.cfg.RemoteAccess)
	if report.NotApplicable {
		err := fmt.Errorf("remote access service %s is not installed", report.Name)
		logging.Error(subsystem, err, "Remote access is not available")
		return err
	}
	if report.Outcome != unit.OutcomeSucceeded {
		err := fmt.Errorf("remote access service %s failed after %d attempt(s)", report.Name, report.Attempts)
		logging.Error(subsystem, err, "Remote access is not available")
		return err
	}
	logging.Info(subsystem, "Remote access service %s is up", report.Name)
	return nil
}

func remediationSteps(cfg Config, t Trigger, rec Record) []string {
	host := hostPart(cfg.FallbackAddress)
	var steps []string

	if rec.Posture && rec.NetworkErr == nil && rec.RemoteAccessErr == nil {
		steps = append(steps, fmt.Sprintf("Connect to %s (interface %s) using %s.", host, cfg.Interface, cfg.RemoteAccess.Name()))
	} else {
		steps = append(steps, "Remote fallback access is NOT available: use the local console or out-of-band management.")
	}

	logRef := cfg.LogFile
	if logRef == "" {
		logRef = cfg.LogDir
	}
	steps = append(steps, fmt.Sprintf("Read the boot log at %s and look for phase %q.", logRef, t.Phase))

	if len(t.FailedUnits) > 0 {
		steps = append(steps, fmt.Sprintf("Inspect the failed unit(s): %s (systemctl status <unit> / docker logs <container>).", strings.Join(t.FailedUnits, ", ")))
	} else {
		steps = append(steps, fmt.Sprintf("Re-run the commands of phase %q by hand to see their output.", t.Phase))
	}

	steps = append(steps,
		"Fix the cause, then reboot or run bootctl again; the sequence restarts from phase 1.",
		"Delete this file once the host is healthy.",
	)
	return steps
}

// hostPart strips the prefix length from a CIDR address.
func hostPart(cidr string) string {
	if ip, _, err := net.ParseCIDR(cidr); err == nil {
		return ip.String()
	}
	return cidr
}
