package app

import (
	"fmt"

	"bootctl/internal/containerizer"
	"bootctl/internal/health"
	"bootctl/internal/metrics"
	"bootctl/internal/orchestrator"
	"bootctl/internal/recovery"
	"bootctl/internal/runguard"
	"bootctl/internal/snapshot"
	"bootctl/internal/starter"
	"bootctl/internal/systemd"
	"bootctl/internal/unit"
	"bootctl/internal/utils"
)

// Services holds every component a boot run needs.
type Services struct {
	Runner    utils.Runner
	Starter   *starter.Starter
	Scheduler *orchestrator.Scheduler
	Recovery  *recovery.Mode
	Guard     *runguard.Guard
	Recorder  *metrics.Recorder

	// Optional; nil when disabled.
	Exporter *metrics.Exporter
	Snapshot snapshot.Taker
}

// InitializeServices wires the backends, starter, scheduler and recovery mode.
// Nothing here touches the host; that only happens once Run holds the lock.
func InitializeServices(cfg *Config) (*Services, error) {
	s := cfg.Settings

	runner := cfg.Runner
	if runner == nil {
		runner = utils.NewExecRunner()
	}

	dispatcher := unit.NewDispatcher(
		systemd.NewManager(runner, s.Systemctl),
		containerizer.NewDockerRuntime(runner, s.ContainerRuntime),
	)
	st := starter.New(dispatcher, health.NewProber(s.HealthPollInterval))

	remote, err := s.RemoteAccessSpec(cfg.Defaults)
	if err != nil {
		return nil, fmt.Errorf("invalid remote access service: %w", err)
	}

	network := cfg.Network
	if network == nil {
		network = recovery.NetlinkNetwork{}
	}
	mode := recovery.New(recovery.Config{
		Enabled:         s.RecoveryEnabled,
		Interface:       s.FallbackInterface,
		FallbackAddress: s.FallbackAddress,
		RemoteAccess:    remote,
		LogDir:          s.LogDir(),
		LogFile:         s.LogFile,
	}, network, st)

	recorder := metrics.NewRecorder(s.TargetDuration, s.PhaseTimingEnabled)

	sched, err := orchestrator.New(orchestrator.Config{
		Phases:           cfg.Phases,
		Starter:          st,
		Group:            starter.NewGroup(st),
		Runner:           runner,
		Recorder:         recorder,
		Escalator:        orchestrator.FailureEscalator{},
		Recoverer:        mode,
		WorkloadsEnabled: s.WorkloadEnabled,
	})
	if err != nil {
		return nil, err
	}

	services := &Services{
		Runner:    runner,
		Starter:   st,
		Scheduler: sched,
		Recovery:  mode,
		Guard:     runguard.New(runguard.Config{LockFile: s.LockFile, PidFile: s.PidFile}),
		Recorder:  recorder,
	}
	if s.MetricsEnabled {
		services.Exporter = metrics.NewExporter(s.MetricsDir)
	}
	if s.SnapshotCommand != "" {
		services.Snapshot = snapshot.NewExecTaker(runner, s.SnapshotCommand, s.SnapshotTimeout)
	}
	return services, nil
}
