package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"

	"bootctl/pkg/logging"
)

// EnvPrefix is prepended to every settings variable.
const EnvPrefix = "BOOTCTL_"

// Settings is the process configuration read from the environment.
type Settings struct {
	LogFile  string `env:"LOG_FILE" envDefault:"/var/log/bootctl/bootctl.log"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	LockFile string `env:"LOCK_FILE" envDefault:"/run/bootctl/bootctl.lock"`
	PidFile  string `env:"PID_FILE" envDefault:"/run/bootctl/bootctl.pid"`

	TargetDuration time.Duration `env:"TARGET_DURATION" envDefault:"5m"`

	// Feature toggles
	MetricsEnabled     bool `env:"METRICS_ENABLED" envDefault:"true"`
	RecoveryEnabled    bool `env:"RECOVERY_ENABLED" envDefault:"true"`
	WorkloadEnabled    bool `env:"WORKLOAD_ENABLED" envDefault:"true"`
	PhaseTimingEnabled bool `env:"PHASE_TIMING_ENABLED" envDefault:"true"`
	HistoryEnabled     bool `env:"HISTORY_ENABLED" envDefault:"true"`

	MetricsDir string `env:"METRICS_DIR" envDefault:"/var/lib/node_exporter/textfile_collector"`
	HistoryDB  string `env:"HISTORY_DB" envDefault:"/var/lib/bootctl/history.db"`

	PhasesFile string `env:"PHASES_FILE" envDefault:"/etc/bootctl/phases.yaml"`
	PhasesDir  string `env:"PHASES_DIR" envDefault:"/etc/bootctl/phases.d"`

	HealthPollInterval time.Duration `env:"HEALTH_POLL_INTERVAL" envDefault:"2s"`
	ContainerRuntime   string        `env:"CONTAINER_RUNTIME" envDefault:"docker"`
	Systemctl          string        `env:"SYSTEMCTL" envDefault:"systemctl"`

	FallbackInterface   string `env:"FALLBACK_INTERFACE" envDefault:"eth0"`
	FallbackAddress     string `env:"FALLBACK_ADDRESS" envDefault:"192.168.1.250/24"`
	RemoteAccessService string `env:"REMOTE_ACCESS_SERVICE" envDefault:"ssh"`

	SnapshotCommand string        `env:"SNAPSHOT_COMMAND"`
	SnapshotTimeout time.Duration `env:"SNAPSHOT_TIMEOUT" envDefault:"2m"`
}

// LoadSettings reads Settings from the process environment.
func LoadSettings() (*Settings, error) {
	s := &Settings{}
	if err := env.ParseWithOptions(s, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// Validate checks the settings for values the run cannot work with.
func (s *Settings) Validate() error {
	if _, ok := logging.ParseLevel(s.LogLevel); !ok {
		return fmt.Errorf("unknown log level %q", s.LogLevel)
	}
	if s.LockFile == "" {
		return errors.New("lock file path is required")
	}
	if s.TargetDuration < 0 {
		return fmt.Errorf("target duration must not be negative, got %s", s.TargetDuration)
	}
	if s.HealthPollInterval <= 0 {
		return fmt.Errorf("health poll interval must be positive, got %s", s.HealthPollInterval)
	}
	if s.ContainerRuntime == "" {
		return errors.New("container runtime is required")
	}
	if s.Systemctl == "" {
		return errors.New("systemctl path is required")
	}
	if s.RecoveryEnabled {
		if _, _, err := net.ParseCIDR(s.FallbackAddress); err != nil {
			return fmt.Errorf("fallback address %q is not in CIDR notation", s.FallbackAddress)
		}
		if s.FallbackInterface == "" {
			return errors.New("fallback interface is required when recovery is enabled")
		}
	}
	return nil
}

// LogDir is the directory holding the log file and the recovery artifact.
func (s *Settings) LogDir() string {
	return filepath.Dir(s.LogFile)
}
