package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"bootctl/internal/config"
	"bootctl/pkg/logging"
)

// Application is the main application structure that bootstraps and runs a boot.
type Application struct {
	config   *Config
	services *Services
	logFile  io.Closer
}

// NewApplication loads settings and phases, configures logging and wires the
// services.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.Settings == nil {
		settings, err := config.LoadSettings()
		if err != nil {
			return nil, err
		}
		cfg.Settings = settings
	}
	s := cfg.Settings

	logFile := initLogging(cfg)

	phases, defaults, err := config.LoadPhases(s)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load phases from %s and %s", s.PhasesFile, s.PhasesDir)
		closeQuietly(logFile)
		return nil, fmt.Errorf("failed to load phases: %w", err)
	}
	cfg.Phases = phases
	cfg.Defaults = defaults
	logging.Info("Bootstrap", "Loaded %d phase(s)", len(phases))

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		closeQuietly(logFile)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
		logFile:  logFile,
	}, nil
}

// Run executes one boot.
func (a *Application) Run(ctx context.Context) error {
	return runBoot(ctx, a.config, a.services)
}

// Close releases the log file.
func (a *Application) Close() error {
	if a.logFile == nil {
		return nil
	}
	return a.logFile.Close()
}

// initLogging sends logs to the console and, when it can be opened, the log file.
func initLogging(cfg *Config) io.Closer {
	level, _ := logging.ParseLevel(cfg.Settings.LogLevel)
	if cfg.Debug {
		level = logging.LevelDebug
	}

	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}

	f, err := logging.OpenLogFile(cfg.Settings.LogFile)
	if err != nil {
		logging.Init(level, console)
		logging.Warn("Bootstrap", "Logging to console only: %v", err)
		return nil
	}
	logging.Init(level, io.MultiWriter(console, f))
	return f
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
