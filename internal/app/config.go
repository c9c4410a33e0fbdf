package app

import (
	"io"

	"bootctl/internal/config"
	"bootctl/internal/orchestrator"
	"bootctl/internal/recovery"
	"bootctl/internal/utils"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of BOOTCTL_LOG_LEVEL.
	Debug bool

	// Settings are loaded from the environment when nil.
	Settings *config.Settings

	// Filled in by NewApplication from the phase file layers.
	Phases   []orchestrator.Phase
	Defaults config.UnitDefaults

	// Console receives log output next to the log file. Defaults to stdout.
	Console io.Writer

	// Runner and Network replace the host-facing backends; nil selects the real ones.
	Runner  utils.Runner
	Network recovery.Network
}

// NewConfig creates a new application configuration
func NewConfig(debug bool) *Config {
	return &Config{Debug: debug}
}
