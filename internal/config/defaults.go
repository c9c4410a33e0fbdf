package config

import (
	"time"

	"bootctl/internal/unit"
)

const (
	DefaultMaxAttempts = 3
	DefaultTimeout     = 60 * time.Second
	DefaultDelay       = 5 * time.Second
	DefaultHealth      = string(unit.HealthStarted)
)

// GetDefaultUnitDefaults returns the built-in unit defaults that phase files
// and drop-ins are layered on.
func GetDefaultUnitDefaults() UnitDefaults {
	delay := DefaultDelay
	return UnitDefaults{
		MaxAttempts: DefaultMaxAttempts,
		Timeout:     DefaultTimeout,
		Delay:       &delay,
		Health:      DefaultHealth,
	}
}

// GetDefaultPhaseFile is the base layer: defaults only, no phases.
func GetDefaultPhaseFile() PhaseFile {
	return PhaseFile{Defaults: GetDefaultUnitDefaults()}
}
