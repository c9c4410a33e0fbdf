package config

import (
	"time"
)

// PhaseFile is the on-disk declaration of the boot sequence.
type PhaseFile struct {
	Defaults UnitDefaults      `yaml:"defaults,omitempty"`
	Phases   []PhaseDefinition `yaml:"phases"`
}

// UnitDefaults fill in unit fields a definition leaves unset.
type UnitDefaults struct {
	MaxAttempts int            `yaml:"maxAttempts,omitempty"`
	Timeout     time.Duration  `yaml:"timeout,omitempty"`
	Delay       *time.Duration `yaml:"delay,omitempty"` // nil means unset; zero is a valid delay
	Health      string         `yaml:"health,omitempty"`
}

// PhaseDefinition declares one phase. Ordinals follow list order.
type PhaseDefinition struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Severity    string           `yaml:"severity"` // critical, degraded or informational
	Parallel    bool             `yaml:"parallel,omitempty"`
	Workload    bool             `yaml:"workload,omitempty"` // gated by BOOTCTL_WORKLOAD_ENABLED
	Commands    []string         `yaml:"commands,omitempty"`
	Units       []UnitDefinition `yaml:"units,omitempty"`
}

// UnitDefinition declares one unit inside a phase.
type UnitDefinition struct {
	Kind          string         `yaml:"kind,omitempty"` // service (default) or container
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name,omitempty"`
	MaxAttempts   int            `yaml:"maxAttempts,omitempty"`
	Timeout       time.Duration  `yaml:"timeout,omitempty"`
	Delay         *time.Duration `yaml:"delay,omitempty"`
	Health        string         `yaml:"health,omitempty"` // none, started or healthy
	HealthCommand string         `yaml:"healthCommand,omitempty"`
}
