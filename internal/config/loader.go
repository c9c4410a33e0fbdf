package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"bootctl/internal/orchestrator"
	"bootctl/internal/unit"
	"bootctl/pkg/logging"
)

const subsystem = "Config"

// ErrInvalidPhase is returned for phase declarations that cannot be built.
var ErrInvalidPhase = errors.New("invalid phase declaration")

// For mocking in tests
var osReadFile = os.ReadFile
var osReadDir = os.ReadDir

// LoadPhaseFile loads the boot sequence by layering the built-in defaults, the
// main phase file and every drop-in in dir (lexical order). Both file and dir
// are optional.
func LoadPhaseFile(file, dir string) (PhaseFile, error) {
	// 1. Start with the defaults
	pf := GetDefaultPhaseFile()

	// 2. Main phase file
	if file != "" {
		main, err := loadPhaseFileFrom(file)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logging.Warn(subsystem, "Phase file %s does not exist", file)
		case err != nil:
			return PhaseFile{}, fmt.Errorf("error loading phase file %s: %w", file, err)
		default:
			pf = mergePhaseFiles(pf, main)
		}
	}

	// 3. Drop-ins
	dropIns, err := dropInPaths(dir)
	if err != nil {
		return PhaseFile{}, err
	}
	for _, path := range dropIns {
		overlay, err := loadPhaseFileFrom(path)
		if err != nil {
			return PhaseFile{}, fmt.Errorf("error loading drop-in %s: %w", path, err)
		}
		logging.Debug(subsystem, "Applying drop-in %s", path)
		pf = mergePhaseFiles(pf, overlay)
	}

	return pf, nil
}

// LoadPhases loads and builds the boot sequence for s.
func LoadPhases(s *Settings) ([]orchestrator.Phase, UnitDefaults, error) {
	pf, err := LoadPhaseFile(s.PhasesFile, s.PhasesDir)
	if err != nil {
		return nil, UnitDefaults{}, err
	}
	phases, err := pf.Build()
	if err != nil {
		return nil, UnitDefaults{}, err
	}
	return phases, pf.Defaults, nil
}

func dropInPaths(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := osReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading drop-in directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// loadPhaseFileFrom loads a PhaseFile from a YAML file.
func loadPhaseFileFrom(path string) (PhaseFile, error) {
	var pf PhaseFile
	data, err := osReadFile(path)
	if err != nil {
		return PhaseFile{}, err
	}
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return PhaseFile{}, err
	}
	return pf, nil
}

// mergePhaseFiles merges overlay into base. Defaults override field by field.
// A phase whose name exists in base replaces it in place, other phases are
// appended in overlay order.
func mergePhaseFiles(base, overlay PhaseFile) PhaseFile {
	merged := base

	if overlay.Defaults.MaxAttempts != 0 {
		merged.Defaults.MaxAttempts = overlay.Defaults.MaxAttempts
	}
	if overlay.Defaults.Timeout != 0 {
		merged.Defaults.Timeout = overlay.Defaults.Timeout
	}
	if overlay.Defaults.Delay != nil {
		merged.Defaults.Delay = overlay.Defaults.Delay
	}
	if overlay.Defaults.Health != "" {
		merged.Defaults.Health = overlay.Defaults.Health
	}

	merged.Phases = append([]PhaseDefinition(nil), base.Phases...)
	index := make(map[string]int, len(merged.Phases))
	for i, p := range merged.Phases {
		index[p.Name] = i
	}
	for _, p := range overlay.Phases {
		if i, ok := index[p.Name]; ok {
			merged.Phases[i] = p
			continue
		}
		index[p.Name] = len(merged.Phases)
		merged.Phases = append(merged.Phases, p)
	}

	return merged
}

// Build converts the declarations into scheduler phases, numbering them from 1
// in list order and filling unit fields from the defaults.
func (pf PhaseFile) Build() ([]orchestrator.Phase, error) {
	if len(pf.Phases) == 0 {
		return nil, fmt.Errorf("%w: no phases declared", ErrInvalidPhase)
	}

	phases := make([]orchestrator.Phase, 0, len(pf.Phases))
	for i, def := range pf.Phases {
		severity, err := orchestrator.ParseSeverity(def.Severity)
		if err != nil {
			return nil, fmt.Errorf("%w: phase %q: %v", ErrInvalidPhase, def.Name, err)
		}

		p := orchestrator.Phase{
			Ordinal:     i + 1,
			Name:        def.Name,
			Description: def.Description,
			Severity:    severity,
			Parallel:    def.Parallel,
			Workload:    def.Workload,
			Commands:    def.Commands,
		}
		for _, u := range def.Units {
			spec, err := pf.Defaults.Spec(u)
			if err != nil {
				return nil, fmt.Errorf("%w: phase %q: %v", ErrInvalidPhase, def.Name, err)
			}
			p.Units = append(p.Units, spec)
		}
		phases = append(phases, p)
	}

	if err := orchestrator.ValidatePhases(phases); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhase, err)
	}
	return phases, nil
}

// Spec builds a validated unit spec from u, taking unset fields from d.
func (d UnitDefaults) Spec(u UnitDefinition) (unit.Spec, error) {
	kind := unit.KindOSService
	if u.Kind != "" {
		k, err := unit.ParseKind(u.Kind)
		if err != nil {
			return unit.Spec{}, fmt.Errorf("unit %s: %w", u.ID, err)
		}
		kind = k
	}

	health := u.Health
	if health == "" {
		health = d.Health
	}
	mode, err := unit.ParseHealthMode(health)
	if err != nil {
		return unit.Spec{}, fmt.Errorf("unit %s: %w", u.ID, err)
	}

	spec := unit.Spec{
		Kind:              kind,
		ID:                u.ID,
		FriendlyName:      u.Name,
		MaxAttempts:       firstNonZero(u.MaxAttempts, d.MaxAttempts, DefaultMaxAttempts),
		PerAttemptTimeout: firstNonZero(u.Timeout, d.Timeout, DefaultTimeout),
		HealthMode:        mode,
		InterAttemptDelay: DefaultDelay,
		HealthCommand:     u.HealthCommand,
	}
	switch {
	case u.Delay != nil:
		spec.InterAttemptDelay = *u.Delay
	case d.Delay != nil:
		spec.InterAttemptDelay = *d.Delay
	}

	if err := spec.Validate(); err != nil {
		return unit.Spec{}, err
	}
	return spec, nil
}

func firstNonZero[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// RemoteAccessSpec returns the unit started in recovery mode to keep the host
// reachable. The zero spec is returned when no service is configured.
func (s *Settings) RemoteAccessSpec(d UnitDefaults) (unit.Spec, error) {
	if s.RemoteAccessService == "" {
		return unit.Spec{}, nil
	}
	return d.Spec(UnitDefinition{ID: s.RemoteAccessService, Name: "remote access (" + s.RemoteAccessService + ")"})
}
