// Package metrics accumulates phase timings for a run and exports them for a
// node_exporter style textfile collector.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// PhaseTiming is one phase's entry in the timing report.
type PhaseTiming struct {
	Ordinal  int
	Name     string
	Status   string
	Duration time.Duration
}

// PhaseTimingReport is the finalized timing view of a run.
type PhaseTimingReport struct {
	// Phases is ordered by ordinal. Empty when per-phase capture is off.
	Phases       []PhaseTiming
	Total        time.Duration
	Target       time.Duration
	WithinTarget bool
}

// Duration returns the recorded duration for ordinal.
func (r PhaseTimingReport) Duration(ordinal int) (time.Duration, bool) {
	for _, p := range r.Phases {
		if p.Ordinal == ordinal {
			return p.Duration, true
		}
	}
	return 0, false
}

// Recorder accumulates phase durations. It is purely additive.
type Recorder struct {
	mu       sync.Mutex
	target   time.Duration
	perPhase bool
	phases   map[int]PhaseTiming
	total    time.Duration
}

// NewRecorder returns a Recorder comparing the total against target. With
// perPhase false only the total is kept.
func NewRecorder(target time.Duration, perPhase bool) *Recorder {
	return &Recorder{
		target:   target,
		perPhase: perPhase,
		phases:   make(map[int]PhaseTiming),
	}
}

// Record adds a phase's duration. Recording the same ordinal twice replaces the
// per-phase entry but both durations count toward the total.
func (r *Recorder) Record(ordinal int, name, status string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total += d
	if r.perPhase {
		r.phases[ordinal] = PhaseTiming{Ordinal: ordinal, Name: name, Status: status, Duration: d}
	}
}

// Finalize builds the report. The target is met when it is unset or the total
// does not exceed it.
func (r *Recorder) Finalize() PhaseTimingReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := PhaseTimingReport{
		Total:        r.total,
		Target:       r.target,
		WithinTarget: r.target <= 0 || r.total <= r.target,
	}
	for _, p := range r.phases {
		report.Phases = append(report.Phases, p)
	}
	sort.Slice(report.Phases, func(i, j int) bool {
		return report.Phases[i].Ordinal < report.Phases[j].Ordinal
	})
	return report
}
