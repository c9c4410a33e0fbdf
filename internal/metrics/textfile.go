package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FileName is the textfile written into the collector directory.
const FileName = "bootctl.prom"

const namespace = "bootctl"

// ExportInput is everything the exporter publishes for one run.
type ExportInput struct {
	Report PhaseTimingReport
	// Succeeded is true when the run completed without entering recovery.
	Succeeded bool
	// SuccessCount is the number of successful runs recorded so far, this run
	// included. Negative when unknown; the counter is then omitted.
	SuccessCount int64
	// LastSuccess is the most recent successful run before this one.
	LastSuccess time.Time
	Now         time.Time
}

// Exporter writes run metrics to a textfile collector directory.
type Exporter struct {
	dir string
}

// NewExporter returns an Exporter writing into dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

// Path returns the full path of the exported file.
func (e *Exporter) Path() string {
	return filepath.Join(e.dir, FileName)
}

// Export renders in into a private registry and writes it atomically.
func (e *Exporter) Export(in ExportInput) error {
	reg, err := buildRegistry(in)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory %s: %w", e.dir, err)
	}
	if err := prometheus.WriteToTextfile(e.Path(), reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", e.Path(), err)
	}
	return nil
}

func buildRegistry(in ExportInput) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()

	total := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "boot_duration_seconds",
		Help:      "Sum of phase durations of the last boot run.",
	})
	total.Set(in.Report.Total.Seconds())

	within := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "boot_within_target",
		Help:      "1 when the last boot run finished within the target duration.",
	})
	if in.Report.WithinTarget {
		within.Set(1)
	}

	target := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "boot_target_seconds",
		Help:      "Configured target boot duration.",
	})
	target.Set(in.Report.Target.Seconds())

	succeeded := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "boot_succeeded",
		Help:      "1 when the last boot run completed without entering recovery.",
	})
	if in.Succeeded {
		succeeded.Set(1)
	}

	phaseDuration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "phase_duration_seconds",
		Help:      "Wall-clock duration of each boot phase.",
	}, []string{"phase"})
	phaseSucceeded := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "phase_succeeded",
		Help:      "1 when the boot phase succeeded.",
	}, []string{"phase"})
	for _, p := range in.Report.Phases {
		phaseDuration.WithLabelValues(p.Name).Set(p.Duration.Seconds())
		v := 0.0
		if p.Status == "SUCCEEDED" {
			v = 1
		}
		phaseSucceeded.WithLabelValues(p.Name).Set(v)
	}

	collectors := []prometheus.Collector{total, within, target, succeeded, phaseDuration, phaseSucceeded}

	lastSuccess := in.LastSuccess
	if in.Succeeded {
		lastSuccess = in.Now
	}
	if !lastSuccess.IsZero() {
		ts := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boot_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful boot run.",
		})
		ts.Set(float64(lastSuccess.UnixNano()) / 1e9)
		collectors = append(collectors, ts)
	}

	if in.SuccessCount >= 0 {
		count := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boot_success_total",
			Help:      "Number of successful boot runs recorded on this host.",
		})
		count.Add(float64(in.SuccessCount))
		collectors = append(collectors, count)
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return reg, nil
}
