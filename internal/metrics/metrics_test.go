package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Finalize(t *testing.T) {
	r := NewRecorder(10*time.Second, true)
	r.Record(2, "network", "SUCCEEDED", 3*time.Second)
	r.Record(1, "core", "SUCCEEDED", 2*time.Second)
	r.Record(3, "workloads", "SKIPPED", 0)

	report := r.Finalize()

	assert.Equal(t, 5*time.Second, report.Total)
	assert.True(t, report.WithinTarget)
	require.Len(t, report.Phases, 3)
	assert.Equal(t, "core", report.Phases[0].Name)
	assert.Equal(t, "network", report.Phases[1].Name)
	assert.Equal(t, "SKIPPED", report.Phases[2].Status)

	d, ok := report.Duration(2)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
	_, ok = report.Duration(9)
	assert.False(t, ok)
}

func TestRecorder_TargetExceeded(t *testing.T) {
	r := NewRecorder(time.Second, true)
	r.Record(1, "core", "SUCCEEDED", 1500*time.Millisecond)
	assert.False(t, r.Finalize().WithinTarget)
}

func TestRecorder_NoTarget(t *testing.T) {
	r := NewRecorder(0, true)
	r.Record(1, "core", "SUCCEEDED", time.Hour)
	assert.True(t, r.Finalize().WithinTarget)
}

func TestRecorder_PerPhaseDisabledKeepsTotal(t *testing.T) {
	r := NewRecorder(time.Minute, false)
	r.Record(1, "core", "SUCCEEDED", time.Second)
	r.Record(2, "network", "FAILED", 2*time.Second)

	report := r.Finalize()
	assert.Empty(t, report.Phases)
	assert.Equal(t, 3*time.Second, report.Total)
}

func TestExporter_WritesTextfile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "textfile_collector")
	e := NewExporter(dir)

	r := NewRecorder(time.Minute, true)
	r.Record(1, "core", "SUCCEEDED", 1500*time.Millisecond)
	r.Record(2, "workloads", "FAILED", 2*time.Second)

	now := time.Unix(1700000000, 0)
	err := e.Export(ExportInput{
		Report:       r.Finalize(),
		Succeeded:    true,
		SuccessCount: 7,
		Now:          now,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "bootctl_boot_duration_seconds 3.5")
	assert.Contains(t, out, `bootctl_phase_duration_seconds{phase="core"} 1.5`)
	assert.Contains(t, out, `bootctl_phase_duration_seconds{phase="workloads"} 2`)
	assert.Contains(t, out, `bootctl_phase_succeeded{phase="workloads"} 0`)
	assert.Contains(t, out, "bootctl_boot_success_total 7")
	assert.Contains(t, out, "bootctl_boot_last_success_timestamp_seconds 1.7e+09")
	assert.Contains(t, out, "bootctl_boot_within_target 1")
}

func TestExporter_FailedRunKeepsPreviousSuccess(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(dir)

	err := e.Export(ExportInput{
		Report:       NewRecorder(time.Minute, true).Finalize(),
		Succeeded:    false,
		SuccessCount: -1,
		LastSuccess:  time.Unix(1600000000, 0),
		Now:          time.Unix(1700000000, 0),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(e.Path())
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "bootctl_boot_succeeded 0")
	assert.Contains(t, out, "bootctl_boot_last_success_timestamp_seconds 1.6e+09")
	assert.NotContains(t, out, "bootctl_boot_success_total")
}
