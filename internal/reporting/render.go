// Package reporting renders run history and the declared boot plan for the
// operator-facing subcommands.
package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"bootctl/internal/history"
	"bootctl/internal/orchestrator"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	okStyle   = cellStyle.Foreground(lipgloss.Color("42"))
	warnStyle = cellStyle.Foreground(lipgloss.Color("214"))
	failStyle = cellStyle.Foreground(lipgloss.Color("196"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

// RenderHistory renders runs, newest first, as a table.
func RenderHistory(runs []history.RunRecord) string {
	if len(runs) == 0 {
		return "No boot runs recorded yet.\n"
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		target := "yes"
		if !r.WithinTarget {
			target = "no"
		}
		failed := strings.Join(r.FailedPhases, ", ")
		if failed == "" {
			failed = "-"
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format(time.DateTime),
			r.Status,
			r.TotalDuration.Round(time.Millisecond).String(),
			target,
			failed,
			shortID(r.RunID),
		})
	}

	t := newTable("STARTED", "STATUS", "DURATION", "IN TARGET", "FAILED PHASES", "RUN").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 {
				return statusStyle(rows[row][1])
			}
			return cellStyle
		})

	return titleStyle.Render(fmt.Sprintf("Last %d boot run(s)", len(runs))) + "\n" + t.String() + "\n"
}

// RenderPlan renders the declared phase sequence.
func RenderPlan(phases []orchestrator.Phase) string {
	rows := make([][]string, 0, len(phases))
	for _, p := range phases {
		mode := "sequential"
		if p.Parallel {
			mode = "parallel"
		}
		if p.Workload {
			mode += ", workload"
		}
		ids := make([]string, 0, len(p.Units))
		for _, u := range p.Units {
			ids = append(ids, fmt.Sprintf("%s:%s", u.Kind, u.ID))
		}
		units := strings.Join(ids, "\n")
		if units == "" {
			units = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(p.Ordinal),
			p.Name,
			p.Severity.String(),
			mode,
			strconv.Itoa(len(p.Commands)),
			units,
		})
	}

	t := newTable("#", "PHASE", "SEVERITY", "MODE", "COMMANDS", "UNITS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 {
				return severityStyle(rows[row][2])
			}
			return cellStyle
		})

	return titleStyle.Render(fmt.Sprintf("Boot plan: %d phase(s)", len(phases))) + "\n" + t.String() + "\n"
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case orchestrator.RunCompleted.String():
		return okStyle
	case orchestrator.RunRecovery.String():
		return failStyle
	default:
		return warnStyle
	}
}

func severityStyle(severity string) lipgloss.Style {
	switch severity {
	case orchestrator.SeverityCritical.String():
		return failStyle
	case orchestrator.SeverityDegraded.String():
		return warnStyle
	default:
		return cellStyle
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
