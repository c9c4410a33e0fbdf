package starter

import (
	"context"

	"bootctl/internal/unit"

	"golang.org/x/sync/errgroup"
)

// Group starts independent units concurrently and joins on all of them.
type Group struct {
	starter UnitStarter
}

// NewGroup returns a Group delegating each unit to s.
func NewGroup(s UnitStarter) *Group {
	return &Group{starter: s}
}

// RunAll starts every spec in its own goroutine and returns once all of them
// have resolved. A failing unit never cancels its siblings. The result is keyed
// by unit identifier, so specs must have distinct identifiers regardless of
// kind; a repeated identifier keeps only the last report.
func (g *Group) RunAll(ctx context.Context, specs []unit.Spec) map[string]Report {
	reports := make([]Report, len(specs))

	var eg errgroup.Group
	for i, spec := range specs {
		eg.Go(func() error {
			reports[i] = g.starter.Start(ctx, spec)
			return nil
		})
	}
	// Failures travel in the reports; Wait is only the join.
	_ = eg.Wait()

	out := make(map[string]Report, len(reports))
	for i, r := range reports {
		out[specs[i].ID] = r
	}
	return out
}
