package starter

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"bootctl/internal/unit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcStarter adapts a function to UnitStarter.
type funcStarter func(ctx context.Context, spec unit.Spec) Report

func (f funcStarter) Start(ctx context.Context, spec unit.Spec) Report { return f(ctx, spec) }

func TestGroup_JoinsAllUnits(t *testing.T) {
	var finished atomic.Int32
	fail := map[string]bool{"c1": true, "c4": true}

	g := NewGroup(funcStarter(func(ctx context.Context, spec unit.Spec) Report {
		// Failing units resolve first; the join must still wait for the slow ones.
		if !fail[spec.ID] {
			time.Sleep(20 * time.Millisecond)
		}
		finished.Add(1)
		outcome := unit.OutcomeSucceeded
		if fail[spec.ID] {
			outcome = unit.OutcomeFailed
		}
		return Report{ID: spec.ID, Outcome: outcome, Attempts: 1}
	}))

	var specs []unit.Spec
	for i := 0; i < 5; i++ {
		specs = append(specs, unit.Spec{Kind: unit.KindContainer, ID: fmt.Sprintf("c%d", i)})
	}

	results := g.RunAll(context.Background(), specs)

	require.Len(t, results, 5)
	assert.Equal(t, int32(5), finished.Load())

	var failed, succeeded int
	for _, r := range results {
		if r.Outcome == unit.OutcomeFailed {
			failed++
		} else {
			succeeded++
		}
	}
	assert.Equal(t, 2, failed)
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, unit.OutcomeFailed, results["c1"].Outcome)
	assert.Equal(t, unit.OutcomeSucceeded, results["c2"].Outcome)
}

func TestGroup_RunsConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	g := NewGroup(funcStarter(func(ctx context.Context, spec unit.Spec) Report {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		return Report{ID: spec.ID}
	}))

	specs := []unit.Spec{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	g.RunAll(context.Background(), specs)

	assert.Greater(t, peak.Load(), int32(1))
}

func TestGroup_Empty(t *testing.T) {
	g := NewGroup(funcStarter(func(context.Context, unit.Spec) Report {
		t.Fatal("no unit should be started")
		return Report{}
	}))
	assert.Empty(t, g.RunAll(context.Background(), nil))
}

func TestGroup_WithRealStarter(t *testing.T) {
	ok := &mockController{presence: unit.PresencePresent, state: unit.StateRunning}
	s, _ := newTestStarter(ok, &mockProber{})
	g := NewGroup(s)

	results := g.RunAll(context.Background(), []unit.Spec{testSpec(2)})
	assert.Equal(t, unit.OutcomeSucceeded, results["app.service"].Outcome)
}

func TestGroup_KeysBySpecIdentifier(t *testing.T) {
	g := NewGroup(funcStarter(func(context.Context, unit.Spec) Report {
		return Report{Outcome: unit.OutcomeSucceeded}
	}))

	results := g.RunAll(context.Background(), []unit.Spec{{ID: "a"}, {ID: "b"}})

	require.Len(t, results, 2)
	assert.Contains(t, results, "a")
	assert.Contains(t, results, "b")
}
