package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bootctl/internal/unit"

	"github.com/stretchr/testify/assert"
)

// fakeController serves scripted state and health readings.
type fakeController struct {
	mu       sync.Mutex
	presence unit.Presence
	state    unit.State
	stateErr error
	healths  []unit.Health // consumed in order; the last one repeats
	reads    int
}

func (f *fakeController) Presence(context.Context, string) unit.Presence { return f.presence }

func (f *fakeController) State(context.Context, string) (unit.State, error) {
	return f.state, f.stateErr
}

func (f *fakeController) Start(context.Context, string) error { return nil }

func (f *fakeController) Health(context.Context, unit.Spec) unit.Health {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if len(f.healths) == 0 {
		return unit.HealthUnsupported
	}
	h := f.healths[0]
	if len(f.healths) > 1 {
		f.healths = f.healths[1:]
	}
	return h
}

func spec() unit.Spec {
	return unit.Spec{Kind: unit.KindContainer, ID: "db"}
}

func TestProbe_None(t *testing.T) {
	p := NewProber(time.Millisecond)
	assert.Equal(t, Ready, p.Probe(context.Background(), &fakeController{state: unit.StateFailed}, spec(), unit.HealthNone, time.Second))
}

func TestProbe_Started(t *testing.T) {
	tests := []struct {
		name string
		ctrl *fakeController
		want Result
	}{
		{name: "running", ctrl: &fakeController{state: unit.StateRunning}, want: Ready},
		{name: "exited ok", ctrl: &fakeController{state: unit.StateExited}, want: Ready},
		{name: "inactive", ctrl: &fakeController{state: unit.StateInactive}, want: TimedOut},
		{name: "failed", ctrl: &fakeController{state: unit.StateFailed}, want: TimedOut},
		{name: "state error on absent unit", ctrl: &fakeController{stateErr: errors.New("gone"), presence: unit.PresenceAbsent}, want: Ready},
		{name: "state error on present unit", ctrl: &fakeController{stateErr: errors.New("bus"), presence: unit.PresencePresent}, want: TimedOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProber(time.Millisecond)
			assert.Equal(t, tt.want, p.Probe(context.Background(), tt.ctrl, spec(), unit.HealthStarted, time.Second))
		})
	}
}

func TestProbe_HealthyEventually(t *testing.T) {
	ctrl := &fakeController{healths: []unit.Health{unit.HealthStarting, unit.HealthStarting, unit.HealthIsHealthy}}
	var waits []time.Duration
	p := NewProber(2 * time.Second)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	assert.Equal(t, Ready, p.Probe(context.Background(), ctrl, spec(), unit.HealthHealthy, time.Minute))
	assert.Equal(t, 3, ctrl.reads)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, waits)
}

func TestProbe_HealthyTimesOut(t *testing.T) {
	ctrl := &fakeController{healths: []unit.Health{unit.HealthUnhealthy}}
	p := NewProber(5 * time.Millisecond)

	start := time.Now()
	got := p.Probe(context.Background(), ctrl, spec(), unit.HealthHealthy, 30*time.Millisecond)

	assert.Equal(t, TimedOut, got)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Greater(t, ctrl.reads, 1)
}

func TestProbe_UnsupportedHealthIsReady(t *testing.T) {
	ctrl := &fakeController{}
	p := NewProber(time.Millisecond)
	assert.Equal(t, Ready, p.Probe(context.Background(), ctrl, spec(), unit.HealthHealthy, time.Second))
	assert.Equal(t, 1, ctrl.reads)
}

func TestProbe_CancelledContextAbortsPoll(t *testing.T) {
	ctrl := &fakeController{healths: []unit.Health{unit.HealthStarting}}
	p := NewProber(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan Result, 1)
	go func() { done <- p.Probe(ctx, ctrl, spec(), unit.HealthHealthy, time.Hour) }()

	select {
	case r := <-done:
		assert.Equal(t, TimedOut, r)
	case <-time.After(2 * time.Second):
		t.Fatal("probe did not observe cancellation")
	}
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
