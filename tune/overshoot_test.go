package tune_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/servokit/servotune/tune"
)

func TestCommandTimes(t *testing.T) {
	sched := tune.NewStepSchedule(10, 3.0, 400, 2)
	if len(sched) != 5 {
		t.Fatalf("expected 5 phases, got %d", len(sched))
	}
	if sched.Transitions() != 4 {
		t.Errorf("expected 4 transitions, got %d", sched.Transitions())
	}
	want := []float64{0, 3, 6, 9, 12}
	if diff := cmp.Diff(want, sched.CommandTimes()); diff != "" {
		t.Errorf("command times mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduleAlternates(t *testing.T) {
	sched := tune.NewStepSchedule(15, 1.0, 200, 3)
	if len(sched) != 7 {
		t.Fatalf("expected 7 phases, got %d", len(sched))
	}
	for i, p := range sched {
		want := 0.0
		if i%2 == 1 {
			want = 15.0
		}
		if p.Target != want {
			t.Errorf("phase %d: expected target %g, got %g", i, want, p.Target)
		}
	}
	if sched.Duration() != 7 {
		t.Errorf("expected total duration 7, got %g", sched.Duration())
	}
}

func TestOvershootRising(t *testing.T) {
	// one up transition at t=3: 0 -> 10, peak 11 in the window
	sched := tune.NewStepSchedule(10, 3.0, 400, 1)
	times := []float64{3.0, 3.2, 3.4, 3.6, 3.8}
	pos := []float64{0, 4, 11, 9, 10}
	ovs, err := tune.StepOvershoots(times, pos, sched, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ovs) != 1 {
		t.Fatalf("expected 1 measurable transition, got %d", len(ovs))
	}
	if ovs[0] != 10.0 {
		t.Errorf("expected 10.0%% overshoot, got %g", ovs[0])
	}
}

func TestOvershootFalling(t *testing.T) {
	// down transition at t=6: 10 -> 0, trough -1 in the window
	sched := tune.NewStepSchedule(10, 3.0, 400, 1)
	times := []float64{6.0, 6.2, 6.4, 6.6, 6.8}
	pos := []float64{10, 6, -1, 2, 0}
	ovs, err := tune.StepOvershoots(times, pos, sched, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ovs) != 1 {
		t.Fatalf("expected 1 measurable transition, got %d", len(ovs))
	}
	if ovs[0] != 10.0 {
		t.Errorf("expected 10.0%% overshoot, got %g", ovs[0])
	}
}

func TestOvershootNeverNegative(t *testing.T) {
	// the shaft never reaches the target, much less passes it
	sched := tune.NewStepSchedule(10, 3.0, 400, 1)
	times := []float64{3.0, 3.5}
	pos := []float64{0, 8}
	ovs, err := tune.StepOvershoots(times, pos, sched, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ovs) != 1 {
		t.Fatalf("expected 1 measurable transition, got %d", len(ovs))
	}
	if ovs[0] != 0.0 {
		t.Errorf("undershoot must clamp to exactly 0.0, got %g", ovs[0])
	}
}

func TestOvershootEmptyWindowOmitted(t *testing.T) {
	// no samples anywhere near the second transition
	sched := tune.NewStepSchedule(10, 3.0, 400, 1)
	times := []float64{3.1, 3.2}
	pos := []float64{5, 12}
	ovs, err := tune.StepOvershoots(times, pos, sched, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ovs) != 1 {
		t.Errorf("empty windows must be omitted, not reported; got %d entries", len(ovs))
	}
}

func TestOvershootNaNSamplesAreGaps(t *testing.T) {
	sched := tune.NewStepSchedule(10, 3.0, 400, 1)
	times := []float64{3.0, 3.1, 3.2}
	pos := []float64{math.NaN(), 12, math.NaN()}
	ovs, err := tune.StepOvershoots(times, pos, sched, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ovs) != 1 || ovs[0] != 20.0 {
		t.Errorf("expected [20.0] ignoring NaN gaps, got %v", ovs)
	}
}

func TestOvershootDegenerateStep(t *testing.T) {
	sched := tune.StepSchedule{
		{Target: 5, Hold: 1},
		{Target: 5, Hold: 1},
	}
	_, err := tune.StepOvershoots([]float64{1.05}, []float64{5}, sched, 1.0)
	if !errors.Is(err, tune.ErrDegenerateStep) {
		t.Errorf("expected ErrDegenerateStep, got %v", err)
	}
}

func TestOvershootLengthMismatch(t *testing.T) {
	sched := tune.NewStepSchedule(10, 1.0, 400, 1)
	_, err := tune.StepOvershoots([]float64{1, 2}, []float64{1}, sched, 1.0)
	if err == nil {
		t.Error("expected error on misaligned inputs")
	}
}

func TestMaxOvershoot(t *testing.T) {
	if m := tune.MaxOvershoot(nil); m != 0 {
		t.Errorf("expected 0 for no transitions, got %g", m)
	}
	if m := tune.MaxOvershoot([]float64{1.5, 12.25, 3}); m != 12.25 {
		t.Errorf("expected 12.25, got %g", m)
	}
}
