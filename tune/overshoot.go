package tune

import (
	"errors"
	"fmt"
	"math"
)

// DefaultWindow is how long after a step command the analyzer looks for the
// peak, in seconds.
const DefaultWindow = 1.0

// ErrDegenerateStep is generated when a schedule contains a zero-magnitude
// transition, which has no defined overshoot.
var ErrDegenerateStep = errors.New("tune: zero-magnitude step transition")

// StepOvershoots computes the overshoot percentage of each transition in the
// schedule from a recorded time/position series.
//
// For transition i (phase i-1 -> phase i), samples with timestamps in
// [commandTime, commandTime+window] are examined.  A rising step scores
// (peak-new)/(new-old)*100, a falling step (new-trough)/(old-new)*100, and
// undershoot clamps to zero; the metric never goes negative.  Transitions
// whose window holds no samples are omitted, so the result may be shorter
// than Transitions().  NaN samples are gaps and do not contribute.
//
// window <= 0 selects DefaultWindow.
func StepOvershoots(times, pos []float64, sched StepSchedule, window float64) ([]float64, error) {
	if len(times) != len(pos) {
		return nil, fmt.Errorf("tune: time/position length mismatch %d != %d", len(times), len(pos))
	}
	if window <= 0 {
		window = DefaultWindow
	}
	cmdTimes := sched.CommandTimes()

	var overshoots []float64
	for i := 1; i < len(sched); i++ {
		oldT := sched[i-1].Target
		newT := sched[i].Target
		if oldT == newT {
			// the schedule constructor alternates 0 and the step size, so
			// this indicates a corrupt schedule rather than bad data
			return nil, fmt.Errorf("%w: transition %d at %g", ErrDegenerateStep, i, newT)
		}
		t0 := cmdTimes[i]
		t1 := t0 + window

		peak := math.Inf(-1)
		trough := math.Inf(1)
		n := 0
		for k, t := range times {
			if t < t0 || t > t1 || math.IsNaN(pos[k]) {
				continue
			}
			peak = math.Max(peak, pos[k])
			trough = math.Min(trough, pos[k])
			n++
		}
		if n == 0 {
			continue
		}

		var ov float64
		if newT > oldT {
			ov = (peak - newT) / (newT - oldT) * 100
		} else {
			ov = (newT - trough) / (oldT - newT) * 100
		}
		overshoots = append(overshoots, math.Max(0, ov))
	}
	return overshoots, nil
}

// MaxOvershoot returns the headline figure for a run: the largest overshoot
// over all transitions, or zero when none were measurable.
func MaxOvershoot(overshoots []float64) float64 {
	m := 0.0
	for _, ov := range overshoots {
		if ov > m {
			m = ov
		}
	}
	return m
}
