package tune

// Phase is one leg of a step test: hold the target for the duration, with a
// velocity limit recorded alongside the command.
type Phase struct {
	// Target is the commanded position in degrees
	Target float64

	// VelLimit is the velocity limit recorded with the command, deg/s
	VelLimit float64

	// Hold is how long the phase lasts, seconds
	Hold float64
}

// StepSchedule is the nominal command sequence of a step test: an initial
// hold at zero followed by count repetitions of (step up, step down).  It
// describes what was meant to be commanded, independent of what was measured.
// Build with NewStepSchedule and do not mutate afterward.
type StepSchedule []Phase

// NewStepSchedule builds the canonical schedule for a step test.
func NewStepSchedule(size, hold, velLimit float64, count int) StepSchedule {
	s := make(StepSchedule, 0, 2*count+1)
	s = append(s, Phase{Target: 0, VelLimit: velLimit, Hold: hold})
	for i := 0; i < count; i++ {
		s = append(s, Phase{Target: size, VelLimit: velLimit, Hold: hold})
		s = append(s, Phase{Target: 0, VelLimit: velLimit, Hold: hold})
	}
	return s
}

// CommandTimes returns the nominal instant each phase is commanded, relative
// to the start of the test: the cumulative sum of the prior holds.  Element i
// is the command time of phase i; transitions are phases 1..len-1.
func (s StepSchedule) CommandTimes() []float64 {
	times := make([]float64, len(s))
	acc := 0.0
	for i, p := range s {
		times[i] = acc
		acc += p.Hold
	}
	return times
}

// Transitions returns the number of step transitions in the schedule.
func (s StepSchedule) Transitions() int {
	if len(s) == 0 {
		return 0
	}
	return len(s) - 1
}

// Duration returns the total nominal duration of the schedule.
func (s StepSchedule) Duration() float64 {
	acc := 0.0
	for _, p := range s {
		acc += p.Hold
	}
	return acc
}
