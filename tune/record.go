// Package tune runs excitation tests against actuator endpoints and computes
// tuning metrics from the recorded time series.
package tune

import "math"

// Record is the time series produced by one test run.  The first three
// columns hold measured samples and the last three hold issued commands;
// within each triple, rows are index aligned and append only.  Timestamps are
// seconds relative to the run's shared start origin.  A missed measurement is
// recorded as NaN rather than dropped, so the alignment survives gaps.
type Record struct {
	Time     []float64
	Position []float64
	Velocity []float64

	CmdTime []float64
	CmdPos  []float64
	CmdVel  []float64
}

// NewRecord allocates a fresh, empty record.  Every run owns its own record;
// they are never shared or reused.
func NewRecord() *Record {
	return &Record{}
}

func (r *Record) appendMeasurement(t, pos, vel float64) {
	r.Time = append(r.Time, t)
	r.Position = append(r.Position, pos)
	r.Velocity = append(r.Velocity, vel)
}

func (r *Record) appendMiss(t float64) {
	r.appendMeasurement(t, math.NaN(), math.NaN())
}

func (r *Record) appendCommand(t, pos, vel float64) {
	r.CmdTime = append(r.CmdTime, t)
	r.CmdPos = append(r.CmdPos, pos)
	r.CmdVel = append(r.CmdVel, vel)
}

// Samples returns the number of measurement rows.
func (r *Record) Samples() int {
	return len(r.Time)
}

// Commands returns the number of command rows.
func (r *Record) Commands() int {
	return len(r.CmdTime)
}
