package tune

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/servokit/servotune/actuator"
)

// SineProfile describes a sinusoidal position/velocity excitation.
type SineProfile struct {
	// Amplitude of the position command, degrees
	Amplitude float64

	// Freq of the sine, Hz
	Freq float64

	// Duration of the test, seconds
	Duration float64

	// Rate commands are issued at, Hz
	Rate float64

	// RequestState queries measured state after each command when true;
	// when false the measurement is synthesized equal to the command, which
	// halves the network load when the readback is not needed
	RequestState bool
}

// StepProfile describes a multi-cycle step excitation.
type StepProfile struct {
	// Size of each step, degrees
	Size float64

	// Hold per phase, seconds
	Hold float64

	// Count of (up, down) cycles
	Count int

	// VelLimit recorded with each command, deg/s
	VelLimit float64

	// SampleRate measured state is sampled at during holds, Hz
	SampleRate float64
}

// Schedule returns the nominal step schedule this profile commands.
func (p StepProfile) Schedule() StepSchedule {
	return NewStepSchedule(p.Size, p.Hold, p.VelLimit, p.Count)
}

type testKind int

const (
	kindSine testKind = iota
	kindStep
)

// Driver executes one test against one actuator endpoint, producing a Record.
// A driver owns its record for the duration of the run and hands it back by
// value; two drivers running concurrently share nothing but the Start origin.
type Driver struct {
	// Controller is the endpoint under test
	Controller actuator.Controller

	// ID of the actuator on the endpoint
	ID int

	// Real selects the hardware gain set; false selects the simulator gains
	Real bool

	// Gains for the real target (kp/kd/ki)
	Gains actuator.Gains

	// SimKp and SimKv are the simulator's position and damping gains
	SimKp, SimKv float64

	// Acceleration limit, deg/s^2 (applied to the real target)
	Acceleration float64

	// MaxTorque clamp, percent
	MaxTorque float64

	// TorqueEnabled powers the output stage for the test
	TorqueEnabled bool

	// Start is the shared time origin; capture one instant before starting
	// concurrent drivers so their records share a time axis
	Start time.Time
}

// selectGains picks the gain set for the run.  The simulator branch zeroes
// the integral gain for sine tests but forwards the real ki for step tests;
// that asymmetry is long-standing bench behavior, kept until the tuning
// engineers confirm it is intentional.
func (d *Driver) selectGains(kind testKind) actuator.Gains {
	if d.Real {
		return d.Gains
	}
	g := actuator.Gains{Kp: d.SimKp, Kd: d.SimKv}
	if kind == kindStep {
		g.Ki = d.Gains.Ki
	}
	return g
}

func (d *Driver) elapsed() float64 {
	return time.Since(d.Start).Seconds()
}

// RunSine drives the endpoint through a sine trajectory, recording commands
// and measurements against the shared origin.  The command velocity is the
// analytic derivative of the command position.  Configure or dispatch
// failures are fatal to the run; an empty state reply is recorded as NaN and
// the run continues.
func (d *Driver) RunSine(p SineProfile) (*Record, error) {
	cfg := actuator.Config{
		Gains:         d.selectGains(kindSine),
		MaxTorque:     d.MaxTorque,
		TorqueEnabled: d.TorqueEnabled,
	}
	if d.Real {
		cfg.Acceleration = d.Acceleration
	}
	if err := d.Controller.Configure(d.ID, cfg); err != nil {
		return nil, fmt.Errorf("sine: configure actuator %d: %w", d.ID, err)
	}

	rec := NewRecord()
	steps := int(p.Duration * p.Rate)
	omega := 2 * math.Pi * p.Freq
	// burst 1 gives an absolute tick schedule: tokens accrue on the period
	// regardless of how long an iteration took, and a passed deadline
	// proceeds immediately without accumulating a catch-up burst
	lim := rate.NewLimiter(rate.Limit(p.Rate), 1)
	ctx := context.Background()

	for i := 0; i < steps; i++ {
		t := float64(i) / p.Rate
		pos := p.Amplitude * math.Sin(omega*t)
		vel := p.Amplitude * omega * math.Cos(omega*t)

		rec.appendCommand(d.elapsed(), pos, vel)
		if err := d.Controller.Command(d.ID, pos, vel); err != nil {
			return nil, fmt.Errorf("sine: command actuator %d: %w", d.ID, err)
		}

		if p.RequestState {
			st, ok, err := d.Controller.GetState(d.ID)
			if err != nil {
				return nil, fmt.Errorf("sine: query actuator %d: %w", d.ID, err)
			}
			if ok {
				rec.appendMeasurement(d.elapsed(), st.Position, st.Velocity)
			} else {
				rec.appendMiss(d.elapsed())
			}
		} else {
			rec.appendMeasurement(d.elapsed(), pos, vel)
		}

		if err := lim.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// RunStep configures the endpoint once, then walks the nominal step schedule:
// one position command at each phase start, continuous sampling at the
// profile's rate for the phase's hold.  Each sample appends a measurement row
// and a duplicated command row, so the command trace can be overlaid on the
// measured trace without interpolation.
func (d *Driver) RunStep(p StepProfile) (*Record, error) {
	cfg := actuator.Config{
		Gains:         d.selectGains(kindStep),
		Acceleration:  d.Acceleration,
		MaxTorque:     d.MaxTorque,
		TorqueEnabled: d.TorqueEnabled,
	}
	if err := d.Controller.Configure(d.ID, cfg); err != nil {
		return nil, fmt.Errorf("step: configure actuator %d: %w", d.ID, err)
	}

	rec := NewRecord()
	sched := p.Schedule()
	lim := rate.NewLimiter(rate.Limit(p.SampleRate), 1)
	ctx := context.Background()

	prev := 0.0
	for _, phase := range sched {
		now := d.elapsed()
		rec.appendCommand(now, phase.Target, phase.VelLimit)
		// seed the measured trace with where the shaft nominally starts the
		// phase, so the overlay begins at the transition edge
		rec.appendMeasurement(now, prev, 0)

		if err := d.Controller.CommandPosition(d.ID, phase.Target); err != nil {
			return nil, fmt.Errorf("step: command actuator %d: %w", d.ID, err)
		}

		end := time.Now().Add(secsToDuration(phase.Hold))
		for time.Now().Before(end) {
			st, ok, err := d.Controller.GetState(d.ID)
			if err != nil {
				return nil, fmt.Errorf("step: query actuator %d: %w", d.ID, err)
			}
			tq := d.elapsed()
			if ok {
				rec.appendMeasurement(tq, st.Position, st.Velocity)
			} else {
				rec.appendMiss(tq)
			}
			rec.appendCommand(tq, phase.Target, phase.VelLimit)
			if err := lim.Wait(ctx); err != nil {
				return nil, err
			}
		}
		prev = phase.Target
	}
	return rec, nil
}

func secsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
