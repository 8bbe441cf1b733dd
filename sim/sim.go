// Package sim provides a simulated rotary actuator bank for exercising tests
// without hardware.  The model is a PD+I servo on a unit-inertia shaft with
// torque and acceleration clamps, integrated at a fixed internal step.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/brandondube/ringo"

	"github.com/servokit/servotune/actuator"
)

const (
	// historyLen is the number of decimated position samples retained per joint
	historyLen = 512

	// historyDecim appends one history sample per this many integration steps
	historyDecim = 10
)

// ErrUnknownJoint is generated when a joint is commanded before being
// configured or moved.
var ErrUnknownJoint = errors.New("sim: unknown joint")

type joint struct {
	cfg     actuator.Config
	target  float64
	velFF   float64
	pos     float64
	vel     float64
	errInt  float64
	ticks   int
	history ringo.CircleF64
}

// Actuator simulates a bank of rotary joints keyed by actuator ID.  Joints
// come into being on first configure or command.  It implements
// actuator.Controller.  Create with New and release with Close.
type Actuator struct {
	mu     sync.Mutex
	joints map[int]*joint
	dt     float64
	done   chan struct{}
}

// New creates a simulated actuator bank integrating every step (1ms is a
// sensible value) on a background goroutine.
func New(step time.Duration) *Actuator {
	a := &Actuator{
		joints: map[int]*joint{},
		dt:     step.Seconds(),
		done:   make(chan struct{}),
	}
	go a.run(step)
	return a
}

// Close stops the integrator goroutine.
func (a *Actuator) Close() {
	close(a.done)
}

func (a *Actuator) run(step time.Duration) {
	tick := time.NewTicker(step)
	defer tick.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-tick.C:
			a.mu.Lock()
			for _, j := range a.joints {
				j.step(a.dt)
			}
			a.mu.Unlock()
		}
	}
}

func (j *joint) step(dt float64) {
	if j.cfg.TorqueEnabled {
		err := j.target - j.pos
		j.errInt += err * dt
		torque := j.cfg.Kp*err + j.cfg.Kd*(j.velFF-j.vel) + j.cfg.Ki*j.errInt
		torque = clamp(torque, -j.cfg.MaxTorque, j.cfg.MaxTorque)
		// unit inertia, torque is acceleration
		accel := torque
		if j.cfg.Acceleration > 0 {
			accel = clamp(accel, -j.cfg.Acceleration, j.cfg.Acceleration)
		}
		j.vel += accel * dt
	} else {
		// output stage off: coast with light friction
		j.vel *= 1 - 0.5*dt
	}
	j.pos += j.vel * dt
	j.ticks++
	if j.ticks%historyDecim == 0 {
		j.history.Append(j.pos)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// jointFor returns the joint for id, creating it if create is true.
func (a *Actuator) jointFor(id int, create bool) (*joint, error) {
	j, ok := a.joints[id]
	if !ok {
		if !create {
			return nil, fmt.Errorf("%w: %d", ErrUnknownJoint, id)
		}
		j = &joint{cfg: actuator.Config{
			Gains:         actuator.Gains{Kp: 10, Kd: 1},
			MaxTorque:     100,
			TorqueEnabled: true}}
		j.history.Init(historyLen)
		a.joints[id] = j
	}
	return j, nil
}

// Configure applies control parameters to a joint, creating it at rest if it
// does not exist yet.
func (a *Actuator) Configure(id int, cfg actuator.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	j, _ := a.jointFor(id, true)
	j.cfg = cfg
	j.errInt = 0
	return nil
}

// Command sets a position setpoint with a velocity feedforward.
func (a *Actuator) Command(id int, pos, vel float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	j, _ := a.jointFor(id, true)
	j.target = pos
	j.velFF = vel
	return nil
}

// CommandPosition sets a position setpoint alone.
func (a *Actuator) CommandPosition(id int, pos float64) error {
	return a.Command(id, pos, 0)
}

// GetState reports the simulated state of a joint.  A joint which has never
// been configured or commanded yields the empty reply, like hardware that has
// not found its encoder yet.
func (a *Actuator) GetState(id int) (actuator.State, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	j, ok := a.joints[id]
	if !ok {
		return actuator.State{}, false, nil
	}
	return actuator.State{Position: j.pos, Velocity: j.vel}, true, nil
}

// Config reports the active configuration of a joint.
func (a *Actuator) Config(id int) (actuator.Config, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	j, ok := a.joints[id]
	if !ok {
		return actuator.Config{}, false
	}
	return j.cfg, true
}

// SetGain adjusts a single live gain on a joint: "kp", "kd" or "ki".
func (a *Actuator) SetGain(id int, name string, value float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	j, err := a.jointFor(id, false)
	if err != nil {
		return err
	}
	switch name {
	case "kp":
		j.cfg.Kp = value
	case "kd":
		j.cfg.Kd = value
	case "ki":
		j.cfg.Ki = value
	default:
		return fmt.Errorf("sim: no gain named %q", name)
	}
	return nil
}

// Gain reads a single gain from a joint.
func (a *Actuator) Gain(id int, name string) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	j, err := a.jointFor(id, false)
	if err != nil {
		return 0, err
	}
	switch name {
	case "kp":
		return j.cfg.Kp, nil
	case "kd":
		return j.cfg.Kd, nil
	case "ki":
		return j.cfg.Ki, nil
	default:
		return 0, fmt.Errorf("sim: no gain named %q", name)
	}
}

// History returns the retained position trace of a joint, least recent first.
func (a *Actuator) History(id int) []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	j, ok := a.joints[id]
	if !ok {
		return nil
	}
	if j.ticks < historyDecim {
		// nothing appended yet; Contiguous on an empty ring reports a
		// sentinel zero sample, not an empty trace
		return []float64{}
	}
	// copy out, Contiguous may alias the ring's backing array
	src := j.history.Contiguous()
	out := make([]float64, len(src))
	copy(out, src)
	return out
}
