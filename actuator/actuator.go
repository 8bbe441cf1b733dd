// Package actuator contains an abstract interface for a position-controlled
// rotary actuator endpoint and the types shared by its implementations.
package actuator

// State is one reported sample of an actuator's motion.
type State struct {
	// Position is the measured shaft angle in degrees
	Position float64

	// Velocity is the measured shaft speed in degrees per second
	Velocity float64
}

// Gains are the control loop coefficients of a position servo.
type Gains struct {
	// Kp is the proportional gain
	Kp float64

	// Kd is the derivative (damping) gain
	Kd float64

	// Ki is the integral gain
	Ki float64
}

// Config is the full configuration written to an actuator before a test.
type Config struct {
	Gains

	// Acceleration is the acceleration limit in degrees per second squared
	Acceleration float64

	// MaxTorque is the torque clamp in percent of rated torque
	MaxTorque float64

	// TorqueEnabled powers the output stage; a disabled actuator accepts
	// commands but does not move
	TorqueEnabled bool
}

// Configurer writes control parameters to an actuator
type Configurer interface {
	// Configure applies cfg to the actuator with the given ID
	Configure(id int, cfg Config) error
}

// Commander issues motion setpoints to an actuator
type Commander interface {
	// Command sets a position setpoint with a velocity feedforward
	Command(id int, pos, vel float64) error

	// CommandPosition sets a position setpoint alone
	CommandPosition(id int, pos float64) error
}

// StateQuerier reads back measured state from an actuator.  The bool return
// is false when the endpoint had no state to report; that is not an error,
// the caller decides how to record the gap.
type StateQuerier interface {
	GetState(id int) (State, bool, error)
}

// Controller describes the full set of methods a test needs from an
// actuator endpoint
type Controller interface {
	Configurer
	Commander
	StateQuerier
}
