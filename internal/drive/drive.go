// Package drive converts steering decisions into differential-drive wheel
// commands and defines the capability interfaces of the motor hardware.
package drive

// WheelCommand is one actuation output: signed left and right wheel speeds
// in cm/s, already clamped to the hardware limit.
type WheelCommand struct {
	Left  float64
	Right float64
}

// Actuator is the motor controller capability: anything that can drive the
// two wheels at signed linear speeds.
type Actuator interface {
	SetSpeeds(left, right float64) error
	Stop() error
}

// Encoder reports cumulative per-wheel travel in cm since start. Hardware
// without encoders returns an error; callers fall back to speed×dt
// estimates.
type Encoder interface {
	Distances() (left, right float64, err error)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Mixer turns (linear speed, angular rate) into wheel speeds using
// differential-drive kinematics:
//
//	v_r = v + ω·L/2, v_l = v − ω·L/2
//
// Each wheel is clamped to ±MaxSpeed independently. When only one wheel
// saturates the realized curvature flattens; this loss of steering
// authority at the speed limit is accepted, not corrected.
type Mixer struct {
	WheelBase float64 // L, cm between wheel contact points
	MaxSpeed  float64 // cm/s per wheel
}

// Mix computes the clamped wheel command for linear speed v (cm/s) and
// angular rate omega (rad/s).
func (m Mixer) Mix(v, omega float64) WheelCommand {
	half := omega * m.WheelBase / 2.0
	return WheelCommand{
		Left:  clamp(v-half, -m.MaxSpeed, m.MaxSpeed),
		Right: clamp(v+half, -m.MaxSpeed, m.MaxSpeed),
	}
}

// Spin returns the command for an in-place rotation at angular rate omega.
func (m Mixer) Spin(omega float64) WheelCommand {
	return m.Mix(0, omega)
}
