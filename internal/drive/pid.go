package drive

// PID converts a signed lateral error into an angular-rate command. The
// integral accumulator and previous error persist across calls and are
// never reset after construction, matching the tuned field behavior; see
// DESIGN.md for the windup discussion.
type PID struct {
	Kp, Ki, Kd float64

	// MaxRate bounds the output, derived from the curvature limit of the
	// track: ω_max = V_max / R_min.
	MaxRate float64

	integral  float64
	prevError float64
}

// NewPID builds a steering controller with output clamped to
// ±maxSpeed/minRadius.
func NewPID(kp, ki, kd, maxSpeed, minRadius float64) *PID {
	if minRadius < 0.1 {
		minRadius = 0.1
	}
	return &PID{Kp: kp, Ki: ki, Kd: kd, MaxRate: maxSpeed / minRadius}
}

// Steer returns the clamped angular-rate command for the given error and
// elapsed seconds. A non-positive dt suppresses both the integral update
// and the derivative term: the scheduler is trusted, so bad timing
// degrades rather than errors.
func (p *PID) Steer(err, dt float64) float64 {
	var derivative float64
	if dt > 0 {
		p.integral += err * dt
		derivative = (err - p.prevError) / dt
	}
	p.prevError = err

	out := p.Kp*err + p.Ki*p.integral + p.Kd*derivative
	return clamp(out, -p.MaxRate, p.MaxRate)
}
