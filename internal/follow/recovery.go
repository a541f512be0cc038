package follow

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ENGR161-Team1/MARCO/internal/drive"
	"github.com/ENGR161-Team1/MARCO/internal/line"
)

// Phase is the gap-recovery state. The machine only moves forward through
// DeadReckon → Sweep → Wiggle → Failed, short-circuiting to Reacquired the
// moment any resample sees the line.
type Phase int

const (
	PhaseDeadReckon Phase = iota
	PhaseSweep
	PhaseWiggle
	PhaseFailed
	PhaseReacquired
)

func (p Phase) String() string {
	switch p {
	case PhaseDeadReckon:
		return "dead-reckon"
	case PhaseSweep:
		return "sweep"
	case PhaseWiggle:
		return "wiggle"
	case PhaseFailed:
		return "failed"
	case PhaseReacquired:
		return "reacquired"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// RecoveryConfig bounds the gap search. Every budget is a hard upper
// bound, never extended, so the worst-case recovery latency is known up
// front.
type RecoveryConfig struct {
	// MaxReacquireTime is the overall time budget from gap detection.
	MaxReacquireTime time.Duration
	// MaxDistance caps the forward dead-reckon travel in cm.
	MaxDistance float64

	// SweepAngle is the half-range of the angular scan in degrees;
	// SweepStep its increment.
	SweepAngle float64
	SweepStep  float64

	// PulseDuration is the length of one sweep rotation pulse;
	// SettleDuration the stop-and-sample pause after every pulse.
	PulseDuration  time.Duration
	SettleDuration time.Duration

	// SamplePeriod is the resample spacing while dead-reckoning forward.
	SamplePeriod time.Duration

	WigglePulses   int
	WiggleDuration time.Duration
}

// DefaultRecoveryConfig mirrors the tuned track values.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MaxReacquireTime: 1200 * time.Millisecond,
		MaxDistance:      40.0,
		SweepAngle:       20,
		SweepStep:        5,
		PulseDuration:    120 * time.Millisecond,
		SettleDuration:   30 * time.Millisecond,
		SamplePeriod:     50 * time.Millisecond,
		WigglePulses:     3,
		WiggleDuration:   80 * time.Millisecond,
	}
}

// Recovery runs the bounded search for a lost line. The phase ordering
// encodes a locality prior: the line most likely reappears straight
// ahead, then to a side, and only rarely needs the final jitter.
type Recovery struct {
	cfg    RecoveryConfig
	sensor line.Array
	est    line.Estimator
	motors drive.Actuator
	mixer  drive.Mixer
	odom   *odometer
	clk    clock.Clock

	phase Phase
}

// NewRecovery builds the state machine. odom may be nil when no encoder
// hardware exists; distance then falls back to speed×dt.
func NewRecovery(cfg RecoveryConfig, sensor line.Array, est line.Estimator, motors drive.Actuator, mixer drive.Mixer, odom *odometer, clk clock.Clock) *Recovery {
	if clk == nil {
		clk = clock.New()
	}
	if odom == nil {
		odom = newOdometer(nil)
	}
	return &Recovery{
		cfg:    cfg,
		sensor: sensor,
		est:    est,
		motors: motors,
		mixer:  mixer,
		odom:   odom,
		clk:    clk,
	}
}

// Phase reports the state the last Run terminated in.
func (r *Recovery) Phase() Phase { return r.phase }

// sample reads the sensor once and reports whether the line is visible.
func (r *Recovery) sample() (bool, error) {
	f, err := r.sensor.ReadFrame()
	if err != nil {
		return false, err
	}
	_, ok := r.est.Estimate(f)
	return ok, nil
}

func (r *Recovery) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := r.clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run searches for the line until a phase succeeds or every budget is
// spent. It returns the terminal phase; motors are stopped before any
// non-Reacquired return. An unavailable sensor or cancelled context aborts
// with an error, also with motors stopped.
func (r *Recovery) Run(ctx context.Context, baseSpeed float64) (Phase, error) {
	start := r.clk.Now()
	deadline := start.Add(r.cfg.MaxReacquireTime)

	phase, err := r.deadReckon(ctx, baseSpeed, deadline)
	if phase == PhaseReacquired || err != nil {
		r.finish(phase, err)
		return phase, err
	}

	if err := r.motors.Stop(); err != nil {
		r.phase = PhaseFailed
		return PhaseFailed, fmt.Errorf("follow: stop before sweep: %w", err)
	}

	phase, err = r.sweep(ctx, deadline)
	if phase == PhaseReacquired || err != nil {
		r.finish(phase, err)
		return phase, err
	}

	phase, err = r.wiggle(ctx, baseSpeed)
	r.finish(phase, err)
	return phase, err
}

func (r *Recovery) finish(phase Phase, err error) {
	r.phase = phase
	if phase != PhaseReacquired || err != nil {
		// Never leave wheels turning out of a failed search.
		_ = r.motors.Stop()
	}
}

// deadReckon drives straight ahead at reduced speed, resampling as it
// goes. The forward budget is min(0.6·T_gap, 0.6s) and MaxDistance cm.
func (r *Recovery) deadReckon(ctx context.Context, baseSpeed float64, deadline time.Time) (Phase, error) {
	speed := 0.4 * baseSpeed
	budget := time.Duration(0.6 * float64(r.cfg.MaxReacquireTime))
	if budget > 600*time.Millisecond {
		budget = 600 * time.Millisecond
	}
	phaseEnd := r.clk.Now().Add(budget)
	// The phase budget never outlives the overall gap deadline.
	if phaseEnd.After(deadline) {
		phaseEnd = deadline
	}

	var travelled float64
	for r.clk.Now().Before(phaseEnd) && travelled < r.cfg.MaxDistance {
		if err := r.motors.SetSpeeds(speed, speed); err != nil {
			return PhaseFailed, fmt.Errorf("follow: dead-reckon drive: %w", err)
		}
		if err := r.sleep(ctx, r.cfg.SamplePeriod); err != nil {
			return PhaseFailed, err
		}
		seen, err := r.sample()
		if err != nil {
			return PhaseFailed, fmt.Errorf("follow: dead-reckon sample: %w", err)
		}
		if seen {
			return PhaseReacquired, nil
		}
		travelled += r.odom.increment(speed, r.cfg.SamplePeriod.Seconds())
	}
	return PhaseSweep, nil
}

// sweep rotates in place through 0, +1, −1, +2, −2, … sweep steps, sampling
// after every pulse, while the overall gap deadline holds.
func (r *Recovery) sweep(ctx context.Context, deadline time.Time) (Phase, error) {
	steps := int(r.cfg.SweepAngle / r.cfg.SweepStep)
	stepRad := r.cfg.SweepStep * math.Pi / 180.0

	for _, mult := range sweepSequence(steps) {
		if !r.clk.Now().Before(deadline) {
			break
		}
		// Aim to achieve the step angle over ~0.2s; the mixer clamp keeps
		// the pulse inside the hardware envelope.
		omega := clampRate(float64(mult)*stepRad/0.2, r.maxRate())
		cmd := r.mixer.Spin(omega)
		if err := r.motors.SetSpeeds(cmd.Left, cmd.Right); err != nil {
			return PhaseFailed, fmt.Errorf("follow: sweep pulse: %w", err)
		}
		if err := r.sleep(ctx, r.cfg.PulseDuration); err != nil {
			return PhaseFailed, err
		}
		if err := r.motors.Stop(); err != nil {
			return PhaseFailed, fmt.Errorf("follow: sweep stop: %w", err)
		}
		if err := r.sleep(ctx, r.cfg.SettleDuration); err != nil {
			return PhaseFailed, err
		}
		seen, err := r.sample()
		if err != nil {
			return PhaseFailed, fmt.Errorf("follow: sweep sample: %w", err)
		}
		if seen {
			return PhaseReacquired, nil
		}
	}
	return PhaseWiggle, nil
}

// wiggle fires a few short forward pulses as a last resort.
func (r *Recovery) wiggle(ctx context.Context, baseSpeed float64) (Phase, error) {
	speed := 0.2 * baseSpeed
	for i := 0; i < r.cfg.WigglePulses; i++ {
		if err := r.motors.SetSpeeds(speed, speed); err != nil {
			return PhaseFailed, fmt.Errorf("follow: wiggle pulse: %w", err)
		}
		if err := r.sleep(ctx, r.cfg.WiggleDuration); err != nil {
			return PhaseFailed, err
		}
		if err := r.motors.Stop(); err != nil {
			return PhaseFailed, fmt.Errorf("follow: wiggle stop: %w", err)
		}
		if err := r.sleep(ctx, r.cfg.SettleDuration); err != nil {
			return PhaseFailed, err
		}
		seen, err := r.sample()
		if err != nil {
			return PhaseFailed, fmt.Errorf("follow: wiggle sample: %w", err)
		}
		if seen {
			return PhaseReacquired, nil
		}
	}
	return PhaseFailed, nil
}

func (r *Recovery) maxRate() float64 {
	if r.mixer.WheelBase <= 0 {
		return math.Inf(1)
	}
	// Fastest in-place spin the wheel speed limit allows.
	return 2 * r.mixer.MaxSpeed / r.mixer.WheelBase
}

// sweepSequence expands n steps into the alternating scan order
// 0, +1, −1, +2, −2, …
func sweepSequence(n int) []int {
	seq := make([]int, 0, 2*n)
	for k := 0; k < n; k++ {
		if k == 0 {
			seq = append(seq, 0)
			continue
		}
		seq = append(seq, k, -k)
	}
	return seq
}

func clampRate(x, limit float64) float64 {
	if x > limit {
		return limit
	}
	if x < -limit {
		return -limit
	}
	return x
}
