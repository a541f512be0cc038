// Package follow keeps the rover tracking a painted guide line: it closes
// the loop from the reflectance sensor array through a steering PID to
// differential wheel commands, and runs a bounded recovery search whenever
// the line drops out from under the array.
package follow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ENGR161-Team1/MARCO/internal/drive"
	"github.com/ENGR161-Team1/MARCO/internal/imu"
	"github.com/ENGR161-Team1/MARCO/internal/line"
)

// Config holds the tuning for one line-following run.
type Config struct {
	Speed       float64       // desired linear speed, cm/s
	RunDuration time.Duration // total run budget; expiry is success
	TickPeriod  time.Duration // control loop period

	Threshold float64 // line detection threshold in [0,1]

	Kp, Ki, Kd float64
	MaxSpeed   float64 // per-wheel limit, cm/s
	MinRadius  float64 // track curvature floor, cm
	WheelBase  float64 // cm

	WindowSize int // detection window for the line-type diagnostic

	Recovery RecoveryConfig
}

// DefaultConfig mirrors the tuned track values: a 40ms loop, a 2-inch
// curvature floor and the gains proven on the practice course.
func DefaultConfig() Config {
	return Config{
		Speed:       15.0,
		RunDuration: 5 * time.Minute,
		TickPeriod:  40 * time.Millisecond,
		Threshold:   0.5,
		Kp:          0.9,
		Ki:          0.002,
		Kd:          0.02,
		MaxSpeed:    25.0,
		MinRadius:   5.08,
		WheelBase:   12.0,
		WindowSize:  25,
		Recovery:    DefaultRecoveryConfig(),
	}
}

// Outcome summarizes a finished run.
type Outcome struct {
	Success    bool    `json:"success"`
	LineType   string  `json:"line_type"`
	Ticks      int     `json:"ticks"`
	Recoveries int     `json:"recoveries"`
	Distance   float64 `json:"distance_cm"`
}

// Navigator ties estimator → PID → mixer → recovery into the fixed-tick
// control loop. It exclusively owns the PID state and the recovery phase.
type Navigator struct {
	cfg Config

	sensor  line.Array
	motors  drive.Actuator
	encoder drive.Encoder // nil when unsupported

	est      line.Estimator
	pid      *drive.PID
	mixer    drive.Mixer
	recovery *Recovery
	odom     *odometer
	win      *window
	clk      clock.Clock
}

// Option adjusts optional navigator collaborators.
type Option func(*Navigator)

// WithEncoder supplies wheel-encoder hardware for distance bookkeeping.
func WithEncoder(enc drive.Encoder) Option {
	return func(n *Navigator) { n.encoder = enc }
}

// WithClock substitutes the time source; tests drive a mock.
func WithClock(clk clock.Clock) Option {
	return func(n *Navigator) { n.clk = clk }
}

// New wires a navigator from its injected capabilities.
func New(cfg Config, sensor line.Array, motors drive.Actuator, opts ...Option) *Navigator {
	n := &Navigator{
		cfg:    cfg,
		sensor: sensor,
		motors: motors,
		est:    line.Estimator{Threshold: cfg.Threshold},
		pid:    drive.NewPID(cfg.Kp, cfg.Ki, cfg.Kd, cfg.MaxSpeed, cfg.MinRadius),
		mixer:  drive.Mixer{WheelBase: cfg.WheelBase, MaxSpeed: cfg.MaxSpeed},
		win:    newWindow(cfg.WindowSize),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.clk == nil {
		n.clk = clock.New()
	}
	n.odom = newOdometer(n.encoder)
	n.recovery = NewRecovery(cfg.Recovery, sensor, n.est, motors, n.mixer, n.odom, n.clk)
	return n
}

// LineType returns the current continuity diagnostic for the detection
// window: continuous, dotted/broken or mostly broken.
func (n *Navigator) LineType() string { return n.win.classify() }

// Run executes the control loop until the run duration expires (success),
// recovery fails (failure) or the context is cancelled. The motors are
// stopped on every exit path.
//
// The results are named so the deferred classification lands in the
// returned Outcome.
func (n *Navigator) Run(ctx context.Context) (out Outcome, err error) {
	defer func() {
		// Cheap to repeat, fatal to forget: no exit leaves wheels turning.
		if err := n.motors.Stop(); err != nil {
			log.Printf("follow: final stop: %v", err)
		}
		out.LineType = n.win.classify()
	}()

	n.odom.prime()

	start := n.clk.Now()
	last := start

	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		now := n.clk.Now()
		dt := now.Sub(last)
		// Sleep off the remainder of the period. A slow tick is taken
		// as-is; the loop never accumulates catch-up ticks.
		if dt < n.cfg.TickPeriod {
			if err := n.sleepFor(ctx, n.cfg.TickPeriod-dt); err != nil {
				return out, err
			}
			now = n.clk.Now()
			dt = now.Sub(last)
		}
		last = now
		out.Ticks++

		// Expiry is checked before the sensor read so a sensor stuck in
		// transient errors still ends the run on schedule.
		if n.cfg.RunDuration > 0 && now.Sub(start) > n.cfg.RunDuration {
			log.Printf("follow: run duration reached after %d ticks", out.Ticks)
			out.Success = true
			return out, nil
		}

		frame, err := n.sensor.ReadFrame()
		if err != nil {
			if imu.IsUnavailable(err) {
				return out, fmt.Errorf("follow: line sensor: %w", err)
			}
			log.Printf("follow: transient sensor error, skipping tick: %v", err)
			continue
		}

		pos, seen := n.est.Estimate(frame)
		n.win.push(seen)
		out.Distance += n.odom.increment(n.cfg.Speed, dt.Seconds())

		if seen {
			omega := n.pid.Steer(pos, dt.Seconds())
			v := n.cfg.Speed
			if v > n.cfg.MaxSpeed {
				v = n.cfg.MaxSpeed
			}
			cmd := n.mixer.Mix(v, omega)
			if err := n.motors.SetSpeeds(cmd.Left, cmd.Right); err != nil {
				return out, fmt.Errorf("follow: actuate: %w", err)
			}
		} else {
			log.Printf("follow: line lost after %d ticks, starting recovery", out.Ticks)
			out.Recoveries++
			phase, err := n.recovery.Run(ctx, n.cfg.Speed)
			if err != nil {
				return out, fmt.Errorf("follow: recovery: %w", err)
			}
			if phase != PhaseReacquired {
				log.Printf("follow: recovery exhausted in %s phase, stopping", phase)
				return out, nil
			}
			log.Printf("follow: line reacquired")
			// Recovery consumed real time; restart dt bookkeeping so the
			// next PID step does not see a giant interval.
			last = n.clk.Now()
		}
	}
}

func (n *Navigator) sleepFor(ctx context.Context, d time.Duration) error {
	t := n.clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
