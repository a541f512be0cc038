// Package nav tracks the rover's 3D pose by dead reckoning: it integrates
// calibrated IMU samples into position, velocity and orientation estimates
// in a global reference frame.
package nav

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ENGR161-Team1/MARCO/internal/calibration"
	"github.com/ENGR161-Team1/MARCO/internal/imu"
	"github.com/ENGR161-Team1/MARCO/internal/rotation"
)

// Gravity is the fixed gravity magnitude (m/s²) subtracted on the
// uncalibrated path.
const Gravity = 9.81

// Snapshot is a read-only copy of the tracker state at the top of a tick.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Position     rotation.Vec3 `json:"position"`     // m, global frame
	Velocity     rotation.Vec3 `json:"velocity"`     // m/s, global frame
	Acceleration rotation.Vec3 `json:"acceleration"` // m/s², global frame, gravity-compensated

	Orientation     rotation.Vec3 `json:"orientation"`      // yaw, pitch, roll
	AngularVelocity rotation.Vec3 `json:"angular_velocity"` // yaw/pitch/roll rates
}

// Heading returns the yaw component, the rover's direction of travel in the
// horizontal plane.
func (s Snapshot) Heading() float64 { return s.Orientation.X }

// Grade returns the absolute pitch component, the slope the rover sits on.
func (s Snapshot) Grade() float64 { return math.Abs(s.Orientation.Y) }

// Options configures a Tracker.
type Options struct {
	Mode imu.AngleMode // angle unit for orientation and gyro rates

	// AccelNoiseThreshold gates acceleration: per-axis values below it are
	// zeroed, and a previous-tick acceleration magnitude below it triggers
	// velocity decay.
	AccelNoiseThreshold float64
	// VelocityDecay is the fraction of velocity removed per near-stationary
	// tick to suppress integration drift.
	VelocityDecay float64

	// Bias, when non-nil, is subtracted from every sample. A stationary
	// calibration bias already contains the gravity reaction, so the fixed
	// Gravity vector is only subtracted on the uncalibrated path.
	Bias *calibration.Bias

	InitialPosition    rotation.Vec3
	InitialOrientation rotation.Vec3

	Clock clock.Clock // nil means wall clock
}

// Tracker owns the pose state. Update is not safe for concurrent use; the
// fixed-tick Run loop is the single writer, and concurrent consumers read
// copies via Current.
type Tracker struct {
	reader imu.Reader
	opts   Options
	tf     rotation.Transformer
	clk    clock.Clock

	pos        rotation.Vec3
	velocity   rotation.Vec3
	accel      rotation.Vec3 // global frame, from the previous tick
	accelLocal rotation.Vec3

	orientation rotation.Vec3 // yaw, pitch, roll
	angVel      rotation.Vec3
	angAccel    rotation.Vec3

	initialized bool

	mu   sync.RWMutex
	snap Snapshot
}

// New creates a Tracker reading from r.
func New(r imu.Reader, opts Options) *Tracker {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Tracker{
		reader:      r,
		opts:        opts,
		tf:          rotation.Transformer{Mode: opts.Mode},
		clk:         opts.Clock,
		pos:         opts.InitialPosition,
		orientation: opts.InitialOrientation,
	}
}

// Update advances the pose estimate by dt seconds using one fresh sample.
//
// Position and velocity are advanced with the previous tick's acceleration
// before the new sample is rotated and bias-corrected; the new acceleration
// is stored for the next tick. Feeding the raw sample straight into the
// same tick's position update would integrate un-rotated, un-corrected data.
func (t *Tracker) Update(dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("nav: invalid dt %v", dt)
	}

	// 1) Advance position and velocity with the previous acceleration:
	//    p += v·dt + ½·a·dt², v += a·dt.
	prevAccel := t.accel
	t.pos = t.tf.Translate(t.pos, t.velocity.Scale(dt).Add(prevAccel.Scale(0.5*dt*dt)))
	t.velocity = t.tf.Translate(t.velocity, prevAccel.Scale(dt))

	// Near-stationary ticks bleed off velocity so integration drift cannot
	// accumulate while the rover is parked.
	if prevAccel.Norm() < t.opts.AccelNoiseThreshold {
		t.velocity = t.velocity.Scale(1 - t.opts.VelocityDecay)
	}

	// 2) Read and bias-correct the new sample.
	s, err := t.reader.Read()
	if err != nil {
		return fmt.Errorf("nav: imu read: %w", err)
	}
	if t.opts.Bias != nil {
		s = t.opts.Bias.Apply(s)
	}

	// 3) Integrate orientation from gyro rates (yaw=Gz, pitch=Gy, roll=Gx).
	t.updateOrientation(rotation.Vec3{X: s.Gz, Y: s.Gy, Z: s.Gx}, dt)

	// 4) Rotate the local acceleration into the global frame.
	t.accelLocal = rotation.Vec3{X: s.Ax, Y: s.Ay, Z: s.Az}
	global := t.tf.Rotate(t.accelLocal,
		t.orientation.X, t.orientation.Y, t.orientation.Z, true)

	if t.opts.Bias == nil {
		// Uncalibrated path: the gravity reaction is still in the sample.
		global = global.Sub(rotation.Vec3{Z: Gravity})
	}

	t.accel = t.gateNoise(global)
	return nil
}

// updateOrientation integrates gyro rates with a trapezoidal scheme. The
// first call only seeds the rate state; there is no previous rate to
// difference against yet.
func (t *Tracker) updateOrientation(rates rotation.Vec3, dt float64) {
	if !t.initialized {
		t.angVel = rates
		t.initialized = true
		return
	}
	t.orientation = t.orientation.
		Add(t.angAccel.Scale(0.5 * dt * dt)).
		Add(t.angVel.Scale(dt))
	t.angAccel = rates.Sub(t.angVel).Scale(1 / dt)
	t.angVel = rates
}

func (t *Tracker) gateNoise(v rotation.Vec3) rotation.Vec3 {
	thr := t.opts.AccelNoiseThreshold
	if math.Abs(v.X) < thr {
		v.X = 0
	}
	if math.Abs(v.Y) < thr {
		v.Y = 0
	}
	if math.Abs(v.Z) < thr {
		v.Z = 0
	}
	return v
}

// Current returns the snapshot published at the top of the latest tick.
func (t *Tracker) Current() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

func (t *Tracker) publish(now time.Time) {
	t.mu.Lock()
	t.snap = Snapshot{
		Timestamp:       now,
		Position:        t.pos,
		Velocity:        t.velocity,
		Acceleration:    t.accel,
		Orientation:     t.orientation,
		AngularVelocity: t.angVel,
	}
	t.mu.Unlock()
}

// Tick publishes the current snapshot and then advances the estimate by dt
// seconds. Publishing first gives concurrent readers a consistent state
// taken at the top of the tick.
func (t *Tracker) Tick(now time.Time, dt float64) error {
	t.publish(now)
	return t.Update(dt)
}

// Run updates the pose at a fixed interval until the context is cancelled
// or the IMU becomes unavailable. Transient read failures are logged and
// the tick skipped; a missing driver aborts the loop.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("nav: invalid update interval %v", interval)
	}

	ticker := t.clk.Ticker(interval)
	defer ticker.Stop()

	dt := interval.Seconds()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := t.Tick(now, dt); err != nil {
				if imu.IsUnavailable(err) {
					return err
				}
				log.Printf("nav: tick skipped: %v", err)
			}
		}
	}
}

// Clock exposes the tracker's clock so wrappers tick on the same source.
func (t *Tracker) Clock() clock.Clock { return t.clk }
