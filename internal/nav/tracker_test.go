package nav

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ENGR161-Team1/MARCO/internal/calibration"
	"github.com/ENGR161-Team1/MARCO/internal/imu"
)

// stubIMU returns samples from a generator function.
type stubIMU struct {
	fn    func(call int) (imu.Sample, error)
	calls int
}

func (s *stubIMU) Read() (imu.Sample, error) {
	s.calls++
	return s.fn(s.calls)
}

func gravityOnly() *stubIMU {
	return &stubIMU{fn: func(int) (imu.Sample, error) {
		return imu.Sample{Az: Gravity}, nil
	}}
}

func TestUpdateRejectsBadDt(t *testing.T) {
	t.Parallel()
	tr := New(gravityOnly(), Options{})
	assert.Error(t, tr.Update(0))
	assert.Error(t, tr.Update(-0.04))
}

func TestStationaryCalibratedStaysPut(t *testing.T) {
	t.Parallel()
	bias := &calibration.Bias{AccelMagnitude: Gravity}
	bias.Accel.Z = Gravity

	tr := New(gravityOnly(), Options{
		AccelNoiseThreshold: 0.1,
		VelocityDecay:       0.05,
		Bias:                bias,
	})

	for i := 0; i < 200; i++ {
		require.NoError(t, tr.Update(0.1))
	}

	tr.publish(time.Now())
	snap := tr.Current()
	assert.InDelta(t, 0, snap.Position.Norm(), 1e-9)
	assert.InDelta(t, 0, snap.Velocity.Norm(), 1e-9)
	assert.InDelta(t, 0, snap.Orientation.Norm(), 1e-9)
}

func TestUncalibratedGravitySubtraction(t *testing.T) {
	t.Parallel()
	tr := New(gravityOnly(), Options{AccelNoiseThreshold: 0.1})

	require.NoError(t, tr.Update(0.1))
	require.NoError(t, tr.Update(0.1))

	tr.publish(time.Now())
	snap := tr.Current()
	assert.InDelta(t, 0, snap.Acceleration.Norm(), 1e-9)
	assert.InDelta(t, 0, snap.Velocity.Norm(), 1e-9)
}

func TestVelocityDecayAfterImpulse(t *testing.T) {
	t.Parallel()
	// One tick of real forward acceleration, then a stationary stream.
	src := &stubIMU{fn: func(call int) (imu.Sample, error) {
		if call == 1 {
			return imu.Sample{Ax: 1.0, Az: Gravity}, nil
		}
		return imu.Sample{Az: Gravity}, nil
	}}
	tr := New(src, Options{AccelNoiseThreshold: 0.1, VelocityDecay: 0.1})

	const dt = 0.1
	require.NoError(t, tr.Update(dt)) // stores a = (1,0,0)
	require.NoError(t, tr.Update(dt)) // v += 1*dt, new a gated to zero

	tr.publish(time.Now())
	peak := tr.Current().Velocity.X
	require.InDelta(t, 0.1, peak, 1e-9)

	// Zero acceleration from here on: decay bleeds velocity off each tick.
	prev := peak
	for i := 0; i < 50; i++ {
		require.NoError(t, tr.Update(dt))
		tr.publish(time.Now())
		v := tr.Current().Velocity.X
		assert.LessOrEqual(t, v, prev)
		prev = v
	}
	assert.Less(t, prev, 0.001)
}

func TestPositionUsesPreviousAcceleration(t *testing.T) {
	t.Parallel()
	src := &stubIMU{fn: func(call int) (imu.Sample, error) {
		return imu.Sample{Ax: 2.0, Az: Gravity}, nil
	}}
	tr := New(src, Options{AccelNoiseThreshold: 0.1})

	const dt = 0.5
	// First tick: position update sees zero previous acceleration, so the
	// rover must not move yet even though the sample carries 2 m/s².
	require.NoError(t, tr.Update(dt))
	tr.publish(time.Now())
	assert.InDelta(t, 0, tr.Current().Position.X, 1e-12)

	// Second tick integrates the stored acceleration explicitly.
	require.NoError(t, tr.Update(dt))
	tr.publish(time.Now())
	snap := tr.Current()
	assert.InDelta(t, 0.5*2.0*dt*dt, snap.Position.X, 1e-9)
	assert.InDelta(t, 2.0*dt, snap.Velocity.X, 1e-9)
}

func TestTrapezoidalYawIntegration(t *testing.T) {
	t.Parallel()
	const rate = 10.0 // deg/s about Z
	src := &stubIMU{fn: func(int) (imu.Sample, error) {
		return imu.Sample{Gz: rate, Az: Gravity}, nil
	}}
	bias := &calibration.Bias{}
	bias.Accel.Z = Gravity
	tr := New(src, Options{Mode: imu.Degrees, AccelNoiseThreshold: 0.1, Bias: bias})

	const dt = 0.1
	// First call only seeds the angular velocity.
	require.NoError(t, tr.Update(dt))
	tr.publish(time.Now())
	assert.InDelta(t, 0, tr.Current().Orientation.X, 1e-12)
	assert.InDelta(t, rate, tr.Current().AngularVelocity.X, 1e-12)

	for i := 0; i < 10; i++ {
		require.NoError(t, tr.Update(dt))
	}
	tr.publish(time.Now())
	assert.InDelta(t, 10*rate*dt, tr.Current().Orientation.X, 1e-9)
}

func TestNoiseGatePerAxis(t *testing.T) {
	t.Parallel()
	src := &stubIMU{fn: func(int) (imu.Sample, error) {
		return imu.Sample{Ax: 0.05, Ay: 0.5, Az: Gravity + 0.02}, nil
	}}
	tr := New(src, Options{AccelNoiseThreshold: 0.1})

	require.NoError(t, tr.Update(0.1))
	tr.publish(time.Now())
	snap := tr.Current()
	assert.Zero(t, snap.Acceleration.X)
	assert.InDelta(t, 0.5, snap.Acceleration.Y, 1e-9)
	assert.Zero(t, snap.Acceleration.Z)
}

func TestRunStopsOnUnavailableIMU(t *testing.T) {
	t.Parallel()
	src := &stubIMU{fn: func(int) (imu.Sample, error) {
		return imu.Sample{}, fmt.Errorf("read: %w", imu.ErrUnavailable)
	}}
	mock := clock.NewMock()
	tr := New(src, Options{Clock: mock})

	done := make(chan error, 1)
	go func() { done <- tr.Run(context.Background(), 100*time.Millisecond) }()

	// Let the loop start, then fire one tick.
	time.Sleep(10 * time.Millisecond)
	mock.Add(100 * time.Millisecond)

	select {
	case err := <-done:
		assert.True(t, imu.IsUnavailable(err))
	case <-time.After(2 * time.Second):
		t.Fatal("run did not abort on unavailable sensor")
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	t.Parallel()
	tr := New(gravityOnly(), Options{Clock: clock.NewMock()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tr.Run(ctx, 100*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecorderKeepsBoundedLog(t *testing.T) {
	t.Parallel()
	tr := New(gravityOnly(), Options{})
	rec := NewRecorder(tr, 3)

	for i := 0; i < 5; i++ {
		require.NoError(t, tr.Tick(time.Unix(int64(i), 0), 0.1))
		rec.record(tr.Current())
	}

	entries := rec.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, int64(2), entries[0].Timestamp.Unix())
	assert.Equal(t, int64(4), entries[2].Timestamp.Unix())
	assert.Equal(t, 2, rec.Dropped())
}

func TestRecorderWriteJSON(t *testing.T) {
	t.Parallel()
	tr := New(gravityOnly(), Options{})
	rec := NewRecorder(tr, 10)
	require.NoError(t, tr.Tick(time.Now(), 0.1))
	rec.record(tr.Current())

	path := filepath.Join(t.TempDir(), "poselog.json")
	require.NoError(t, rec.WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded []Snapshot
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Len(t, loaded, 1)
}
