package follow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ENGR161-Team1/MARCO/internal/line"
)

// trackArray simulates a line drifting under the array, or disappearing
// after a set number of ticks.
type trackArray struct {
	mu       sync.Mutex
	reads    int
	loseFrom int // first read with no line; 0 means never lost
	offset   int // index of the lit sensor
}

func (a *trackArray) ReadFrame() (line.Frame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reads++
	values := []float64{0, 0, 0, 0, 0}
	if a.loseFrom == 0 || a.reads < a.loseFrom {
		values[a.offset] = 0.9
	}
	return line.Frame{Values: values, Positions: []float64{-2, -1, 0, 1, 2}}, nil
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.TickPeriod = time.Millisecond
	cfg.RunDuration = 50 * time.Millisecond
	cfg.Recovery = fastRecoveryConfig()
	return cfg
}

func TestRunCompletesOnDuration(t *testing.T) {
	t.Parallel()
	sensor := &trackArray{offset: 2} // centered, never lost
	motors := &fakeMotors{}
	nav := New(fastConfig(), sensor, motors)

	out, err := nav.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Zero(t, out.Recoveries)
	assert.Equal(t, "continuous", out.LineType)
	assert.True(t, motors.isStopped())
	assert.Positive(t, out.Ticks)
}

func TestRunCenteredLineDrivesStraight(t *testing.T) {
	t.Parallel()
	sensor := &trackArray{offset: 2}
	motors := &fakeMotors{}
	nav := New(fastConfig(), sensor, motors)

	_, err := nav.Run(context.Background())
	require.NoError(t, err)

	// Zero error through the whole run: no wheel differential ever.
	cmds := motors.lastCommands()
	require.NotEmpty(t, cmds)
	for _, c := range cmds {
		assert.InDelta(t, c.Left, c.Right, 1e-9)
	}
}

func TestRunOffsetLineSteersBackTowardIt(t *testing.T) {
	t.Parallel()
	sensor := &trackArray{offset: 3} // line to the right of center
	motors := &fakeMotors{}
	nav := New(fastConfig(), sensor, motors)

	_, err := nav.Run(context.Background())
	require.NoError(t, err)

	cmds := motors.lastCommands()
	require.NotEmpty(t, cmds)
	// Positive lateral error must speed the right wheel relative to the
	// left to curve toward the line.
	assert.Greater(t, cmds[0].Right, cmds[0].Left)
}

func TestRunFailsWhenLineNeverReturns(t *testing.T) {
	t.Parallel()
	cfg := fastConfig()
	cfg.RunDuration = 10 * time.Second // never reached
	sensor := &trackArray{offset: 2, loseFrom: 5}
	motors := &fakeMotors{}
	nav := New(cfg, sensor, motors)

	out, err := nav.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, 1, out.Recoveries)
	assert.True(t, motors.isStopped(), "failed run must end with motors stopped")
}

func TestRunRecoversFromShortGap(t *testing.T) {
	t.Parallel()
	cfg := fastConfig()
	sensor := &trackArray{offset: 2, loseFrom: 5}
	motors := &fakeMotors{}
	nav := New(cfg, sensor, motors)

	// Put the line back on the second recovery sample.
	go func() {
		time.Sleep(8 * time.Millisecond)
		sensor.mu.Lock()
		sensor.loseFrom = 0
		sensor.mu.Unlock()
	}()

	out, err := nav.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 1, out.Recoveries)
}

func TestRunCancelledStopsMotors(t *testing.T) {
	t.Parallel()
	cfg := fastConfig()
	cfg.RunDuration = time.Hour
	sensor := &trackArray{offset: 2}
	motors := &fakeMotors{}
	nav := New(cfg, sensor, motors)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := nav.Run(ctx)
	require.Error(t, err)
	assert.True(t, motors.isStopped())
}

func TestLineTypeDiagnostics(t *testing.T) {
	t.Parallel()
	nav := New(fastConfig(), &trackArray{offset: 2}, &fakeMotors{})
	assert.Equal(t, "unknown", nav.LineType())

	for i := 0; i < 20; i++ {
		nav.win.push(true)
	}
	assert.Equal(t, "continuous", nav.LineType())

	for i := 0; i < 10; i++ {
		nav.win.push(false)
	}
	assert.Equal(t, "dotted/broken", nav.LineType())
}

func TestRunExpiresDespiteSensorErrors(t *testing.T) {
	t.Parallel()
	// Every read fails transiently; the run must still end on schedule.
	sensor := &scriptedArray{err: errors.New("flaky bus")}
	motors := &fakeMotors{}
	nav := New(fastConfig(), sensor, motors)

	done := make(chan struct{})
	var out Outcome
	var err error
	go func() {
		out, err = nav.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not expire with an erroring sensor")
	}
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.True(t, motors.isStopped())
}
