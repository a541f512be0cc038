package mobility

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingActuator struct {
	mu   sync.Mutex
	last [2]float64
}

func (a *recordingActuator) SetSpeeds(l, r float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = [2]float64{l, r}
	return nil
}

func (a *recordingActuator) Stop() error {
	return a.SetSpeeds(0, 0)
}

func TestObserveThresholds(t *testing.T) {
	t.Parallel()
	g := NewGuard(DefaultConfig(), nil, nil)

	assert.Equal(t, ModeStop, g.Observe(14.9))
	assert.Equal(t, ModeSlow, g.Observe(15.0))
	assert.Equal(t, ModeSlow, g.Observe(29.9))
	assert.Equal(t, ModeClear, g.Observe(30.0))
	assert.Equal(t, ModeClear, g.Observe(120))
}

func TestObserveTransitionsBothWays(t *testing.T) {
	t.Parallel()
	g := NewGuard(DefaultConfig(), nil, nil)

	g.Observe(10)
	assert.Equal(t, ModeStop, g.Mode())
	g.Observe(25)
	assert.Equal(t, ModeSlow, g.Mode())
	g.Observe(50)
	assert.Equal(t, ModeClear, g.Mode())
}

func TestWrappedActuatorScalesSpeed(t *testing.T) {
	t.Parallel()
	g := NewGuard(DefaultConfig(), nil, nil)
	motors := &recordingActuator{}
	wrapped := g.Wrap(motors)

	g.Observe(100)
	require.NoError(t, wrapped.SetSpeeds(20, 20))
	assert.Equal(t, [2]float64{20, 20}, motors.last)

	g.Observe(20)
	require.NoError(t, wrapped.SetSpeeds(20, 20))
	assert.Equal(t, [2]float64{10, 10}, motors.last)

	g.Observe(5)
	require.NoError(t, wrapped.SetSpeeds(20, 20))
	assert.Equal(t, [2]float64{0, 0}, motors.last)
}

func TestWrappedStopAlwaysPassesThrough(t *testing.T) {
	t.Parallel()
	g := NewGuard(DefaultConfig(), nil, nil)
	motors := &recordingActuator{last: [2]float64{9, 9}}
	wrapped := g.Wrap(motors)

	g.Observe(100)
	require.NoError(t, wrapped.Stop())
	assert.Equal(t, [2]float64{0, 0}, motors.last)
}
