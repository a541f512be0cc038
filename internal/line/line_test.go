package line

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var positions = []float64{-2, -1, 0, 1, 2}

func frame(t *testing.T, values ...float64) Frame {
	t.Helper()
	f, err := NewFrame(values, positions)
	require.NoError(t, err)
	return f
}

func TestNewFrameLengthMismatch(t *testing.T) {
	t.Parallel()
	_, err := NewFrame([]float64{1, 2}, positions)
	assert.Error(t, err)
}

func TestEstimateAllBelowThreshold(t *testing.T) {
	t.Parallel()
	e := Estimator{Threshold: 0.5}
	_, ok := e.Estimate(frame(t, 0.1, 0.3, 0.49, 0.2, 0.05))
	assert.False(t, ok)
}

func TestEstimateSingleSensor(t *testing.T) {
	t.Parallel()
	e := Estimator{Threshold: 0.5}

	for i, want := range positions {
		values := make([]float64, len(positions))
		values[i] = 0.9
		got, ok := e.Estimate(frame(t, values...))
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestEstimateCenteredLine(t *testing.T) {
	t.Parallel()
	e := Estimator{Threshold: 0.5}
	got, ok := e.Estimate(frame(t, 0, 0, 0.9, 0, 0))
	require.True(t, ok)
	assert.Zero(t, got)
}

func TestEstimateWeightedCentroid(t *testing.T) {
	t.Parallel()
	e := Estimator{Threshold: 0.5}
	// Line straddles sensors at 0 and 1 with twice the weight at 1.
	got, ok := e.Estimate(frame(t, 0, 0, 0.5, 1.0, 0))
	require.True(t, ok)
	assert.InDelta(t, (0*0.5+1*1.0)/1.5, got, 1e-12)
}

func TestEstimateExactlyAtThresholdCounts(t *testing.T) {
	t.Parallel()
	e := Estimator{Threshold: 0.5}
	got, ok := e.Estimate(frame(t, 0.5, 0, 0, 0, 0.5))
	require.True(t, ok)
	assert.Zero(t, got) // symmetric, centroid at center
}
