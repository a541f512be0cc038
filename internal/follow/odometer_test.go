package follow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEncoder struct {
	left, right float64
	err         error
}

func (e *fakeEncoder) Distances() (float64, float64, error) {
	return e.left, e.right, e.err
}

func TestOdometerFallbackWithoutEncoder(t *testing.T) {
	t.Parallel()
	o := newOdometer(nil)
	o.prime()
	assert.InDelta(t, 15*0.04, o.increment(15, 0.04), 1e-12)
}

func TestOdometerUsesEncoderDeltas(t *testing.T) {
	t.Parallel()
	enc := &fakeEncoder{left: 10, right: 12}
	o := newOdometer(enc)
	o.prime()

	enc.left, enc.right = 13, 15
	assert.InDelta(t, 3, o.increment(15, 0.04), 1e-12)

	// Deltas 1 and 3 average to 2 cm of chassis travel.
	enc.left, enc.right = 14, 18
	assert.InDelta(t, 2, o.increment(15, 0.04), 1e-12)
}

func TestOdometerDegradesOnTransientError(t *testing.T) {
	t.Parallel()
	enc := &fakeEncoder{left: 10, right: 10}
	o := newOdometer(enc)
	o.prime()

	enc.err = errors.New("bus noise")
	assert.InDelta(t, 15*0.04, o.increment(15, 0.04), 1e-12)

	// Encoder back: baseline was kept, deltas resume.
	enc.err = nil
	enc.left, enc.right = 11, 11
	assert.InDelta(t, 1, o.increment(15, 0.04), 1e-12)
}

func TestOdometerFirstReadPrimesBaseline(t *testing.T) {
	t.Parallel()
	enc := &fakeEncoder{left: 100, right: 100}
	o := newOdometer(enc)
	// No prime: the first increment establishes the baseline and falls
	// back to the speed estimate instead of reporting 100 cm of travel.
	assert.InDelta(t, 15*0.04, o.increment(15, 0.04), 1e-12)
	enc.left, enc.right = 101, 101
	assert.InDelta(t, 1, o.increment(15, 0.04), 1e-12)
}
