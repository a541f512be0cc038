// Package line turns reflectance-array readings into a signed lateral
// error: the offset of the guide line from the rover's centerline.
package line

import "fmt"

// Frame is one read of the line sensor array: normalized intensities in
// [0,1] paired with the fixed lateral position of each element. High
// intensity means dark line, low means background.
type Frame struct {
	Values    []float64
	Positions []float64
}

// NewFrame pairs values with positions; the lengths must match.
func NewFrame(values, positions []float64) (Frame, error) {
	if len(values) != len(positions) {
		return Frame{}, fmt.Errorf("line: %d values for %d sensor positions", len(values), len(positions))
	}
	return Frame{Values: values, Positions: positions}, nil
}

// Array is anything that can read the reflectance sensor row: real
// hardware, a replay source, or a simulated track.
type Array interface {
	ReadFrame() (Frame, error)
}

// Estimator converts frames to lateral errors with a fixed detection
// threshold.
type Estimator struct {
	Threshold float64
}

// Estimate returns the intensity-weighted centroid of the elements at or
// above the threshold. ok is false when every element reads below it: the
// line is not under the array. The centroid gives sub-sensor-spacing
// resolution, unlike a binary majority vote.
func (e Estimator) Estimate(f Frame) (pos float64, ok bool) {
	var total, weighted float64
	for i, v := range f.Values {
		if v >= e.Threshold {
			total += v
			weighted += f.Positions[i] * v
		}
	}
	if total == 0 {
		return 0, false
	}
	return weighted / total, true
}
