package follow

import "github.com/ENGR161-Team1/MARCO/internal/drive"

// odometer tracks forward travel from cumulative wheel-encoder readings,
// degrading to a speed×dt estimate when the hardware has no encoders or a
// read transiently fails.
type odometer struct {
	enc    drive.Encoder
	lastL  float64
	lastR  float64
	primed bool
}

func newOdometer(enc drive.Encoder) *odometer {
	return &odometer{enc: enc}
}

// prime establishes the encoder baseline; harmless without hardware.
func (o *odometer) prime() {
	if o.enc == nil {
		return
	}
	l, r, err := o.enc.Distances()
	if err != nil {
		return
	}
	o.lastL, o.lastR, o.primed = l, r, true
}

// increment returns the cm travelled since the previous call, preferring
// encoder deltas over the speed×dt fallback.
func (o *odometer) increment(speed, dt float64) float64 {
	if o.enc != nil {
		l, r, err := o.enc.Distances()
		if err == nil {
			if !o.primed {
				o.lastL, o.lastR, o.primed = l, r, true
				return speed * dt
			}
			dl, dr := l-o.lastL, r-o.lastR
			o.lastL, o.lastR = l, r
			return (dl + dr) / 2.0
		}
	}
	return speed * dt
}
