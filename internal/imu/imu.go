package imu

// AngleMode selects the unit the gyroscope rates are reported in.
type AngleMode int

const (
	Degrees AngleMode = iota
	Radians
)

func (m AngleMode) String() string {
	if m == Radians {
		return "radians"
	}
	return "degrees"
}

// Sample is a single inertial reading in physical units: accelerometer in
// m/s², gyroscope in the configured AngleMode per second, magnetometer in µT.
type Sample struct {
	Ax float64 `json:"ax"` // accel
	Ay float64 `json:"ay"`
	Az float64 `json:"az"`

	Gx float64 `json:"gx"` // gyro
	Gy float64 `json:"gy"`
	Gz float64 `json:"gz"`

	Mx float64 `json:"mx"` // magnetometer, zero when absent
	My float64 `json:"my"`
	Mz float64 `json:"mz"`

	HasMag bool `json:"has_mag"`
}

// Reader is anything that can produce inertial samples over time:
// a real I2C sensor, a replay source, or a test stub.
type Reader interface {
	Read() (Sample, error)
}
