package imu

import "errors"

// ErrUnavailable marks a structurally missing sensor: the driver is absent
// or the device never answered on the bus. Loops abort on it instead of
// retrying; transient read errors wrap something else.
var ErrUnavailable = errors.New("imu: sensor unavailable")

// IsUnavailable reports whether err stems from a missing sensor.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
