// Copyright (c) 2026 ENGR161 Team 1 / MARCO Project
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/ENGR161-Team1/MARCO/internal/imu"
)

// speedOfSound in cm/s at room temperature.
const speedOfSound = 34300.0

// Ultrasonic drives a single-pin Grove ultrasonic ranger: the signal pin
// is pulsed as an output, then flipped to an input to time the echo.
type Ultrasonic struct {
	pin gpio.PinIO
}

// NewUltrasonic claims the named GPIO pin.
func NewUltrasonic(pinName string) (*Ultrasonic, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("ultrasonic: periph host init: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("ultrasonic: pin %q not found: %w", pinName, imu.ErrUnavailable)
	}
	log.Printf("ultrasonic: ranger on pin %s", pinName)
	return &Ultrasonic{pin: pin}, nil
}

// Distance returns the range to the nearest obstacle in cm.
func (u *Ultrasonic) Distance() (float64, error) {
	// 10µs trigger pulse.
	if err := u.pin.Out(gpio.Low); err != nil {
		return 0, fmt.Errorf("ultrasonic: trigger low: %w", err)
	}
	time.Sleep(2 * time.Microsecond)
	if err := u.pin.Out(gpio.High); err != nil {
		return 0, fmt.Errorf("ultrasonic: trigger high: %w", err)
	}
	time.Sleep(10 * time.Microsecond)
	if err := u.pin.Out(gpio.Low); err != nil {
		return 0, fmt.Errorf("ultrasonic: trigger end: %w", err)
	}

	if err := u.pin.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return 0, fmt.Errorf("ultrasonic: switch to input: %w", err)
	}

	// Rising edge starts the echo window, falling edge ends it. The 30ms
	// cap corresponds to roughly 5m, past any obstacle we care about.
	if !u.pin.WaitForEdge(30 * time.Millisecond) {
		return 0, fmt.Errorf("ultrasonic: no echo start")
	}
	start := time.Now()
	if !u.pin.WaitForEdge(30 * time.Millisecond) {
		return 0, fmt.Errorf("ultrasonic: no echo end")
	}
	elapsed := time.Since(start)

	return elapsed.Seconds() * speedOfSound / 2.0, nil
}
