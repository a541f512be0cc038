// Copyright (c) 2026 ENGR161 Team 1 / MARCO Project
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors holds the register-level drivers for the rover's Grove
// hardware: the Base HAT ADC behind the reflectance array, the LSM6DS3
// inertial unit and the ultrasonic ranger.
package sensors

import (
	"encoding/binary"
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/ENGR161-Team1/MARCO/internal/config"
	"github.com/ENGR161-Team1/MARCO/internal/imu"
	"github.com/ENGR161-Team1/MARCO/internal/line"
)

const (
	// Grove Base HAT onboard STM32 ADC.
	basehatAddr = 0x04
	// Raw 12-bit conversion registers, one per channel, starting at 0x10.
	basehatRegRaw = 0x10
	adcFullScale  = 4095.0
)

type lineArray struct {
	dev       i2c.Dev
	channels  []int
	positions []float64
	invert    bool
}

// NewLineArray opens the Base HAT ADC and exposes the configured channels
// as a line sensor row, normalized so that a dark line reads high.
func NewLineArray() (line.Array, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("line array: periph host init: %w", err)
	}

	cfg := config.Get()
	if len(cfg.LineChannels) != len(cfg.LinePositions) {
		return nil, fmt.Errorf("line array: %d ADC channels for %d sensor positions",
			len(cfg.LineChannels), len(cfg.LinePositions))
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("line array: open I2C bus %q: %w", cfg.I2CBus, imu.ErrUnavailable)
	}

	a := &lineArray{
		dev:       i2c.Dev{Bus: bus, Addr: basehatAddr},
		channels:  cfg.LineChannels,
		positions: cfg.LinePositions,
		invert:    cfg.LineInvert,
	}

	// One probe read so a missing HAT fails at construction, not mid-run.
	if _, err := a.readChannel(a.channels[0]); err != nil {
		return nil, fmt.Errorf("line array: probe channel %d: %w", a.channels[0], imu.ErrUnavailable)
	}
	log.Printf("line array: Base HAT ADC ready on %s, %d channels", cfg.I2CBus, len(a.channels))
	return a, nil
}

func (a *lineArray) readChannel(ch int) (float64, error) {
	var buf [2]byte
	if err := a.dev.Tx([]byte{byte(basehatRegRaw + ch)}, buf[:]); err != nil {
		return 0, err
	}
	return float64(binary.LittleEndian.Uint16(buf[:])) / adcFullScale, nil
}

// ReadFrame samples every channel left to right.
func (a *lineArray) ReadFrame() (line.Frame, error) {
	values := make([]float64, len(a.channels))
	for i, ch := range a.channels {
		v, err := a.readChannel(ch)
		if err != nil {
			return line.Frame{}, fmt.Errorf("line array: channel %d: %w", ch, err)
		}
		if a.invert {
			v = 1.0 - v
		}
		values[i] = v
	}
	return line.NewFrame(values, a.positions)
}
