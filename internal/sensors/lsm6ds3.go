// Copyright (c) 2026 ENGR161 Team 1 / MARCO Project
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"math"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/ENGR161-Team1/MARCO/internal/config"
	"github.com/ENGR161-Team1/MARCO/internal/imu"
)

// LSM6DS3 accel/gyro registers.
const (
	lsm6Addr    = 0x6A
	lsm6WhoAmI  = 0x0F
	lsm6ChipID  = 0x69
	lsm6Ctrl1XL = 0x10 // accel: ODR + full scale
	lsm6Ctrl2G  = 0x11 // gyro: ODR + full scale
	lsm6Ctrl3C  = 0x12 // BDU + auto-increment
	lsm6OutXLG  = 0x22 // gyro X low; accel follows contiguously at 0x28

	// 104 Hz ODR, ±2g / ±250 dps full scale.
	lsm6Ctrl1Val = 0x40
	lsm6Ctrl2Val = 0x40
	lsm6Ctrl3Val = 0x44

	accelLSB = 0.061e-3 * 9.80665 // m/s² per count at ±2g
	gyroLSB  = 8.75e-3            // deg/s per count at ±250 dps
)

// LIS3MDL magnetometer (present on the 10-DOF Grove board, optional).
const (
	lisAddr   = 0x1C
	lisWhoAmI = 0x0F
	lisChipID = 0x3D
	lisCtrl1  = 0x20
	lisCtrl3  = 0x22
	lisOutXL  = 0x28

	lisCtrl1Val = 0x70 // ultra-high-performance XY, 10 Hz
	lisCtrl3Val = 0x00 // continuous conversion
	magLSB      = 1.0 / 6842.0 * 100.0 // µT per count at ±4 gauss
)

type lsm6ds3 struct {
	dev      i2c.Dev
	mag      i2c.Dev
	magReady bool
	mode     imu.AngleMode
}

// NewIMU initializes the LSM6DS3 over I2C and, when the magnetometer
// answers, the LIS3MDL beside it. A missing accel/gyro is fatal; a missing
// magnetometer only disables the mag fields.
func NewIMU() (imu.Reader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("imu: periph host init: %w", err)
	}

	cfg := config.Get()
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("imu: open I2C bus %q: %w", cfg.I2CBus, imu.ErrUnavailable)
	}

	s := &lsm6ds3{
		dev:  i2c.Dev{Bus: bus, Addr: lsm6Addr},
		mag:  i2c.Dev{Bus: bus, Addr: lisAddr},
		mode: cfg.AngleMode,
	}

	id, err := s.readReg(s.dev, lsm6WhoAmI)
	if err != nil || id != lsm6ChipID {
		return nil, fmt.Errorf("imu: LSM6DS3 not responding (WHO_AM_I=0x%02X): %w", id, imu.ErrUnavailable)
	}

	for _, w := range []struct{ reg, val byte }{
		{lsm6Ctrl3C, lsm6Ctrl3Val},
		{lsm6Ctrl1XL, lsm6Ctrl1Val},
		{lsm6Ctrl2G, lsm6Ctrl2Val},
	} {
		if err := s.writeReg(s.dev, w.reg, w.val); err != nil {
			return nil, fmt.Errorf("imu: configure register 0x%02X: %w", w.reg, err)
		}
	}
	log.Printf("imu: LSM6DS3 ready on %s (±2g, ±250°/s, rates in %s)", cfg.I2CBus, cfg.AngleMode)

	// Magnetometer is best-effort.
	if id, err := s.readReg(s.mag, lisWhoAmI); err == nil && id == lisChipID {
		if err := s.writeReg(s.mag, lisCtrl1, lisCtrl1Val); err == nil {
			if err := s.writeReg(s.mag, lisCtrl3, lisCtrl3Val); err == nil {
				s.magReady = true
				log.Printf("imu: LIS3MDL magnetometer ready")
			}
		}
	}
	if !s.magReady {
		log.Printf("imu: magnetometer not detected, continuing without it")
	}

	return s, nil
}

func (s *lsm6ds3) readReg(dev i2c.Dev, reg byte) (byte, error) {
	var buf [1]byte
	if err := dev.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (s *lsm6ds3) writeReg(dev i2c.Dev, reg, val byte) error {
	return dev.Tx([]byte{reg, val}, nil)
}

func counts(lo, hi byte) float64 {
	return float64(int16(uint16(lo) | uint16(hi)<<8))
}

// Read returns one sample. Gyro and accel come from a single burst read,
// so the two are coherent within a millisecond.
func (s *lsm6ds3) Read() (imu.Sample, error) {
	var buf [12]byte // OUTX_L_G .. OUTZ_H_XL
	if err := s.dev.Tx([]byte{lsm6OutXLG}, buf[:]); err != nil {
		return imu.Sample{}, fmt.Errorf("imu: burst read: %w", err)
	}

	gyroScale := gyroLSB
	if s.mode == imu.Radians {
		gyroScale = gyroLSB * math.Pi / 180.0
	}

	out := imu.Sample{
		Gx: counts(buf[0], buf[1]) * gyroScale,
		Gy: counts(buf[2], buf[3]) * gyroScale,
		Gz: counts(buf[4], buf[5]) * gyroScale,
		Ax: counts(buf[6], buf[7]) * accelLSB,
		Ay: counts(buf[8], buf[9]) * accelLSB,
		Az: counts(buf[10], buf[11]) * accelLSB,
	}

	if s.magReady {
		var mbuf [6]byte
		if err := s.mag.Tx([]byte{lisOutXL}, mbuf[:]); err != nil {
			log.Printf("imu: magnetometer read error: %v", err)
		} else {
			out.Mx = counts(mbuf[0], mbuf[1]) * magLSB
			out.My = counts(mbuf[2], mbuf[3]) * magLSB
			out.Mz = counts(mbuf[4], mbuf[5]) * magLSB
			out.HasMag = true
		}
	}
	return out, nil
}
