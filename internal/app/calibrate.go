// Copyright (c) 2026 ENGR161 Team 1 / MARCO Project
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ENGR161-Team1/MARCO/internal/calibration"
	"github.com/ENGR161-Team1/MARCO/internal/config"
	"github.com/ENGR161-Team1/MARCO/internal/sensors"
)

// RunCalibrate averages stationary IMU samples into a bias file for the
// pose tracker. The rover must sit still on level ground for the run.
func RunCalibrate() error {
	cfg := config.Get()

	samples := 200
	if cfg.CalibrationSamples > 0 {
		samples = cfg.CalibrationSamples
	}
	interval := 10 * time.Millisecond
	if cfg.CalibrationInterval > 0 {
		interval = time.Duration(cfg.CalibrationInterval) * time.Millisecond
	}

	log.Printf("calibrate: collecting %d samples at %s, keep the rover still", samples, interval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader, err := sensors.NewIMU()
	if err != nil {
		return err
	}

	cal := calibration.Calibrator{Reader: reader}
	bias, err := cal.Run(ctx, samples, interval)
	if err != nil {
		return err
	}

	log.Printf("calibrate: accel bias [%.4f %.4f %.4f] gyro bias [%.4f %.4f %.4f] |a|=%.4f",
		bias.Accel.X, bias.Accel.Y, bias.Accel.Z,
		bias.Gyro.X, bias.Gyro.Y, bias.Gyro.Z,
		bias.AccelMagnitude)

	if err := bias.Save(cfg.CalibrationFile); err != nil {
		return err
	}
	log.Printf("calibrate: saved to %s", cfg.CalibrationFile)
	return nil
}
