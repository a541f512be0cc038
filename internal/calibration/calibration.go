// Copyright (c) 2026 ENGR161 Team 1 / MARCO Project
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration estimates steady-state IMU sensor bias by averaging
// readings taken while the rover sits still. The caller is responsible for
// keeping the platform stationary during Calibrate; the package does not
// verify stillness.
package calibration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ENGR161-Team1/MARCO/internal/imu"
	"github.com/ENGR161-Team1/MARCO/internal/rotation"
)

// Bias holds steady-state sensor offsets in the same units as imu.Sample.
// AccelMagnitude is the average magnitude of the stationary accelerometer
// vector, i.e. the locally measured gravity baseline.
type Bias struct {
	SchemaVersion int    `json:"schema_version"`
	CalibratedAt  string `json:"calibrated_at"` // RFC3339
	Samples       int    `json:"samples"`

	Accel rotation.Vec3 `json:"accel_bias"`
	Gyro  rotation.Vec3 `json:"gyro_bias"`

	AccelMagnitude float64 `json:"accel_magnitude"`
}

// Apply returns s with accelerometer and gyroscope bias removed.
// Magnetometer values pass through untouched.
func (b Bias) Apply(s imu.Sample) imu.Sample {
	s.Ax -= b.Accel.X
	s.Ay -= b.Accel.Y
	s.Az -= b.Accel.Z
	s.Gx -= b.Gyro.X
	s.Gy -= b.Gyro.Y
	s.Gz -= b.Gyro.Z
	return s
}

// Calibrator averages stationary samples into a Bias.
type Calibrator struct {
	Reader imu.Reader
	Clock  clock.Clock // nil means wall clock
}

// Run reads n samples spaced by interval and returns their average as a
// Bias. A read error aborts the run; partial averages are never returned.
func (c Calibrator) Run(ctx context.Context, n int, interval time.Duration) (Bias, error) {
	if n <= 0 {
		return Bias{}, fmt.Errorf("calibration: sample count must be positive, got %d", n)
	}
	clk := c.Clock
	if clk == nil {
		clk = clock.New()
	}

	var accel, gyro rotation.Vec3
	var magSum float64

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return Bias{}, fmt.Errorf("calibration: aborted after %d of %d samples: %w", i, n, err)
		}

		s, err := c.Reader.Read()
		if err != nil {
			return Bias{}, fmt.Errorf("calibration: sample %d of %d: %w", i+1, n, err)
		}

		a := rotation.Vec3{X: s.Ax, Y: s.Ay, Z: s.Az}
		accel = accel.Add(a)
		gyro = gyro.Add(rotation.Vec3{X: s.Gx, Y: s.Gy, Z: s.Gz})
		magSum += a.Norm()

		if interval > 0 && i < n-1 {
			t := clk.Timer(interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return Bias{}, fmt.Errorf("calibration: aborted after %d of %d samples: %w", i+1, n, ctx.Err())
			case <-t.C:
			}
		}
	}

	inv := 1.0 / float64(n)
	return Bias{
		SchemaVersion:  1,
		CalibratedAt:   time.Now().Format(time.RFC3339),
		Samples:        n,
		Accel:          accel.Scale(inv),
		Gyro:           gyro.Scale(inv),
		AccelMagnitude: magSum * inv,
	}, nil
}

// Save writes the bias as indented JSON, creating parent directories.
func (b Bias) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("calibration: create output dir: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("calibration: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("calibration: write %s: %w", path, err)
	}
	return nil
}

// Load reads a bias file written by Save.
func Load(path string) (Bias, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bias{}, fmt.Errorf("calibration: read %s: %w", path, err)
	}
	var b Bias
	if err := json.Unmarshal(data, &b); err != nil {
		return Bias{}, fmt.Errorf("calibration: parse %s: %w", path, err)
	}
	return b, nil
}
