// Copyright (c) 2026 ENGR161 Team 1 / MARCO Project
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package buildhat speaks the Build HAT text protocol over the Pi's
// serial port to drive the two wheel motors and read their encoders.
package buildhat

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/ENGR161-Team1/MARCO/internal/config"
	"github.com/ENGR161-Team1/MARCO/internal/imu"
)

// Drive owns the two motor ports. It implements drive.Actuator and
// drive.Encoder; serialized access keeps command/reply pairs matched on
// the single serial line.
type Drive struct {
	mu     sync.Mutex
	port   io.ReadWriteCloser
	reader *bufio.Reader

	leftPort  int
	rightPort int
	maxSpeed  float64 // cm/s that maps to full duty
	wheelCirc float64 // cm per wheel revolution

	// The left motor faces backward on the chassis, so its sign flips.
	leftInverted bool
}

// Open connects to the Build HAT and wakes both motor ports.
func Open() (*Drive, error) {
	cfg := config.Get()

	opts := serial.OpenOptions{
		PortName:   cfg.BuildHATPort,
		BaudRate:   uint(cfg.BuildHATBaud),
		DataBits:   8,
		StopBits:   1,
		ParityMode: serial.PARITY_NONE,
		// Zero MinimumReadSize with a timeout makes reads return on a
		// silent HAT instead of blocking forever.
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("buildhat: open %s: %w", cfg.BuildHATPort, imu.ErrUnavailable)
	}
	log.Printf("buildhat: serial port %s open at %d baud", cfg.BuildHATPort, cfg.BuildHATBaud)

	d := &Drive{
		port:         port,
		reader:       bufio.NewReader(port),
		leftPort:     cfg.MotorLeftPort,
		rightPort:    cfg.MotorRightPort,
		maxSpeed:     cfg.MaxSpeed,
		wheelCirc:    2 * math.Pi * cfg.WheelRadius,
		leftInverted: cfg.MotorLeftInverted,
	}

	for _, p := range []int{d.leftPort, d.rightPort} {
		if err := d.send(fmt.Sprintf("port %d ; plimit 1 ; bias 0.3", p)); err != nil {
			port.Close()
			return nil, fmt.Errorf("buildhat: wake port %d: %w", p, err)
		}
	}
	return d, nil
}

// Close stops both motors and releases the serial port.
func (d *Drive) Close() error {
	_ = d.Stop()
	return d.port.Close()
}

func (d *Drive) send(cmd string) error {
	if _, err := d.port.Write([]byte(cmd + "\r")); err != nil {
		return fmt.Errorf("buildhat: write %q: %w", cmd, err)
	}
	return nil
}

// duty maps a signed cm/s speed onto the HAT's -1..1 PWM range.
func (d *Drive) duty(speed float64) float64 {
	if d.maxSpeed <= 0 {
		return 0
	}
	duty := speed / d.maxSpeed
	if duty > 1 {
		duty = 1
	}
	if duty < -1 {
		duty = -1
	}
	return duty
}

// SetSpeeds drives the wheels at signed linear speeds in cm/s.
func (d *Drive) SetSpeeds(left, right float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.leftInverted {
		left = -left
	}
	if err := d.send(fmt.Sprintf("port %d ; set %.3f", d.leftPort, d.duty(left))); err != nil {
		return err
	}
	return d.send(fmt.Sprintf("port %d ; set %.3f", d.rightPort, d.duty(right)))
}

// Stop cuts power to both motors.
func (d *Drive) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.send(fmt.Sprintf("port %d ; off", d.leftPort)); err != nil {
		return err
	}
	return d.send(fmt.Sprintf("port %d ; off", d.rightPort))
}

// Distances reads the cumulative encoder positions of both motors and
// converts degrees of shaft rotation to cm of wheel travel.
func (d *Drive) Distances() (float64, float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	left, err := d.readPosition(d.leftPort)
	if err != nil {
		return 0, 0, err
	}
	right, err := d.readPosition(d.rightPort)
	if err != nil {
		return 0, 0, err
	}
	if d.leftInverted {
		left = -left
	}
	return left / 360.0 * d.wheelCirc, right / 360.0 * d.wheelCirc, nil
}

// readPosition asks one port for a single APOS report. Replies look like
// "P0C0: +180".
func (d *Drive) readPosition(portN int) (float64, error) {
	if err := d.send(fmt.Sprintf("port %d ; selonce 0", portN)); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(200 * time.Millisecond)
	prefix := fmt.Sprintf("P%dC0:", portN)
	for time.Now().Before(deadline) {
		raw, err := d.reader.ReadString('\n')
		if err == io.EOF {
			// Serial read timed out with no data; retry until the deadline.
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("buildhat: read port %d position: %w", portN, err)
		}
		lineStr := strings.TrimSpace(raw)
		if !strings.HasPrefix(lineStr, prefix) {
			continue // unsolicited report from the other port
		}
		field := strings.TrimSpace(strings.TrimPrefix(lineStr, prefix))
		deg, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return 0, fmt.Errorf("buildhat: parse position %q: %w", field, err)
		}
		return deg, nil
	}
	return 0, fmt.Errorf("buildhat: port %d position timed out", portN)
}
