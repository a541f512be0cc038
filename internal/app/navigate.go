// Copyright (c) 2026 ENGR161 Team 1 / MARCO Project
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ENGR161-Team1/MARCO/internal/calibration"
	"github.com/ENGR161-Team1/MARCO/internal/config"
	"github.com/ENGR161-Team1/MARCO/internal/nav"
	"github.com/ENGR161-Team1/MARCO/internal/sensors"
)

// RunNavigate streams dead-reckoned pose from the IMU: integrate at the
// configured interval, keep a bounded in-memory log, publish each snapshot
// over MQTT, and dump the log to disk on shutdown.
func RunNavigate() error {
	log.Println("starting MARCO pose tracker")

	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader, err := sensors.NewIMU()
	if err != nil {
		return err
	}

	opts := nav.Options{
		Mode:                cfg.AngleMode,
		AccelNoiseThreshold: cfg.AccelNoiseThreshold,
		VelocityDecay:       cfg.VelocityDecay,
	}

	// A saved stationary calibration folds sensor bias and the gravity
	// reaction into one correction. Missing file just means raw mode.
	if cfg.CalibrationFile != "" {
		if bias, err := calibration.Load(cfg.CalibrationFile); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Printf("navigate: no calibration at %s, running uncalibrated", cfg.CalibrationFile)
			} else {
				log.Printf("navigate: calibration load error, running uncalibrated: %v", err)
			}
		} else {
			log.Printf("navigate: calibration loaded (%d samples from %s)", bias.Samples, bias.CalibratedAt)
			opts.Bias = &bias
		}
	}

	tracker := nav.New(reader, opts)

	capacity := 4096
	if cfg.PoseLogCapacity > 0 {
		capacity = cfg.PoseLogCapacity
	}
	recorder := nav.NewRecorder(tracker, capacity)

	var client mqtt.Client
	if cfg.MQTTBroker != "" {
		mopts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDNavigate)
		client = mqtt.NewClient(mopts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("navigate: MQTT connect error, telemetry disabled: %v", token.Error())
			client = nil
		} else {
			log.Println("navigate: connected to MQTT, publishing pose")
			defer client.Disconnect(250)
		}
	}

	interval := time.Duration(cfg.NavInterval) * time.Millisecond

	// The recorder's loop is the single tracker writer; this goroutine only
	// reads snapshots for telemetry.
	errCh := make(chan error, 1)
	go func() { errCh <- recorder.Run(ctx, interval) }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-errCh:
			if err != nil && ctx.Err() == nil {
				return err
			}
			break loop
		case <-ticker.C:
			if client == nil {
				continue
			}
			snap := recorder.Current()
			payload, err := json.Marshal(snap)
			if err != nil {
				log.Printf("navigate: snapshot marshal error: %v", err)
				continue
			}
			if token := client.Publish(cfg.TopicPose, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("navigate: MQTT publish error (pose): %v", token.Error())
			}
		}
	}

	if cfg.PoseLogFile != "" {
		if err := recorder.WriteJSON(cfg.PoseLogFile); err != nil {
			log.Printf("navigate: pose log write error: %v", err)
		} else {
			log.Printf("navigate: pose log written to %s (%d entries, %d dropped)",
				cfg.PoseLogFile, len(recorder.Entries()), recorder.Dropped())
		}
	}

	snap := recorder.Current()
	log.Printf("navigate: final pose x=%.1f y=%.1f z=%.1f heading=%.1f",
		snap.Position.X, snap.Position.Y, snap.Position.Z, snap.Heading())
	return nil
}
