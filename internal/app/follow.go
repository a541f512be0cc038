// Copyright (c) 2026 ENGR161 Team 1 / MARCO Project
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"log"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ENGR161-Team1/MARCO/internal/buildhat"
	"github.com/ENGR161-Team1/MARCO/internal/config"
	"github.com/ENGR161-Team1/MARCO/internal/drive"
	"github.com/ENGR161-Team1/MARCO/internal/follow"
	"github.com/ENGR161-Team1/MARCO/internal/mobility"
	"github.com/ENGR161-Team1/MARCO/internal/sensors"
)

func followConfig(cfg *config.Config) follow.Config {
	fc := follow.DefaultConfig()
	if cfg.Speed > 0 {
		fc.Speed = cfg.Speed
	}
	if cfg.RunDuration > 0 {
		fc.RunDuration = time.Duration(cfg.RunDuration) * time.Second
	}
	if cfg.TickPeriod > 0 {
		fc.TickPeriod = time.Duration(cfg.TickPeriod) * time.Millisecond
	}
	if cfg.LineThreshold > 0 {
		fc.Threshold = cfg.LineThreshold
	}
	if cfg.Kp != 0 {
		fc.Kp, fc.Ki, fc.Kd = cfg.Kp, cfg.Ki, cfg.Kd
	}
	fc.MaxSpeed = cfg.MaxSpeed
	fc.WheelBase = cfg.WheelBase
	if cfg.MinRadius > 0 {
		fc.MinRadius = cfg.MinRadius
	}
	if cfg.WindowSize > 0 {
		fc.WindowSize = cfg.WindowSize
	}
	if cfg.ReacquireTime > 0 {
		fc.Recovery.MaxReacquireTime = time.Duration(cfg.ReacquireTime) * time.Millisecond
	}
	if cfg.ReacquireMaxDist > 0 {
		fc.Recovery.MaxDistance = cfg.ReacquireMaxDist
	}
	if cfg.SweepAngle > 0 {
		fc.Recovery.SweepAngle = cfg.SweepAngle
	}
	if cfg.SweepStep > 0 {
		fc.Recovery.SweepStep = cfg.SweepStep
	}
	return fc
}

func wrapGuard(guard *mobility.Guard, motors drive.Actuator) drive.Actuator {
	if guard == nil {
		return motors
	}
	return guard.Wrap(motors)
}

// RunFollow drives the line-following mission: line array in, Build HAT
// motors out, with the ultrasonic safety ring wrapped around the actuator.
func RunFollow() error {
	log.Println("starting MARCO line follower")

	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sensor, err := sensors.NewLineArray()
	if err != nil {
		return err
	}

	motors, err := buildhat.Open()
	if err != nil {
		return err
	}
	defer motors.Close()

	// Safety ring: ultrasonic ranger scales or zeroes wheel commands. A
	// missing ranger degrades to an unguarded run rather than aborting.
	var guard *mobility.Guard
	if ranger, err := sensors.NewUltrasonic(cfg.UltrasonicPin); err != nil {
		log.Printf("follow: ultrasonic unavailable, running unguarded: %v", err)
	} else {
		gc := mobility.DefaultConfig()
		if cfg.StoppingDistance > 0 {
			gc.StoppingDistance = cfg.StoppingDistance
		}
		if cfg.SlowdownDistance > 0 {
			gc.SlowdownDistance = cfg.SlowdownDistance
		}
		if cfg.SlowFactor > 0 {
			gc.SlowFactor = cfg.SlowFactor
		}
		guard = mobility.NewGuard(gc, ranger, nil)
		interval := 100 * time.Millisecond
		if cfg.SafetyInterval > 0 {
			interval = time.Duration(cfg.SafetyInterval) * time.Millisecond
		}
		go func() {
			if err := guard.Run(ctx, interval); err != nil && ctx.Err() == nil {
				log.Printf("follow: safety ring stopped: %v", err)
			}
		}()
	}

	nav := follow.New(followConfig(cfg), sensor, wrapGuard(guard, motors),
		follow.WithEncoder(motors))

	// Status telemetry is best-effort; the rover runs without a broker.
	var client mqtt.Client
	if cfg.MQTTBroker != "" {
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDFollow)
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("follow: MQTT connect error, telemetry disabled: %v", token.Error())
			client = nil
		} else {
			defer client.Disconnect(250)
		}
	}

	out, err := nav.Run(ctx)
	log.Printf("follow: done: success=%v line=%q ticks=%d recoveries=%d distance=%.1fcm",
		out.Success, out.LineType, out.Ticks, out.Recoveries, out.Distance)

	if client != nil {
		if payload, merr := json.Marshal(out); merr != nil {
			log.Printf("follow: outcome marshal error: %v", merr)
		} else if token := client.Publish(cfg.TopicStatus, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("follow: MQTT publish error (status): %v", token.Error())
		}
	}

	if ctx.Err() != nil {
		log.Println("follow: interrupted")
		return nil
	}
	return err
}
