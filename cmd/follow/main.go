// Copyright (c) 2026 ENGR161 Team 1 / MARCO Project
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/ENGR161-Team1/MARCO/internal/app"
	"github.com/ENGR161-Team1/MARCO/internal/config"
)

func main() {
	configPath := flag.String("config", "./marco_config.txt", "path to configuration file")
	speed := flag.Float64("speed", 0, "override forward speed in cm/s (0 = config value)")
	duration := flag.Int("duration", 0, "override run duration in seconds (0 = config value)")
	flag.Parse()

	log.Println("starting MARCO line follower (sensor array → PID → Build HAT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *speed > 0 {
		config.Get().Speed = *speed
	}
	if *duration > 0 {
		config.Get().RunDuration = *duration
	}

	if err := app.RunFollow(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
