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
	flag.Parse()

	log.Println("starting MARCO pose tracker (IMU → dead reckoning → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunNavigate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
