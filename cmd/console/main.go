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

	log.Println("starting MARCO telemetry console (MQTT → stdout)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
