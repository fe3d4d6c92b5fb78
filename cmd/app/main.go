package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"AOWI/internal/di"
	"AOWI/internal/domain/models"
	"AOWI/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	cycles := flag.Int("cycles", 1, "dispatch cycles to run, negative runs until interrupted (default from config)")
	mode := flag.String("mode", "", "broker mode: simulation or live (default from config)")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Printf("config load failed: %v", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cycles":
			n := *cycles
			cfg.Dispatch.Cycles = &n
		case "mode":
			cfg.Broker.Mode = *mode
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Printf("invalid flags: %v", err)
		os.Exit(1)
	}

	// Wire DI: Initialize all dependencies
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		var cerr *models.ConfigError
		if errors.As(err, &cerr) {
			log.Printf("strategy configuration rejected: %v", err)
		} else {
			log.Printf("app initialization failed: %v", err)
		}
		os.Exit(1)
	}

	// Run application (blocks until the cycle budget is spent or a signal arrives)
	err = app.Run(context.Background())
	cleanup()
	if err != nil {
		if errors.Is(err, models.ErrNoBackend) {
			log.Printf("no broker backend: %v", err)
		} else {
			log.Printf("app error: %v", err)
		}
		os.Exit(1)
	}
}
