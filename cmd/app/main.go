package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"HelixPull/internal/di"
	"HelixPull/pkg/config"
)

func main() {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s backend=%s pair=%s/%s",
		cfg.Environment, cfg.Backend.Type,
		cfg.Binance.BaseSymbol, cfg.Binance.ComparisonSymbol,
	)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
