package main

import (
	"flag"
	"log"
	"os"

	"QuantBench/internal/di"
	"QuantBench/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s strategy=%s", cfg.Environment, cfg.Ensemble.DefaultStrategy)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if cfg.ClickHouse.Enabled {
		log.Printf("clickhouse: connected - db: %s", cfg.ClickHouse.Database)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		log.Printf("kafka: brokers=%v signals=%s results=%s", cfg.Kafka.Brokers, cfg.Kafka.SignalsTopic, cfg.Kafka.ResultsTopic)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
