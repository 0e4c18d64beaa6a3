package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/junctionhq/junction/gateway/internal/infrastructure/config"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/server"
)

func main() {
	// Optional .env for local development; deployments set the
	// environment directly.
	_ = godotenv.Load()

	port := flag.String("port", "", "Listen port (overrides PORT)")
	catalogPath := flag.String("catalog", "", "Workflow catalog file (overrides CATALOG_PATH)")
	dev := flag.Bool("dev", false, "Development mode: colored logs, debug level")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *catalogPath != "" {
		cfg.Catalog.Path = *catalogPath
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	if err := srv.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
