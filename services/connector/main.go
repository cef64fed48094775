package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/02loveslollipop/nuclear-outages/services/connector/config"
	"github.com/02loveslollipop/nuclear-outages/services/connector/logging"
	"github.com/02loveslollipop/nuclear-outages/services/connector/runner"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("connector failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	closer, err := logging.Setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("--- starting EIA data connector pipeline ---")
	res, err := runner.Extract(ctx, cfg)
	if err != nil {
		return err
	}
	log.Printf("--- pipeline finished (stop=%s pages=%d written=%d) ---", res.Reason, res.Pages, res.Written)
	return nil
}
