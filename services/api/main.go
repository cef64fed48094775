package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os/signal"
	"syscall"

	"github.com/02loveslollipop/nuclear-outages/services/api/cache"
	"github.com/02loveslollipop/nuclear-outages/services/api/config"
	"github.com/02loveslollipop/nuclear-outages/services/api/db"
	httpserver "github.com/02loveslollipop/nuclear-outages/services/api/http"
	"github.com/02loveslollipop/nuclear-outages/services/api/refresh"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.BearerToken != "" {
		sum := sha256.Sum256([]byte(cfg.BearerToken))
		log.Printf("auth enabled (API_TOKEN sha256[:10]=%s, len=%d)", hex.EncodeToString(sum[:])[:10], len(cfg.BearerToken))
	} else {
		log.Printf("auth disabled (API_TOKEN not set)")
	}
	log.Printf("RAW_PATH=%s MODELED_DIR=%s", cfg.RawPath, cfg.ModeledDir)

	var opts []refresh.Option
	if cfg.DatabaseURL != "" {
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connection error: %v", err)
		}
		defer store.Close()
		opts = append(opts, refresh.WithPublisher(store))
		log.Printf("warehouse mirror enabled (schema %s)", db.Schema)
	}

	orchestrator := refresh.New(cfg.RawPath, cfg.ModeledDir, refresh.ConnectorExtract(cfg.Connector), opts...)
	srv := httpserver.New(cfg, cache.New(cfg.ModeledDir), orchestrator)
	log.Printf("REST API listening on %s", cfg.ListenAddr())

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
