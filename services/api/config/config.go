package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	connconfig "github.com/02loveslollipop/nuclear-outages/services/connector/config"
)

// Config holds environment-driven settings for the REST API.
type Config struct {
	RawPath     string
	ModeledDir  string
	BearerToken string
	Port        int
	DatabaseURL string

	// Connector drives the extraction step of POST /refresh.
	Connector connconfig.Config
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file
	return FromEnv()
}

// FromEnv reads configuration from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		RawPath:    "raw_data.parquet",
		ModeledDir: "modeled",
		Port:       8080,
	}

	if path := os.Getenv("RAW_PATH"); path != "" {
		cfg.RawPath = path
	}
	if dir := os.Getenv("MODELED_DIR"); dir != "" {
		cfg.ModeledDir = dir
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	cfg.BearerToken = os.Getenv("API_TOKEN")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	conn, err := connconfig.FromEnv()
	if err != nil {
		return cfg, err
	}
	conn.OutputFile = cfg.RawPath
	cfg.Connector = conn

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
