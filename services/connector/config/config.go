package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBaseURL        = "https://api.eia.gov/v2/"
	defaultOutagesRoute   = "nuclear-outages/generator-nuclear-outages/data"
	defaultMaxLimit       = 5000
	defaultMaxRecords     = 10000
	defaultMaxRetries     = 3
	defaultRetryDelay     = 5 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultOutputFile     = "raw_data.parquet"
)

// Config holds runtime configuration for the outage connector.
type Config struct {
	APIKey         string
	BaseURL        string
	OutagesRoute   string
	MaxLimit       int
	MaxRecords     int
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	OutputFile     string
	Incremental    bool
	EarlyStop      bool
}

// Default returns the configuration used when no environment is set.
func Default() Config {
	return Config{
		BaseURL:        defaultBaseURL,
		OutagesRoute:   defaultOutagesRoute,
		MaxLimit:       defaultMaxLimit,
		MaxRecords:     defaultMaxRecords,
		MaxRetries:     defaultMaxRetries,
		RetryDelay:     defaultRetryDelay,
		RequestTimeout: defaultRequestTimeout,
		OutputFile:     defaultOutputFile,
		EarlyStop:      true,
	}
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (Config, error) {
	cfg := Default()

	cfg.APIKey = strings.TrimSpace(os.Getenv("EIA_API_KEY"))

	if v := strings.TrimSpace(os.Getenv("EIA_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("EIA_OUTAGES_ROUTE")); v != "" {
		cfg.OutagesRoute = v
	}
	if v := strings.TrimSpace(os.Getenv("OUTPUT_FILE")); v != "" {
		cfg.OutputFile = v
	}

	var err error
	if cfg.MaxLimit, err = envInt("MAX_LIMIT", cfg.MaxLimit, 1); err != nil {
		return cfg, err
	}
	if cfg.MaxRecords, err = envInt("MAX_RECORDS", cfg.MaxRecords, 0); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = envInt("MAX_RETRIES", cfg.MaxRetries, 1); err != nil {
		return cfg, err
	}
	if cfg.RetryDelay, err = envDuration("RETRY_DELAY", cfg.RetryDelay); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.Incremental, err = envBool("INCREMENTAL", cfg.Incremental); err != nil {
		return cfg, err
	}
	if cfg.EarlyStop, err = envBool("EARLY_STOP_ON_OLD_PERIOD", cfg.EarlyStop); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Endpoint returns the full URL of the outages route.
func (c Config) Endpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.OutagesRoute, "/")
}

func envInt(name string, def, floor int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		return def, fmt.Errorf("invalid %s: %s", name, v)
	}
	return n, nil
}

// envDuration accepts a Go duration ("1500ms") or a bare number of seconds.
func envDuration(name string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def, fmt.Errorf("invalid %s: %s", name, v)
	}
	return d, nil
}

func envBool(name string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %s", name, v)
	}
	return b, nil
}
