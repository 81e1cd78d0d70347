package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
// A .env file in the working directory is loaded first if present.
type Config struct {
	DataDir       string
	LocationsFile string

	// Default interval used when no explicit range is given.
	DefaultStartDate string
	DefaultEndDate   string

	FetchTimeout     time.Duration
	FetchConcurrency int

	// RunInterval > 0 enables the periodic scheduler.
	RunInterval time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// S3 archival; disabled when the bucket is empty.
	S3Bucket  string
	S3Prefix  string
	AWSRegion string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	// Absence of a .env file is the normal case outside local development.
	_ = godotenv.Load()

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	runInterval, err := parseDuration("RUN_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:          envOrDefault("DATA_DIR", "./data"),
		LocationsFile:    envOrDefault("LOCATIONS_FILE", "./config/locations.yaml"),
		DefaultStartDate: envOrDefault("DEFAULT_START_DATE", "2024-10-01"),
		DefaultEndDate:   envOrDefault("DEFAULT_END_DATE", "2024-10-07"),
		FetchTimeout:     fetchTimeout,
		FetchConcurrency: parsePositiveInt("FETCH_CONCURRENCY", 4),
		RunInterval:      runInterval,
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		S3Bucket:         os.Getenv("S3_BUCKET_NAME"),
		S3Prefix:         envOrDefault("S3_PREFIX", "cloud-weather-data/"),
		AWSRegion:        os.Getenv("AWS_DEFAULT_REGION"),
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.LocationsFile == "" {
		return nil, errors.New("LOCATIONS_FILE is required")
	}
	if runInterval < 0 {
		return nil, errors.New("RUN_INTERVAL must not be negative")
	}

	return cfg, nil
}

// UploadEnabled reports whether artifacts should be archived to S3.
func (c *Config) UploadEnabled() bool {
	return c.S3Bucket != ""
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
