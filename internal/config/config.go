package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Processing ProcessingConfig
	CORS       CORSConfig
	RulesPath  string // optional YAML override for tax rules
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// ProcessingConfig holds settings for the batch processor.
type ProcessingConfig struct {
	// Workers bounds how many taxpayers are processed concurrently.
	Workers int
	// SweepSchedule is a cron expression for the pending-taxpayer sweep in
	// serve mode. Empty disables the sweep.
	SweepSchedule string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	workers, err := strconv.Atoi(getEnv("PROCESSING_WORKERS", "8"))
	if err != nil || workers < 1 {
		return nil, fmt.Errorf("invalid PROCESSING_WORKERS value: %q", os.Getenv("PROCESSING_WORKERS"))
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/tax_engine.db"),
		},
		Processing: ProcessingConfig{
			Workers:       workers,
			SweepSchedule: getEnv("SWEEP_SCHEDULE", "@every 1m"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		RulesPath: getEnv("TAX_RULES_PATH", ""),
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
