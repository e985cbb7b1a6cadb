package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the CLI
type Config struct {
	// API Configuration
	API APIConfig

	// Storage Configuration
	Storage StorageConfig

	// Logging Configuration
	Logging LoggingConfig
}

// APIConfig holds backend connection settings
type APIConfig struct {
	BaseURL        string        // e.g. http://localhost:8080/api
	Timeout        time.Duration // HTTP client timeout per attempt
	RateLimitDelay time.Duration // wait before the single retry after a 429
}

// StorageConfig selects where the session is persisted
type StorageConfig struct {
	Kind    string // file, sqlite, keyring, memory
	Dir     string
	Profile string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Defaults
const (
	DefaultBaseURL        = "http://localhost:8080/api"
	DefaultTimeout        = 30 * time.Second
	DefaultRateLimitDelay = time.Second
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	timeout, err := durationEnv("PETSHOP_TIMEOUT", DefaultTimeout)
	if err != nil {
		return nil, err
	}

	rateLimitDelay, err := durationEnv("PETSHOP_RATE_LIMIT_DELAY", DefaultRateLimitDelay)
	if err != nil {
		return nil, err
	}

	stateDir := os.Getenv("PETSHOP_STATE_DIR")
	if stateDir == "" {
		stateDir, err = DefaultStateDir()
		if err != nil {
			return nil, err
		}
	}

	return &Config{
		API: APIConfig{
			BaseURL:        stringEnv("PETSHOP_API_URL", ""),
			Timeout:        timeout,
			RateLimitDelay: rateLimitDelay,
		},
		Storage: StorageConfig{
			Kind:    stringEnv("PETSHOP_STORAGE", "file"),
			Dir:     stateDir,
			Profile: stringEnv("PETSHOP_PROFILE", ""),
		},
		Logging: LoggingConfig{
			// CLI defaults: quiet, human readable
			Level:  stringEnv("LOG_LEVEL", "warn"),
			Format: stringEnv("LOG_FORMAT", "console"),
		},
	}, nil
}

// DefaultStateDir returns ~/.config/petshop
func DefaultStateDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "petshop"), nil
}

func stringEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, value)
	}
	return d, nil
}
