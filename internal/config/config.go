package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"yearend/internal/log"
)

type Config struct {
	// HTTP server
	Port            string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64

	// UploadsPerMinute limits POST requests per client IP; 0 disables it.
	UploadsPerMinute int

	LogLevel string

	// Pipeline
	ChunkSize  int
	SampleSize int

	// Memo caches
	CacheSize            int
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration

	// problems found while reading the environment, reported by Validate
	parseErrors []string
}

func Load() *Config {
	cfg := &Config{}
	cfg.Port = getEnv("PORT", "8081")
	cfg.ShutdownTimeout = cfg.getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.MaxUploadBytes = int64(cfg.getEnvInt("MAX_UPLOAD_BYTES", 32<<20))
	cfg.UploadsPerMinute = cfg.getEnvInt("UPLOADS_PER_MINUTE", 30)
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	cfg.ChunkSize = cfg.getEnvInt("CHUNK_SIZE", 10000)
	cfg.SampleSize = cfg.getEnvInt("SAMPLE_SIZE", 500)

	cfg.CacheSize = cfg.getEnvInt("CACHE_SIZE", 32)
	cfg.CacheTTL = cfg.getEnvDuration("CACHE_TTL", 30*time.Minute)
	cfg.CacheCleanupInterval = cfg.getEnvDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute)

	return cfg
}

// Validate validates the configuration and returns every problem at once.
func (c *Config) Validate() error {
	errors := append([]string(nil), c.parseErrors...)

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.MaxUploadBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be at least 1024 bytes", c.MaxUploadBytes))
	}

	if c.UploadsPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid uploads per minute %d: must be 0 (unlimited) or more", c.UploadsPerMinute))
	}

	if c.ChunkSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid chunk size %d: must be at least 1", c.ChunkSize))
	} else if c.ChunkSize > 1_000_000 {
		errors = append(errors, fmt.Sprintf("invalid chunk size %d: must be at most 1000000", c.ChunkSize))
	}

	if c.SampleSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sample size %d: must be at least 1", c.SampleSize))
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}

	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if c.CacheCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupInterval))
	} else if c.CacheTTL >= time.Second && c.CacheCleanupInterval > c.CacheTTL {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must not exceed cache TTL %v", c.CacheCleanupInterval, c.CacheTTL))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("invalid %s '%s': must be an integer", key, value))
		return defaultValue
	}
	return i
}

func (c *Config) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("invalid %s '%s': must be a duration like 30s or 5m", key, value))
		return defaultValue
	}
	return d
}
