package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Port:                 "8081",
		ShutdownTimeout:      10 * time.Second,
		MaxUploadBytes:       32 << 20,
		UploadsPerMinute:     30,
		LogLevel:             "info",
		ChunkSize:            10000,
		SampleSize:           500,
		CacheSize:            32,
		CacheTTL:             30 * time.Minute,
		CacheCleanupInterval: 5 * time.Minute,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range high",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "unknown log level",
			mutate:      func(c *Config) { c.LogLevel = "trace" },
			wantErr:     true,
			errorString: "invalid log level 'trace'",
		},
		{
			name:        "chunk size zero",
			mutate:      func(c *Config) { c.ChunkSize = 0 },
			wantErr:     true,
			errorString: "invalid chunk size 0: must be at least 1",
		},
		{
			name:        "upload limit too small",
			mutate:      func(c *Config) { c.MaxUploadBytes = 10 },
			wantErr:     true,
			errorString: "invalid max upload size 10",
		},
		{
			name:        "cleanup slower than ttl",
			mutate:      func(c *Config) { c.CacheTTL = time.Minute },
			wantErr:     true,
			errorString: "must not exceed cache TTL 1m0s",
		},
		{
			name:        "negative upload rate",
			mutate:      func(c *Config) { c.UploadsPerMinute = -1 },
			wantErr:     true,
			errorString: "invalid uploads per minute -1",
		},
		{
			name:        "cache size zero",
			mutate:      func(c *Config) { c.CacheSize = 0 },
			wantErr:     true,
			errorString: "invalid cache size 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errorString) {
				t.Fatalf("Validate() error = %v, want substring %q", err, tt.errorString)
			}
		})
	}
}

func TestConfig_ValidateReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "0"
	cfg.SampleSize = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "configuration validation failed:") {
		t.Fatalf("unexpected prefix: %q", msg)
	}
	if strings.Count(msg, "\n- ") != 2 {
		t.Fatalf("expected two problems, got %q", msg)
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, k := range []string{"PORT", "LOG_LEVEL", "CHUNK_SIZE", "SAMPLE_SIZE", "CACHE_SIZE", "CACHE_TTL", "CACHE_CLEANUP_INTERVAL", "MAX_UPLOAD_BYTES", "SHUTDOWN_TIMEOUT", "UPLOADS_PER_MINUTE"} {
			t.Setenv(k, "")
		}
		cfg := Load()
		if err := cfg.Validate(); err != nil {
			t.Fatalf("defaults should validate: %v", err)
		}
		if cfg.Port != "8081" || cfg.ChunkSize != 10000 || cfg.SampleSize != 500 || cfg.CacheTTL != 30*time.Minute {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
		if cfg.Addr() != ":8081" {
			t.Fatalf("Addr() = %q", cfg.Addr())
		}
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("CHUNK_SIZE", "250")
		t.Setenv("CACHE_TTL", "10m")

		cfg := Load()
		if cfg.Port != "9090" || cfg.ChunkSize != 250 || cfg.CacheTTL != 10*time.Minute {
			t.Fatalf("overrides not applied: %+v", cfg)
		}
	})

	t.Run("unparseable values are reported", func(t *testing.T) {
		t.Setenv("CHUNK_SIZE", "lots")
		t.Setenv("CACHE_TTL", "forever")

		err := Load().Validate()
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "invalid CHUNK_SIZE 'lots'") || !strings.Contains(err.Error(), "invalid CACHE_TTL 'forever'") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
