// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Platform settings. Mode is "local" or "remote"; remote requires every
	// resolve request to carry a platform descriptor.
	Mode string

	// Solver settings.
	SolverURL     string
	SolverTimeout time.Duration

	// Context store settings.
	ContextTTL       time.Duration
	ContextSweep     time.Duration
	ContextCacheSize int

	// Execution settings.
	ExecDefaultTimeout time.Duration
	ExecMaxTimeout     time.Duration
	ExecMaxOutputBytes int
	// ExecBasePath is appended to each context PATH so shells stay reachable.
	ExecBasePath string

	// Suite settings.
	SuitesDir string

	// Rate limiting for resolve and execute routes. Rate <= 0 disables it.
	RateLimitPerSecond float64
	RateLimitBurst     int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("RESOLVD_PORT", 8080),
		ReadTimeout:         envDuration("RESOLVD_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("RESOLVD_WRITE_TIMEOUT", 2*time.Minute),
		Mode:                envStr("RESOLVD_MODE", "local"),
		SolverURL:           envStr("RESOLVD_SOLVER_URL", "http://localhost:8191"),
		SolverTimeout:       envDuration("RESOLVD_SOLVER_TIMEOUT", 60*time.Second),
		ContextTTL:          envDuration("RESOLVD_CONTEXT_TTL", time.Hour),
		ContextSweep:        envDuration("RESOLVD_CONTEXT_SWEEP_INTERVAL", time.Minute),
		ContextCacheSize:    envInt("RESOLVD_CONTEXT_CACHE_SIZE", 1024),
		ExecDefaultTimeout:  envDuration("RESOLVD_EXEC_DEFAULT_TIMEOUT", 30*time.Second),
		ExecMaxTimeout:      envDuration("RESOLVD_EXEC_MAX_TIMEOUT", 5*time.Minute),
		ExecMaxOutputBytes:  envInt("RESOLVD_EXEC_MAX_OUTPUT_BYTES", 1*1024*1024),
		ExecBasePath:        envStr("RESOLVD_EXEC_BASE_PATH", "/usr/bin:/bin"),
		SuitesDir:           envStr("RESOLVD_SUITES_DIR", "suites"),
		RateLimitPerSecond:  envFloat("RESOLVD_RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:      envInt("RESOLVD_RATE_LIMIT_BURST", 20),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envStr("OTEL_EXPORTER_OTLP_INSECURE", "false") == "true",
		ServiceName:         envStr("OTEL_SERVICE_NAME", "resolvd"),
		LogLevel:            envStr("RESOLVD_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("RESOLVD_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and coherent.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: RESOLVD_PORT must be a valid port, got %d", c.Port)
	}
	if c.Mode != "local" && c.Mode != "remote" {
		return fmt.Errorf("config: RESOLVD_MODE must be local or remote, got %q", c.Mode)
	}
	if c.SolverURL == "" {
		return fmt.Errorf("config: RESOLVD_SOLVER_URL is required")
	}
	if c.ContextCacheSize <= 0 {
		return fmt.Errorf("config: RESOLVD_CONTEXT_CACHE_SIZE must be positive")
	}
	if c.ExecMaxOutputBytes <= 0 {
		return fmt.Errorf("config: RESOLVD_EXEC_MAX_OUTPUT_BYTES must be positive")
	}
	if c.ExecDefaultTimeout > c.ExecMaxTimeout {
		return fmt.Errorf("config: RESOLVD_EXEC_DEFAULT_TIMEOUT exceeds RESOLVD_EXEC_MAX_TIMEOUT")
	}
	if c.SuitesDir == "" {
		return fmt.Errorf("config: RESOLVD_SUITES_DIR is required")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: RESOLVD_MAX_REQUEST_BODY_BYTES must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
