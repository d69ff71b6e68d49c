package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all daemon configuration.
type Config struct {
	Env      string
	HTTPAddr string

	DSN     string
	Release string

	LogLevel string

	CORSOrigin   string
	RateLimitRPM int

	EmitHeader bool
	SendPII    bool

	FlushSeconds int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("ET_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("ET_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("ET_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("ET_HTTP_ADDR", ":8080")

	// Optional: an empty DSN runs the reporting client in discard mode.
	cfg.DSN = strings.TrimSpace(os.Getenv("ET_DSN"))

	cfg.Release = getEnvOrDefault("ET_RELEASE", "dev")

	cfg.LogLevel = getEnvOrDefault("ET_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("ET_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	cfg.CORSOrigin = getEnvOrDefault("ET_CORS_ORIGIN", "*")

	var err error
	cfg.RateLimitRPM, err = getEnvIntOrDefault("ET_RATE_LIMIT_RPM", 120)
	if err != nil {
		return nil, err
	}
	if cfg.RateLimitRPM <= 0 {
		return nil, fmt.Errorf("ET_RATE_LIMIT_RPM must be positive (got: %d)", cfg.RateLimitRPM)
	}

	cfg.EmitHeader, err = getEnvBoolOrDefault("ET_EMIT_HEADER", false)
	if err != nil {
		return nil, err
	}

	cfg.SendPII, err = getEnvBoolOrDefault("ET_SEND_PII", false)
	if err != nil {
		return nil, err
	}

	cfg.FlushSeconds, err = getEnvIntOrDefault("ET_FLUSH_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	if cfg.FlushSeconds <= 0 || cfg.FlushSeconds > 3600 {
		return nil, fmt.Errorf("ET_FLUSH_SECONDS must be between 1 and 3600 (got: %d)", cfg.FlushSeconds)
	}

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	return map[string]string{
		"ET_ENV":            c.Env,
		"ET_HTTP_ADDR":      c.HTTPAddr,
		"ET_DSN":            redactDSN(c.DSN),
		"ET_RELEASE":        c.Release,
		"ET_LOG_LEVEL":      c.LogLevel,
		"ET_CORS_ORIGIN":    c.CORSOrigin,
		"ET_RATE_LIMIT_RPM": fmt.Sprintf("%d", c.RateLimitRPM),
		"ET_EMIT_HEADER":    fmt.Sprintf("%t", c.EmitHeader),
		"ET_SEND_PII":       fmt.Sprintf("%t", c.SendPII),
		"ET_FLUSH_SECONDS":  fmt.Sprintf("%d", c.FlushSeconds),
	}
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return "[unset]"
	}
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %s)", key, value)
	}
	return parsed, nil
}

func getEnvBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean (got: %s)", key, value)
	}
	return parsed, nil
}
