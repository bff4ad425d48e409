// Package config provides environment-driven configuration for the change
// log service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL Secret
	Port        string
	MetricsPort string
	ListenHost  string
	CORSOrigins []string
	LogLevel    string
	DBMaxConns  int32

	// SlowQuery is the duration above which statements are logged at warn.
	SlowQuery time.Duration

	// ChangelogEnabled switches change logging for saves made by this
	// process. Reads are unaffected.
	ChangelogEnabled bool

	// FilterFile is an optional YAML file of logging filter rules.
	FilterFile string

	// APIKeys authenticate API clients. Empty disables authentication.
	APIKeys []APIKey
}

// APIKey binds a bearer token to the principal it authenticates.
type APIKey struct {
	Principal string
	Key       Secret
}

// Load reads configuration from the environment. Every malformed or invalid
// variable is reported in the returned error, not just the first.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: Secret(envOrDefault("DATABASE_URL", "")),
		Port:        envOrDefault("PORT", "3040"),
		MetricsPort: envOrDefault("METRICS_PORT", "9092"),
		ListenHost:  envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		FilterFile:  envOrDefault("CHANGELOG_FILTER_FILE", ""),
		CORSOrigins: splitList(envOrDefault("CORS_ORIGINS", "http://localhost:3002")),
	}

	var errs []error
	fail := func(err error) { errs = append(errs, err) }

	if v, err := strconv.ParseBool(envOrDefault("CHANGELOG_ENABLED", "true")); err != nil {
		fail(errors.New("CHANGELOG_ENABLED must be a boolean"))
	} else {
		cfg.ChangelogEnabled = v
	}

	if n, err := strconv.Atoi(envOrDefault("DB_MAX_CONNS", "10")); err != nil || n < 2 || n > 200 {
		fail(errors.New("DB_MAX_CONNS must be an integer between 2 and 200"))
	} else {
		cfg.DBMaxConns = int32(n) //nolint:gosec // bounded above.
	}

	if ms, err := strconv.Atoi(envOrDefault("DB_SLOW_QUERY_MS", "500")); err != nil || ms < 1 {
		fail(errors.New("DB_SLOW_QUERY_MS must be a positive integer"))
	} else {
		cfg.SlowQuery = time.Duration(ms) * time.Millisecond
	}

	keys, err := parseAPIKeys(envOrDefault("CHANGELOG_API_KEYS", ""))
	if err != nil {
		fail(err)
	}
	cfg.APIKeys = keys

	if err := errors.Join(append(errs, cfg.validate())...); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// MetricsAddr returns the metrics listen address in host:port format.
func (c *Config) MetricsAddr() string {
	return c.ListenHost + ":" + c.MetricsPort
}

// parseAPIKeys reads comma-separated principal:key pairs.
func parseAPIKeys(s string) ([]APIKey, error) {
	if s == "" {
		return nil, nil
	}

	var keys []APIKey

	for _, pair := range strings.Split(s, ",") {
		principal, key, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || principal == "" || key == "" {
			return nil, fmt.Errorf("CHANGELOG_API_KEYS entries must be principal:key")
		}

		keys = append(keys, APIKey{Principal: principal, Key: Secret(key)})
	}

	return keys, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
