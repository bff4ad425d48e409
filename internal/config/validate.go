package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// minAPIKeyLength is the shortest bearer token accepted in CHANGELOG_API_KEYS.
const minAPIKeyLength = 16

// validate runs every check and joins the failures so one start attempt
// reports all of them.
func (c *Config) validate() error {
	return errors.Join(
		c.validateDatabase(),
		c.validateListeners(),
		c.validateCORS(),
		c.validateLogLevel(),
		c.validateFilterFile(),
		c.validateAPIKeys(),
	)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (c *Config) validateDatabase() error {
	raw := c.DatabaseURL.Value()
	if raw == "" {
		return errors.New("DATABASE_URL is required")
	}

	u, err := url.Parse(raw)
	switch {
	case err != nil:
		// url errors echo the input, which holds the password.
		return errors.New("DATABASE_URL is not a valid URL")
	case u.Scheme != "postgres" && u.Scheme != "postgresql":
		return errors.New("DATABASE_URL scheme must be postgres:// or postgresql://")
	case u.Hostname() == "":
		return errors.New("DATABASE_URL must include a host")
	case !isLoopback(u.Hostname()) && u.Query().Get("sslmode") == "disable":
		return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", u.Hostname())
	}

	return nil
}

func parsePort(name, v string) (int, error) {
	port, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer, got %q", name, v)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("%s must be between 1 and 65535", name)
	}
	return port, nil
}

func (c *Config) validateListeners() error {
	var errs []error

	if ip := net.ParseIP(c.ListenHost); !isLoopback(c.ListenHost) && (ip == nil || !ip.IsUnspecified()) {
		errs = append(errs, fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers (got %q)", c.ListenHost))
	}

	api, apiErr := parsePort("PORT", c.Port)
	metrics, metricsErr := parsePort("METRICS_PORT", c.MetricsPort)
	errs = append(errs, apiErr, metricsErr)
	if apiErr == nil && metricsErr == nil && api == metrics {
		errs = append(errs, errors.New("METRICS_PORT must differ from PORT"))
	}

	return errors.Join(errs...)
}

func (c *Config) validateCORS() error {
	var errs []error

	for _, origin := range c.CORSOrigins {
		if strings.ContainsAny(origin, "*?[]") {
			errs = append(errs, fmt.Errorf("CORS_ORIGINS must not contain wildcard or glob characters, got %q", origin))
			continue
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) validateLogLevel() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL is not a valid level: %w", err)
	}
	return nil
}

func (c *Config) validateFilterFile() error {
	if c.FilterFile == "" {
		return nil
	}

	info, err := os.Stat(c.FilterFile)
	switch {
	case err != nil:
		return fmt.Errorf("CHANGELOG_FILTER_FILE: %w", err)
	case info.IsDir():
		return fmt.Errorf("CHANGELOG_FILTER_FILE must be a file, got directory %q", c.FilterFile)
	}

	return nil
}

func (c *Config) validateAPIKeys() error {
	var errs []error
	owner := make(map[string]string, len(c.APIKeys))

	for _, k := range c.APIKeys {
		key := k.Key.Value()
		if len(key) < minAPIKeyLength {
			errs = append(errs, fmt.Errorf("CHANGELOG_API_KEYS key for %q must be at least %d characters", k.Principal, minAPIKeyLength))
		}
		if first, dup := owner[key]; dup {
			errs = append(errs, fmt.Errorf("CHANGELOG_API_KEYS contains a duplicate key (principals %q and %q)", first, k.Principal))
			continue
		}
		owner[key] = k.Principal
	}

	return errors.Join(errs...)
}
