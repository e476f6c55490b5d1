package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

const defaultCacheTTL = 1 * time.Minute

type Config struct {
	port            string
	sentryDSN       string
	upstreamBaseURL string
	cacheTTL        time.Duration
	env             environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) UpstreamBaseURL() string {
	return c.upstreamBaseURL
}

func (c *Config) CacheTTL() time.Duration {
	return c.cacheTTL
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf("Config{env: %s, upstream: %s, cacheTTL: %s, ...}", string(c.env), c.upstreamBaseURL, c.cacheTTL)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("LANTERN_ENVIRONMENT")
	if !ok {
		return missingKey("LANTERN_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: LANTERN_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8123"
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	upstreamBaseURL := os.Getenv("UPSTREAM_BASE_URL")

	cacheTTL := defaultCacheTTL
	if rawTTL := os.Getenv("CACHE_TTL"); rawTTL != "" {
		parsed, err := time.ParseDuration(rawTTL)
		if err != nil {
			return Config{}, fmt.Errorf("%w: CACHE_TTL (%s): %w", ErrInvalidValue, rawTTL, err)
		}
		cacheTTL = parsed
	}

	if env == production || env == staging {
		if upstreamBaseURL == "" {
			return missingKey("UPSTREAM_BASE_URL")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	return Config{
		port:            port,
		sentryDSN:       sentryDSN,
		upstreamBaseURL: upstreamBaseURL,
		cacheTTL:        cacheTTL,
		env:             env,
	}, nil
}
