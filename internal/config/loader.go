package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix      = "RFPROXY_"
	envConfigFile  = envPrefix + "CONFIG"
	envDotEnvFile  = envPrefix + "DOTENV"
	defaultDotEnv  = ".env"
	logFormatText  = "text"
	logFormatJSON  = "json"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if RFPROXY_CONFIG is set
//  3. env (prefix RFPROXY_), after a .env file has been merged into the
//     process environment (RFPROXY_DOTENV, or ./.env when present)
func Load(_ context.Context) (*Config, error) {
	base := New()

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Map env keys like RFPROXY_VERTEX_REGION -> vertex_region (flat keys).
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv merges a .env file into the process environment. Variables
// that are already set win over the file.
func loadDotEnv() error {
	path, explicit := os.LookupEnv(envDotEnvFile)
	if !explicit || path == "" {
		path = defaultDotEnv
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: dotenv %s: %w", ErrLoadConfig, path, err)
	}
	return nil
}

// Validate checks invariants the rest of the process relies on.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: max_body_bytes must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", logFormatText, logFormatJSON:
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: backend_url must be an absolute URL", ErrInvalidConfig)
	}
	if c.CloudRunURL != "" {
		u, err := url.Parse(c.CloudRunURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: cloud_run_url must be an absolute URL", ErrInvalidConfig)
		}
	}
	return nil
}

// VertexConfigured reports whether all managed-endpoint identifiers are set.
func (c *Config) VertexConfigured() bool {
	return c.VertexProjectID != "" && c.VertexRegion != "" && c.VertexEndpointID != ""
}
