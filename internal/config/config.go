// Package config loads the paydesk server configuration from defaults,
// an optional YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/paydesk/paydesk/internal/auth"
	"github.com/paydesk/paydesk/internal/session"
	"github.com/paydesk/paydesk/internal/store"
)

// EnvConfigFile names the variable holding the YAML config path.
const EnvConfigFile = "PAYDESK_CONFIG"

// DefaultDatabaseURL is the embedded database used when none is set.
const DefaultDatabaseURL = "file:paydesk.db"

// Config is the server configuration.
type Config struct {
	Port           int      `yaml:"port"`
	DatabaseURL    string   `yaml:"database_url"`
	DatabaseDriver string   `yaml:"database_driver"`
	SessionSecret  string   `yaml:"session_secret"`
	AuthMode       string   `yaml:"auth_mode"`
	TokenFormat    string   `yaml:"token_format"`
	CookieSecure   bool     `yaml:"cookie_secure"`
	WebhookURL     string   `yaml:"webhook_url"`
	WebhookSecret  string   `yaml:"webhook_secret"`
	AllowOrigins   []string `yaml:"allow_origins"`
	Verbose        bool     `yaml:"verbose"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:        3001,
		DatabaseURL: DefaultDatabaseURL,
		AuthMode:    string(auth.ModeEnforced),
		TokenFormat: session.FormatSigned,
	}
}

// Load builds the configuration. path names a YAML file; when empty,
// PAYDESK_CONFIG is consulted. A .env file in the working directory is
// loaded into the environment first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	return LoadFrom(path, os.LookupEnv)
}

// LoadFrom applies the YAML file at path (if non-empty) and then the
// variables returned by lookup over the defaults.
func LoadFrom(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = InferDriver(cfg.DatabaseURL)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Port = port
	}
	str("DATABASE_URL", &c.DatabaseURL)
	str("DATABASE_DRIVER", &c.DatabaseDriver)
	str("SESSION_SECRET", &c.SessionSecret)
	str("AUTH_MODE", &c.AuthMode)
	str("AUTH_TOKEN_FORMAT", &c.TokenFormat)
	str("WEBHOOK_URL", &c.WebhookURL)
	str("WEBHOOK_SECRET", &c.WebhookSecret)
	if v, ok := lookup("ALLOW_ORIGINS"); ok && v != "" {
		c.AllowOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowOrigins = append(c.AllowOrigins, o)
			}
		}
	}
	if err := boolean("COOKIE_SECURE", &c.CookieSecure); err != nil {
		return err
	}
	return boolean("VERBOSE", &c.Verbose)
}

// InferDriver picks the database driver from a connection URL.
func InferDriver(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return store.DriverPostgres
	}
	return store.DriverSQLite
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DatabaseURL == "" {
		return errors.New("database url is required")
	}
	switch c.DatabaseDriver {
	case store.DriverPostgres, store.DriverSQLite:
	default:
		return fmt.Errorf("unknown database driver %q", c.DatabaseDriver)
	}
	if _, err := auth.ParseMode(c.AuthMode); err != nil {
		return err
	}
	switch c.TokenFormat {
	case session.FormatSigned:
		if len(c.SessionSecret) < session.MinSecretLen {
			return fmt.Errorf("session secret must be at least %d bytes for signed tokens", session.MinSecretLen)
		}
	case session.FormatUnsigned:
	default:
		return fmt.Errorf("unknown token format %q", c.TokenFormat)
	}
	return nil
}
