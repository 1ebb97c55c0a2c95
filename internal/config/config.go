// Package config loads settings from the environment and an optional .env
// file. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable, e.g. ORODJARNA_DB.
const EnvPrefix = "ORODJARNA"

// Config holds the runtime settings shared by all commands.
type Config struct {
	DBPath         string        `envconfig:"DB" default:"orodjarna.sqlite3"`
	Addr           string        `envconfig:"ADDR" default:":8080"`
	AdminUser      string        `envconfig:"ADMIN_USER" default:"Admin"`
	LogPath        string        `envconfig:"LOG"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
	Metrics        bool          `envconfig:"METRICS" default:"true"`
	DefaultPurpose string        `envconfig:"DEFAULT_PURPOSE" default:"fieldwork"`
}

// Load reads the given .env files (missing ones are skipped) and then the
// environment. Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("database path must not be empty")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token lifetime must be positive, got %s", c.TokenTTL)
	}
	if strings.TrimSpace(c.DefaultPurpose) == "" {
		return errors.New("default export purpose must not be empty")
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return l, nil
}
