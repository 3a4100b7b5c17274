// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full process configuration. Every field comes from an
// SSOKEEPER_* environment variable; main loads .env first so a local file
// can supply them.
type Config struct {
	Addr            string        `env:"SSOKEEPER_ADDR" envDefault:":8080"`
	SessionsDir     string        `env:"SSOKEEPER_SESSIONS_DIR"`
	LogLevel        string        `env:"SSOKEEPER_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"SSOKEEPER_LOG_FORMAT" envDefault:"text"`
	ShutdownTimeout time.Duration `env:"SSOKEEPER_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Login attempt budgets
	LoginTimeout        time.Duration `env:"SSOKEEPER_LOGIN_TIMEOUT" envDefault:"120s"`
	CheckTimeout        time.Duration `env:"SSOKEEPER_CHECK_TIMEOUT" envDefault:"30s"`
	MaxConcurrentLogins int64         `env:"SSOKEEPER_MAX_CONCURRENT_LOGINS" envDefault:"4"`
	AttemptsPerMinute   float64       `env:"SSOKEEPER_ATTEMPTS_PER_MINUTE" envDefault:"6"`
	AttemptBurst        int           `env:"SSOKEEPER_ATTEMPT_BURST" envDefault:"3"`

	// Browser backend: local launch by default, a remote CDP endpoint when
	// RemoteURL is set, docker containers when Image is set
	BrowserEngine  string `env:"SSOKEEPER_BROWSER_ENGINE" envDefault:"chromium"`
	BrowserChannel string `env:"SSOKEEPER_BROWSER_CHANNEL"`
	BrowserRemote  string `env:"SSOKEEPER_BROWSER_REMOTE_URL"`
	BrowserImage   string `env:"SSOKEEPER_BROWSER_IMAGE"`

	// ProfilesPath points at an optional provider-profiles YAML file
	ProfilesPath string `env:"SSOKEEPER_PROVIDER_PROFILES"`
	// AllowedDomains restricts logins to matching domains (glob patterns,
	// comma separated); empty allows every domain
	AllowedDomains []string `env:"SSOKEEPER_ALLOWED_DOMAINS" envSeparator:","`
}

// Load parses the environment into a Config and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	if cfg.SessionsDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: no SSOKEEPER_SESSIONS_DIR and no home directory: %w", err)
		}
		cfg.SessionsDir = filepath.Join(home, ".ssokeeper", "sessions")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that env parsing cannot express
func (c *Config) Validate() error {
	if c.LoginTimeout <= 0 || c.CheckTimeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	if c.MaxConcurrentLogins < 1 {
		return fmt.Errorf("config: SSOKEEPER_MAX_CONCURRENT_LOGINS must be at least 1")
	}
	if c.AttemptsPerMinute <= 0 || c.AttemptBurst < 1 {
		return fmt.Errorf("config: attempt rate and burst must be positive")
	}
	switch c.BrowserEngine {
	case "chromium", "firefox", "webkit":
	default:
		return fmt.Errorf("config: unknown browser engine %q", c.BrowserEngine)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: log format must be text or json, got %q", c.LogFormat)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps the configured level name to a slog level
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", c.LogLevel)
}

// Logger builds the process logger from the configured format and level
func (c *Config) Logger(w *os.File) *slog.Logger {
	level, _ := c.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.LogFormat) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
