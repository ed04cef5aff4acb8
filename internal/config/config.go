// Package config provides configuration loading and validation for the server and CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as "30s" in config files.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config represents the service configuration. Values come from defaults,
// then an optional JSON or YAML file, then environment variables. CLI flags
// are applied last by the caller.
type Config struct {
	// Server
	Port        int    `json:"port" yaml:"port" validate:"gte=1,lte=65535"`
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL connection URL

	// Renderers
	ChromePath         string `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`     // Empty uses chromedp's lookup
	PDFLaTeXPath       string `json:"pdflatex_path,omitempty" yaml:"pdflatex_path,omitempty"` // Empty uses pdflatex from PATH
	MaxBrowserSessions int64  `json:"max_browser_sessions" yaml:"max_browser_sessions" validate:"gte=1,lte=64"`

	// Budgets
	ProbeTimeout  Duration `json:"probe_timeout" yaml:"probe_timeout"`
	ExportTimeout Duration `json:"export_timeout" yaml:"export_timeout"`

	// Logging
	LogFormat string `json:"log_format" yaml:"log_format" validate:"oneof=json text"`
	LogLevel  string `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`

	// AuthDisabled turns off bearer token checks on export routes. Local use only.
	AuthDisabled bool `json:"auth_disabled,omitempty" yaml:"auth_disabled,omitempty"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Port:               8080,
		MaxBrowserSessions: 4,
		ProbeTimeout:       Duration(30 * time.Second),
		ExportTimeout:      Duration(60 * time.Second),
		LogFormat:          "json",
		LogLevel:           "info",
	}
}

// Load builds a Config from defaults, the optional file at path and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads configuration from a JSON or YAML file over the defaults.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := getenv("CHROME_PATH"); v != "" {
		c.ChromePath = v
	}
	if v := getenv("PDFLATEX_PATH"); v != "" {
		c.PDFLaTeXPath = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = strings.ToLower(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Port = port
	}
	if v := getenv("MAX_BROWSER_SESSIONS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_BROWSER_SESSIONS: %w", err)
		}
		c.MaxBrowserSessions = n
	}
	if v := getenv("PROBE_TIMEOUT"); v != "" {
		if err := c.ProbeTimeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid PROBE_TIMEOUT: %w", err)
		}
	}
	if v := getenv("EXPORT_TIMEOUT"); v != "" {
		if err := c.ExportTimeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid EXPORT_TIMEOUT: %w", err)
		}
	}
	if v := getenv("AUTH_DISABLED"); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid AUTH_DISABLED: %w", err)
		}
		c.AuthDisabled = disabled
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config error: '%s' must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("config error: 'probe_timeout' must be positive")
	}
	if c.ExportTimeout < c.ProbeTimeout {
		return fmt.Errorf("config error: 'export_timeout' %s is shorter than 'probe_timeout' %s",
			time.Duration(c.ExportTimeout), time.Duration(c.ProbeTimeout))
	}

	if c.PDFLaTeXPath != "" && filepath.IsAbs(c.PDFLaTeXPath) {
		if _, err := os.Stat(c.PDFLaTeXPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: pdflatex not found: %s", c.PDFLaTeXPath)
		}
	}
	return nil
}

// Address returns the listen address for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}
