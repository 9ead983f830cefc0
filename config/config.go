// Package config loads the settings of a reflinks session from YAML, with
// environment overrides and defaults applied in that order.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/reflinks/dom"
)

// Config holds all session settings.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	StartPath      string        `yaml:"start_path"`
	RootSelector   string        `yaml:"root_selector"`
	PermanentAttr  string        `yaml:"permanent_attr"`
	PermanentValue string        `yaml:"permanent_value"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxBytes       int64         `yaml:"max_bytes"`
	UserAgent      string        `yaml:"user_agent"`
	JournalPath    string        `yaml:"journal_path"` // empty disables the journal
	MetricsAddr    string        `yaml:"metrics_addr"` // empty disables /metrics
	LogLevel       string        `yaml:"log_level"`
}

func (c *Config) defaults() {
	if c.StartPath == "" {
		c.StartPath = "/"
	}
	if c.RootSelector == "" {
		c.RootSelector = "body"
	}
	if c.PermanentAttr == "" {
		c.PermanentAttr = "data-reflinks"
	}
	if c.PermanentValue == "" {
		c.PermanentValue = "permanent"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "reflinks/1.0"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// env maps environment variables onto fields. Set variables win over the file.
func (c *Config) env(getenv func(string) string) error {
	str := map[string]*string{
		"REFLINKS_BASE_URL":      &c.BaseURL,
		"REFLINKS_START_PATH":    &c.StartPath,
		"REFLINKS_ROOT_SELECTOR": &c.RootSelector,
		"REFLINKS_USER_AGENT":    &c.UserAgent,
		"REFLINKS_JOURNAL":       &c.JournalPath,
		"REFLINKS_METRICS_ADDR":  &c.MetricsAddr,
		"LOG_LEVEL":              &c.LogLevel,
	}
	for key, field := range str {
		if v := getenv(key); v != "" {
			*field = v
		}
	}
	if v := getenv("REFLINKS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: REFLINKS_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := getenv("REFLINKS_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: REFLINKS_MAX_BYTES: %w", err)
		}
		c.MaxBytes = n
	}
	return nil
}

// Validate checks the fields defaults cannot fix.
func (c *Config) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("config: base_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("config: base_url %q: scheme must be http or https", c.BaseURL)
		}
	}
	if !strings.HasPrefix(c.StartPath, "/") {
		return fmt.Errorf("config: start_path %q must start with /", c.StartPath)
	}
	if err := dom.ValidateSelector(c.RootSelector); err != nil {
		return fmt.Errorf("config: root_selector: %w", err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Default returns the defaults with environment overrides.
func Default() (*Config, error) {
	return build(nil, os.Getenv)
}

// Load reads a YAML file, then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return build(data, os.Getenv)
}

// Parse is Load over bytes, with getenv as the environment.
func Parse(data []byte, getenv func(string) string) (*Config, error) {
	return build(data, getenv)
}

func build(data []byte, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}
	if getenv != nil {
		if err := cfg.env(getenv); err != nil {
			return nil, err
		}
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
}
