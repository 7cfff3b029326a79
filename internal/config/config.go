// Package config handles TOML configuration for Nimbus.
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Source  SourceConfig  `toml:"source"`
	Sync    SyncConfig    `toml:"sync"`
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Policy  PolicyConfig  `toml:"policy"`
	Advisor AdvisorConfig `toml:"advisor"`
	OTEL    OTELConfig    `toml:"otel"`
	Log     LogConfig     `toml:"log"`
}

// SourceConfig selects and configures the inventory source plugin.
type SourceConfig struct {
	Plugin     string        `toml:"plugin"`   // "fixture" or "aws"
	Account    string        `toml:"account"`  // label attached to fetched snapshots
	Provider   string        `toml:"provider"` // "All", "AWS", "Azure" or "GCP"
	LatencyStr string        `toml:"latency"`
	Latency    time.Duration `toml:"-"`
	AWS        AWSConfig     `toml:"aws"`
}

// AWSConfig holds AWS provider settings.
type AWSConfig struct {
	Regions []string `toml:"regions"`
	Profile string   `toml:"profile"`
}

// SyncConfig holds auto-sync settings.
type SyncConfig struct {
	Enabled     bool          `toml:"enabled"`
	IntervalStr string        `toml:"interval"`
	Interval    time.Duration `toml:"-"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	DefaultUser string `toml:"default_user"`
}

// StorageConfig holds snapshot journal settings. An empty path disables the journal.
type StorageConfig struct {
	Path string `toml:"path"`
	Keep int    `toml:"keep"`
}

// PolicyConfig points at a directory of custom Rego rules.
type PolicyConfig struct {
	Dir string `toml:"dir"`
}

// AdvisorConfig holds the generative text endpoint settings.
type AdvisorConfig struct {
	Endpoint   string        `toml:"endpoint"` // Base URL override; empty uses the SDK default
	Model      string        `toml:"model"`
	APIKeyEnv  string        `toml:"api_key_env"`
	TimeoutStr string        `toml:"timeout"`
	Timeout    time.Duration `toml:"-"`
}

// APIKey reads the advisor key from the configured environment variable.
func (a AdvisorConfig) APIKey() string {
	return os.Getenv(a.APIKeyEnv)
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint"`
	Insecure    bool          `toml:"insecure"`
	ServiceName string        `toml:"service_name"`
	Traces      TracesConfig  `toml:"traces"`
	Metrics     MetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

var (
	plugins    = []string{"fixture", "aws"}
	providers  = []string{"All", "AWS", "Azure", "GCP"}
	logFormats = []string{"console", "json"}
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Sync: SyncConfig{Enabled: true}}
	applyDefaults(cfg)
	// Defaults always parse.
	_ = parseDurations(cfg)
	return cfg
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{Sync: SyncConfig{Enabled: true}}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Source.Plugin == "" {
		cfg.Source.Plugin = "fixture"
	}
	if cfg.Source.Provider == "" {
		cfg.Source.Provider = "All"
	}
	if cfg.Source.LatencyStr == "" {
		cfg.Source.LatencyStr = "1.5s"
	}
	if len(cfg.Source.AWS.Regions) == 0 {
		cfg.Source.AWS.Regions = []string{"us-east-1"}
	}
	if cfg.Sync.IntervalStr == "" {
		cfg.Sync.IntervalStr = "15m"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.DefaultUser == "" {
		cfg.Server.DefaultUser = "u1"
	}
	if cfg.Storage.Keep == 0 {
		cfg.Storage.Keep = 50
	}
	if cfg.Advisor.Model == "" {
		cfg.Advisor.Model = "gemini-3-flash-preview"
	}
	if cfg.Advisor.APIKeyEnv == "" {
		cfg.Advisor.APIKeyEnv = "API_KEY"
	}
	if cfg.Advisor.TimeoutStr == "" {
		cfg.Advisor.TimeoutStr = "60s"
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "nimbus"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

func parseDurations(cfg *Config) error {
	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"source.latency", cfg.Source.LatencyStr, &cfg.Source.Latency},
		{"sync.interval", cfg.Sync.IntervalStr, &cfg.Sync.Interval},
		{"advisor.timeout", cfg.Advisor.TimeoutStr, &cfg.Advisor.Timeout},
	} {
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = v
	}
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if !slices.Contains(plugins, c.Source.Plugin) {
		return fmt.Errorf("source: unknown plugin %q (want one of %v)", c.Source.Plugin, plugins)
	}
	if !slices.Contains(providers, c.Source.Provider) {
		return fmt.Errorf("source: unknown provider %q (want one of %v)", c.Source.Provider, providers)
	}
	if c.Source.Latency < 0 {
		return fmt.Errorf("source: latency must not be negative (got %v)", c.Source.Latency)
	}
	if c.Source.Plugin == "aws" && len(c.Source.AWS.Regions) == 0 {
		return fmt.Errorf("source.aws: at least one region required")
	}
	if c.Sync.Enabled && c.Sync.Interval < time.Second {
		return fmt.Errorf("sync: interval must be at least 1s (got %v)", c.Sync.Interval)
	}
	if c.Storage.Keep < 0 {
		return fmt.Errorf("storage: keep must not be negative (got %d)", c.Storage.Keep)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		return fmt.Errorf("log: unknown format %q (want one of %v)", c.Log.Format, logFormats)
	}
	return nil
}
