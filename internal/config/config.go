// Package config loads and validates application configuration from flags,
// environment variables, and YAML files.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Runner   RunnerConfig   `mapstructure:"runner" yaml:"runner"`
	Monitor  MonitorConfig  `mapstructure:"monitor" yaml:"monitor"`
	Patterns PatternsConfig `mapstructure:"patterns" yaml:"patterns"`
	Outputs  OutputsConfig  `mapstructure:"outputs" yaml:"outputs"`
	Defaults DefaultsConfig `mapstructure:"defaults" yaml:"defaults"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// RunnerConfig configures external pattern execution.
type RunnerConfig struct {
	// Executable is the CLI binary resolved through PATH (or an absolute
	// path).
	Executable string `mapstructure:"executable" yaml:"executable"`
	// Timeout is the per-process wall clock limit as a duration string.
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
	// MaxInputChars caps input length in characters before launch.
	MaxInputChars int `mapstructure:"max_input_chars" yaml:"max_input_chars"`
	// MaxOutputBytes caps captured stdout; output beyond it is dropped and
	// the result flagged truncated.
	MaxOutputBytes int `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
}

// TimeoutOrDefault parses the configured timeout, falling back to 90s.
func (c RunnerConfig) TimeoutOrDefault() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return 90 * time.Second
}

// MonitorConfig configures the execution registry.
type MonitorConfig struct {
	// MaxHistory bounds retained records; eviction keeps the newest.
	MaxHistory int `mapstructure:"max_history" yaml:"max_history"`
	// CleanupInterval is the cadence of the scheduled janitor.
	CleanupInterval string `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// CleanupIntervalOrDefault parses the janitor cadence, falling back to 5m.
func (c MonitorConfig) CleanupIntervalOrDefault() time.Duration {
	if d, err := time.ParseDuration(c.CleanupInterval); err == nil && d > 0 {
		return d
	}
	return 5 * time.Minute
}

// PatternsConfig configures the pattern library on disk.
type PatternsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
	// CacheTTL bounds how stale the in-memory pattern index may get.
	CacheTTL string `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	// Watch enables fsnotify-based cache invalidation.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// CacheTTLOrDefault parses the cache TTL, falling back to 5m.
func (c PatternsConfig) CacheTTLOrDefault() time.Duration {
	if d, err := time.ParseDuration(c.CacheTTL); err == nil && d > 0 {
		return d
	}
	return 5 * time.Minute
}

// OutputsConfig configures output persistence.
type OutputsConfig struct {
	// Backend selects the store implementation: json or sqlite.
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Dir holds the JSON store files.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// DBPath is the SQLite database file.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
	// MaxEntries bounds retained output logs per store.
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

// DefaultsConfig preselects execution parameters for runs that do not
// specify them.
type DefaultsConfig struct {
	Vendor string `mapstructure:"vendor" yaml:"vendor,omitempty"`
	Model  string `mapstructure:"model" yaml:"model,omitempty"`
}

// ModelRef combines the default vendor and model into the single argv
// value passed to the CLI, or "" when no default model is set.
func (c DefaultsConfig) ModelRef() string {
	if c.Model == "" {
		return ""
	}
	if c.Vendor != "" {
		return c.Vendor + "/" + c.Model
	}
	return c.Model
}
