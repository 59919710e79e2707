package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "PATTERNBENCH",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "PATTERNBENCH",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (PATTERNBENCH_*)
// 3. Project config (.patternbench.yaml in current directory)
// 4. User config (~/.config/patternbench/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".patternbench")
		l.v.SetConfigType("yaml")

		// Project config takes precedence over user config.
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "patternbench"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	// Log defaults
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	// Server defaults
	l.v.SetDefault("server.host", "127.0.0.1")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.allowed_origins", []string{
		"http://localhost:8080",
		"http://localhost:5173",
	})

	// Runner defaults
	l.v.SetDefault("runner.executable", "fabric")
	l.v.SetDefault("runner.timeout", "90s")
	l.v.SetDefault("runner.max_input_chars", 50000)
	l.v.SetDefault("runner.max_output_bytes", 1000000)

	// Monitor defaults
	l.v.SetDefault("monitor.max_history", 100)
	l.v.SetDefault("monitor.cleanup_interval", "5m")

	// Patterns defaults
	l.v.SetDefault("patterns.dir", defaultPatternsDir())
	l.v.SetDefault("patterns.cache_ttl", "5m")
	l.v.SetDefault("patterns.watch", true)

	// Outputs defaults
	l.v.SetDefault("outputs.backend", "json")
	l.v.SetDefault("outputs.dir", defaultDataDir())
	l.v.SetDefault("outputs.db_path", filepath.Join(defaultDataDir(), "outputs.db"))
	l.v.SetDefault("outputs.max_entries", 500)

	// Execution defaults
	l.v.SetDefault("defaults.vendor", "")
	l.v.SetDefault("defaults.model", "")
}

// defaultPatternsDir points at the fabric CLI's own pattern library so a
// stock install works without configuration. FABRIC_PATTERNS_DIR overrides
// the probe; some setups keep patterns directly under ~/.config/fabric.
func defaultPatternsDir() string {
	if env := os.Getenv("FABRIC_PATTERNS_DIR"); env != "" {
		if strings.HasPrefix(env, "~"+string(filepath.Separator)) {
			if home, err := os.UserHomeDir(); err == nil {
				return filepath.Join(home, env[2:])
			}
		}
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "patterns")
	}
	patternsDir := filepath.Join(home, ".config", "fabric", "patterns")
	if info, statErr := os.Stat(patternsDir); statErr == nil && info.IsDir() {
		return patternsDir
	}
	fabricDir := filepath.Join(home, ".config", "fabric")
	if info, statErr := os.Stat(fabricDir); statErr == nil && info.IsDir() {
		return fabricDir
	}
	return patternsDir
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "patternbench")
	}
	return filepath.Join(".", "data")
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings returns all settings as a map.
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}
