package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patternbench/patternbench/internal/core"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateServer(&cfg.Server)
	v.validateRunner(&cfg.Runner)
	v.validateMonitor(&cfg.Monitor)
	v.validatePatterns(&cfg.Patterns)
	v.validateOutputs(&cfg.Outputs)
	v.validateDefaults(&cfg.Defaults)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}

	if cfg.File != "" && !isValidPath(cfg.File) {
		v.addError("log.file", cfg.File, "invalid file path")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Host == "" {
		v.addError("server.host", cfg.Host, "host required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 1 and 65535")
	}
}

func (v *Validator) validateRunner(cfg *RunnerConfig) {
	if cfg.Executable == "" {
		v.addError("runner.executable", cfg.Executable, "executable required")
	}

	if _, err := time.ParseDuration(cfg.Timeout); err != nil {
		v.addError("runner.timeout", cfg.Timeout, "invalid duration format")
	}

	if cfg.MaxInputChars <= 0 {
		v.addError("runner.max_input_chars", cfg.MaxInputChars, "must be positive")
	}

	if cfg.MaxOutputBytes <= 0 {
		v.addError("runner.max_output_bytes", cfg.MaxOutputBytes, "must be positive")
	}
}

func (v *Validator) validateMonitor(cfg *MonitorConfig) {
	if cfg.MaxHistory <= 0 {
		v.addError("monitor.max_history", cfg.MaxHistory, "must be positive")
	}

	if _, err := time.ParseDuration(cfg.CleanupInterval); err != nil {
		v.addError("monitor.cleanup_interval", cfg.CleanupInterval, "invalid duration format")
	}
}

func (v *Validator) validatePatterns(cfg *PatternsConfig) {
	if cfg.Dir == "" {
		v.addError("patterns.dir", cfg.Dir, "directory required")
	} else if !isValidPath(cfg.Dir) {
		v.addError("patterns.dir", cfg.Dir, "invalid directory path")
	}

	if _, err := time.ParseDuration(cfg.CacheTTL); err != nil {
		v.addError("patterns.cache_ttl", cfg.CacheTTL, "invalid duration format")
	}
}

func (v *Validator) validateOutputs(cfg *OutputsConfig) {
	validBackends := map[string]bool{
		"json": true, "sqlite": true,
	}
	if !validBackends[cfg.Backend] {
		v.addError("outputs.backend", cfg.Backend, "must be one of: json, sqlite")
	}

	switch cfg.Backend {
	case "json":
		if cfg.Dir == "" {
			v.addError("outputs.dir", cfg.Dir, "directory required for json backend")
		}
	case "sqlite":
		if cfg.DBPath == "" {
			v.addError("outputs.db_path", cfg.DBPath, "database path required for sqlite backend")
		}
	}

	if cfg.MaxEntries <= 0 {
		v.addError("outputs.max_entries", cfg.MaxEntries, "must be positive")
	}
}

func (v *Validator) validateDefaults(cfg *DefaultsConfig) {
	if ref := cfg.ModelRef(); ref != "" && !core.ValidModelRef(ref) {
		v.addError("defaults.model", ref, "invalid model reference")
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
