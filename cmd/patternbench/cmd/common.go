package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/patternbench/patternbench/internal/config"
	"github.com/patternbench/patternbench/internal/logging"
	"github.com/patternbench/patternbench/internal/monitor"
	"github.com/patternbench/patternbench/internal/outputs"
	"github.com/patternbench/patternbench/internal/patterns"
	"github.com/patternbench/patternbench/internal/providers"
	"github.com/patternbench/patternbench/internal/runner"
)

// loadConfig loads and validates the effective configuration using the
// global viper (which carries flag bindings).
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// newCLILogger builds the logger for one-shot commands. Logs go to stderr
// so stdout stays clean for pattern output.
func newCLILogger(cfg *config.Config) *logging.Logger {
	level := cfg.Log.Level
	if quiet {
		level = "error"
	}
	return logging.New(logging.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// newRunner wires a registry and runner for terminal executions. No event
// bus: there is no SSE consumer in one-shot mode.
func newRunner(cfg *config.Config, logger *logging.Logger) *runner.Runner {
	mon := monitor.New(monitor.Options{
		MaxHistory: cfg.Monitor.MaxHistory,
		Logger:     logger,
	})
	return runner.New(runner.Config{
		ExecutablePath: cfg.Runner.Executable,
		DefaultTimeout: cfg.Runner.TimeoutOrDefault(),
		MaxInputChars:  cfg.Runner.MaxInputChars,
		MaxOutputBytes: cfg.Runner.MaxOutputBytes,
	}, mon, logger)
}

// newPatternStore opens the pattern library for one-shot commands. The
// caller owns Close; no watcher is started.
func newPatternStore(cfg *config.Config, logger *logging.Logger) *patterns.Store {
	return patterns.New(patterns.Options{
		Root:     cfg.Patterns.Dir,
		CacheTTL: cfg.Patterns.CacheTTLOrDefault(),
		Logger:   logger,
	})
}

func newProviderService(cfg *config.Config, logger *logging.Logger) *providers.Service {
	return providers.New(providers.Options{
		ExecutablePath: cfg.Runner.Executable,
		Logger:         logger,
	})
}

func newOutputStore(cfg *config.Config, logger *logging.Logger) (outputs.Store, error) {
	return outputs.NewStore(outputs.Options{
		Backend:    cfg.Outputs.Backend,
		Dir:        cfg.Outputs.Dir,
		DBPath:     cfg.Outputs.DBPath,
		MaxEntries: cfg.Outputs.MaxEntries,
		Logger:     logger,
	})
}

// resolveInput returns the input text for run and chain: the --input flag,
// then the --file flag, then piped stdin. An interactive terminal yields
// empty input rather than blocking on a read nobody is typing into.
func resolveInput(inputFlag, fileFlag string) (string, error) {
	if inputFlag != "" {
		return inputFlag, nil
	}
	if fileFlag != "" {
		data, err := os.ReadFile(fileFlag)
		if err != nil {
			return "", fmt.Errorf("reading input file: %w", err)
		}
		return string(data), nil
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

// outputJSON writes the given value to stdout as indented JSON.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncateCell removes newlines and truncates the string for table cells.
func truncateCell(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")

	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
