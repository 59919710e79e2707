package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/patternbench/patternbench/internal/fsutil"
)

// DefaultConfigYAML contains the default configuration YAML content.
// Used by `patternbench init` so a fresh install starts from a documented file.
const DefaultConfigYAML = `# patternbench configuration
#
# Values not specified here use sensible defaults.

server:
  host: 127.0.0.1
  port: 8080

runner:
  # CLI binary resolved through PATH, or an absolute path.
  executable: fabric
  # Wall clock limit per pattern execution.
  timeout: 90s

monitor:
  # Retained execution records; oldest terminal records are evicted first.
  max_history: 100

patterns:
  # Defaults to the fabric pattern library (~/.config/fabric/patterns).
  # dir: /path/to/patterns
  watch: true

outputs:
  # json or sqlite
  backend: json

# Preselect a model for runs that do not specify one.
# defaults:
#   vendor: openai
#   model: gpt-4o
`

// UserConfigPath returns the per-user configuration file path.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "patternbench", ".patternbench.yaml"), nil
}

// EnsureUserConfigFile ensures the user configuration file exists on disk.
// If it does not exist, it is created from DefaultConfigYAML.
func EnsureUserConfigFile() (string, error) {
	path, err := UserConfigPath()
	if err != nil {
		return "", err
	}

	if _, statErr := os.Stat(path); statErr == nil {
		return path, nil
	} else if !os.IsNotExist(statErr) {
		return "", fmt.Errorf("checking user config: %w", statErr)
	}

	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, []byte(DefaultConfigYAML), 0o600); err != nil {
		return "", fmt.Errorf("creating user config: %w", err)
	}

	return path, nil
}

// ExportYAML renders the effective configuration as YAML, for `patternbench
// config show` and the doctor report.
func ExportYAML(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return out, nil
}
