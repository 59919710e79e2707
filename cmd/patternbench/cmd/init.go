package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/patternbench/patternbench/internal/config"
	"github.com/patternbench/patternbench/internal/fsutil"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the user configuration file",
	Long: `Write a documented default configuration to
~/.config/patternbench/.patternbench.yaml. An existing file is left
untouched unless --force is given.`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(_ *cobra.Command, _ []string) error {
	path, err := config.UserConfigPath()
	if err != nil {
		return err
	}

	if initForce {
		if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := fsutil.WriteFileAtomic(path, []byte(config.DefaultConfigYAML), 0o600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	}

	if _, statErr := os.Stat(path); statErr == nil {
		fmt.Printf("config already exists at %s (use --force to overwrite)\n", path)
		return nil
	}

	created, err := config.EnsureUserConfigFile()
	if err != nil {
		return err
	}
	fmt.Printf("created %s\n", created)
	return nil
}
