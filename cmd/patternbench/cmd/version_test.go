package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.2.3", "abc123def", "2026-01-15")

	t.Run("version command output", func(t *testing.T) {
		output := captureStdout(t, func() {
			versionCmd.Run(versionCmd, []string{})
		})

		assert.Contains(t, output, "patternbench v1.2.3")
		assert.Contains(t, output, "commit: abc123def")
		assert.Contains(t, output, "built:  2026-01-15")
	})

	t.Run("version command properties", func(t *testing.T) {
		assert.NotNil(t, versionCmd)
		assert.Equal(t, "version", versionCmd.Use)
		assert.Equal(t, "Print version information", versionCmd.Short)
		assert.NotNil(t, versionCmd.Run)
	})

	t.Run("version with empty values", func(t *testing.T) {
		SetVersion("", "", "")

		output := captureStdout(t, func() {
			versionCmd.Run(versionCmd, []string{})
		})

		// Structure survives empty values
		assert.Contains(t, output, "patternbench")
		assert.Contains(t, output, "commit:")
		assert.Contains(t, output, "built:")
	})
}
