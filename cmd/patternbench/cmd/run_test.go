package cmd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patternbench/patternbench/internal/core"
	"github.com/patternbench/patternbench/internal/logging"
	"github.com/patternbench/patternbench/internal/outputs"
)

// echoStub tags its stdin with the pattern name so tests can verify both
// the argv contract and the input plumbing from one output line.
const echoStub = "#!/bin/sh\ninput=$(cat)\necho \"[$2] $input\"\n"

func TestRunCommand_ExecutesPattern(t *testing.T) {
	stub := writeStub(t, "fabric-echo", echoStub)
	testConfig(t, stub)

	runInput = "hello world"

	out := captureStdout(t, func() {
		require.NoError(t, runRun(runCmd, []string{"summarize"}))
	})

	assert.Equal(t, "[summarize] hello world", strings.TrimSpace(out))
}

func TestRunCommand_RejectsInvalidPatternName(t *testing.T) {
	stub := writeStub(t, "fabric-echo", echoStub)
	testConfig(t, stub)

	runInput = "hello"

	err := runRun(runCmd, []string{"bad name!"})
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
}

func TestRunCommand_FailureExitsNonZero(t *testing.T) {
	stub := writeStub(t, "fabric-boom", "#!/bin/sh\ncat > /dev/null\necho boom >&2\nexit 3\n")
	testConfig(t, stub)

	runInput = "hello"

	err := runRun(runCmd, []string{"summarize"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summarize")
	assert.Contains(t, err.Error(), "failed")
}

func TestRunCommand_TimeoutReported(t *testing.T) {
	stub := writeStub(t, "fabric-slow", "#!/bin/sh\ncat > /dev/null\nsleep 30\n")
	testConfig(t, stub)

	runInput = "hello"
	runTimeout = 100 * time.Millisecond

	start := time.Now()
	err := runRun(runCmd, []string{"summarize"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(core.StatusTimeout))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunCommand_SavePersistsOutput(t *testing.T) {
	stub := writeStub(t, "fabric-echo", echoStub)
	testConfig(t, stub)

	outDir := t.TempDir()
	viper.Set("outputs.dir", outDir)

	runInput = "keep this"
	runSave = true

	captureStdout(t, func() {
		require.NoError(t, runRun(runCmd, []string{"summarize"}))
	})

	store := outputs.NewJSONStore(outDir, 0, logging.NewNop())
	list, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "summarize", list[0].Pattern)
	assert.Equal(t, "keep this", list[0].InputText)
	assert.Contains(t, list[0].OutputText, "[summarize] keep this")
}

func TestRunCommand_AppliesConfiguredDefaultModel(t *testing.T) {
	stub := writeStub(t, "fabric-argv", "#!/bin/sh\ncat > /dev/null\nfor a in \"$@\"; do printf '%s\\n' \"$a\"; done\n")
	testConfig(t, stub)
	viper.Set("defaults.vendor", "openai")
	viper.Set("defaults.model", "gpt-4o")

	runInput = "hello"

	out := captureStdout(t, func() {
		require.NoError(t, runRun(runCmd, []string{"summarize"}))
	})
	assert.Contains(t, out, "openai/gpt-4o")

	resetFlags()
	runInput = "hello"
	runVendor, runModel = "ollama", "llama3"

	out = captureStdout(t, func() {
		require.NoError(t, runRun(runCmd, []string{"summarize"}))
	})
	assert.Contains(t, out, "ollama/llama3")
	assert.NotContains(t, out, "gpt-4o")
}
