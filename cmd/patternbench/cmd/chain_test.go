package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patternbench/patternbench/internal/core"
)

func TestChainCommand_PipesOutputs(t *testing.T) {
	stub := writeStub(t, "fabric-echo", echoStub)
	testConfig(t, stub)

	chainInput = "seed"

	out := captureStdout(t, func() {
		require.NoError(t, runChainCmd(chainCmd, []string{"extract_wisdom", "summarize"}))
	})

	// Each stage tags its input, so the final line shows the full path.
	assert.Equal(t, "[summarize] [extract_wisdom] seed", strings.TrimSpace(out))
}

func TestChainCommand_InvalidStageAborts(t *testing.T) {
	stub := writeStub(t, "fabric-echo", echoStub)
	testConfig(t, stub)

	chainInput = "seed"

	err := runChainCmd(chainCmd, []string{"summarize", "bad name!"})
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
}

func TestChainCommand_StopsOnFailure(t *testing.T) {
	stub := writeStub(t, "fabric-boom", "#!/bin/sh\ncat > /dev/null\necho broken >&2\nexit 1\n")
	testConfig(t, stub)

	chainInput = "seed"

	err := runChainCmd(chainCmd, []string{"summarize", "extract_wisdom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain stopped")
	assert.Contains(t, err.Error(), "summarize")
}

func TestChainCommand_ContinueOnError(t *testing.T) {
	// Fails only for the pattern named fail_stage, echoes otherwise.
	script := "#!/bin/sh\ninput=$(cat)\nif [ \"$2\" = \"fail_stage\" ]; then exit 1; fi\necho \"[$2] $input\"\n"
	stub := writeStub(t, "fabric-flaky", script)
	testConfig(t, stub)

	chainInput = "seed"
	chainContinue = true

	out := captureStdout(t, func() {
		require.NoError(t, runChainCmd(chainCmd, []string{"summarize", "fail_stage", "extract_wisdom"}))
	})

	// The failing stage is skipped; the next stage reuses summarize's output.
	assert.Equal(t, "[extract_wisdom] [summarize] seed", strings.TrimSpace(out))
}

func TestChainCommand_AllStagesFail(t *testing.T) {
	stub := writeStub(t, "fabric-boom", "#!/bin/sh\ncat > /dev/null\nexit 1\n")
	testConfig(t, stub)

	chainInput = "seed"
	chainContinue = true

	err := runChainCmd(chainCmd, []string{"summarize", "extract_wisdom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no output")
}
