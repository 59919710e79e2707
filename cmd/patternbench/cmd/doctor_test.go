package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCommand_HealthyReport(t *testing.T) {
	stub := writeStub(t, "fabric-ok", "#!/bin/sh\necho 'fabric v1.4.188'\n")
	testConfig(t, stub)
	dir := t.TempDir()
	seedPatternDir(t, dir)
	viper.Set("patterns.dir", dir)

	var err error
	out := captureStdout(t, func() {
		err = runDoctor(doctorCmd, nil)
	})

	require.NoError(t, err)
	assert.Contains(t, out, "fabric v1.4.188")
	assert.Contains(t, out, "2 patterns under")
	assert.Contains(t, out, "ollama (no key required)")
	assert.Contains(t, out, "configuration valid")
	assert.Contains(t, out, "System: load")
}

func TestDoctorCommand_MissingExecutable(t *testing.T) {
	testConfig(t, "definitely-not-a-real-cli-binary")

	var err error
	out := captureStdout(t, func() {
		err = runDoctor(doctorCmd, nil)
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency check failed")
	assert.Contains(t, out, "not found on PATH")
}

func TestDoctorCommand_ReportsConfigIssues(t *testing.T) {
	stub := writeStub(t, "fabric-ok", "#!/bin/sh\necho 'fabric v1.4.188'\n")
	testConfig(t, stub)
	viper.Set("monitor.max_history", -1)

	var err error
	out := captureStdout(t, func() {
		err = runDoctor(doctorCmd, nil)
	})

	require.Error(t, err)
	assert.Contains(t, out, "monitor.max_history")
	assert.Contains(t, out, "Fix the issues above")
}

func TestDoctorCommand_YAMLSnapshot(t *testing.T) {
	stub := writeStub(t, "fabric-ok", "#!/bin/sh\necho 'fabric v1.4.188'\n")
	testConfig(t, stub)

	doctorYAML = true

	var err error
	out := captureStdout(t, func() {
		err = runDoctor(doctorCmd, nil)
	})

	require.NoError(t, err)
	assert.Contains(t, out, "Effective configuration:")
	assert.Contains(t, out, "server:")
	assert.Contains(t, out, "host: 127.0.0.1")
	assert.Contains(t, out, "max_output_bytes: 1000000")
}
