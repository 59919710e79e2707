package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// writeStub writes an executable shell script and returns its path.
func writeStub(t *testing.T, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs are POSIX-only")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// testConfig resets the global viper and points it at stub tooling and
// temp directories so commands never touch the real home directory.
func testConfig(t *testing.T, executable string) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	viper.Set("runner.executable", executable)
	viper.Set("patterns.dir", t.TempDir())
	viper.Set("outputs.dir", t.TempDir())
	t.Cleanup(func() {
		viper.Reset()
		resetFlags()
	})
}

// resetFlags restores every command flag variable to its default.
func resetFlags() {
	quiet = false
	runInput, runFile, runVendor, runModel, runSave = "", "", "", "", false
	runTimeout = 0
	chainInput, chainFile, chainVendor, chainModel = "", "", "", ""
	chainTimeout = 0
	chainContinue, chainSave = false, false
	patternsQuery, patternsJSON = "", false
	modelsVendor, modelsJSON = "", false
	doctorYAML = false
	initForce = false
}

// captureStdout runs fn with stdout redirected to a pipe and returns what
// it wrote. Output stays below the pipe buffer in these tests.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() {
		os.Stdout = old
		w.Close()
	}()

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String()
}

// seedPatternDir writes a small library covering both on-disk layouts.
func seedPatternDir(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "summarize.md"),
		[]byte("# IDENTITY\nSummarize the input into a tight executive brief.\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "analyze_claims"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "analyze_claims", "system.md"),
		[]byte("# IDENTITY\nAnalyze every claim in the input and rate the evidence.\n"), 0o644))
}
