package health

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeVersionStub creates a fake executable that prints a version line and
// records each invocation in countFile.
func writeVersionStub(t *testing.T, countFile string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fabric-stub")
	script := "#!/bin/sh\necho x >> " + countFile + "\necho 'fabric v1.4.188'\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestChecker_ProbesExecutable(t *testing.T) {
	countFile := filepath.Join(t.TempDir(), "count")
	stub := writeVersionStub(t, countFile)

	checker := NewChecker(stub, nil)
	snap := checker.Check(context.Background())

	assert.True(t, snap.ExecutableAvailable)
	assert.Equal(t, stub, snap.ExecutablePath)
	assert.Equal(t, "fabric v1.4.188", snap.Version)
	assert.WithinDuration(t, time.Now().UTC(), snap.CheckedAt, 5*time.Second)
}

func TestChecker_MissingExecutable(t *testing.T) {
	checker := NewChecker("no-such-binary-anywhere-on-path", nil)
	snap := checker.Check(context.Background())

	assert.False(t, snap.ExecutableAvailable)
	assert.Empty(t, snap.ExecutablePath)
	assert.Empty(t, snap.Version)
}

func TestChecker_VersionProbeFailureLeavesVersionEmpty(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "broken-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 3\n"), 0o755))

	checker := NewChecker(path, nil)
	snap := checker.Check(context.Background())

	assert.True(t, snap.ExecutableAvailable)
	assert.Empty(t, snap.Version)
}

func TestChecker_VersionCachedAcrossChecks(t *testing.T) {
	countFile := filepath.Join(t.TempDir(), "count")
	stub := writeVersionStub(t, countFile)

	checker := NewChecker(stub, nil)
	first := checker.Check(context.Background())
	second := checker.Check(context.Background())

	assert.Equal(t, first.Version, second.Version)

	data, err := os.ReadFile(countFile)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data), "version probe should run once")
}

func TestChecker_SnapshotServesCachedResult(t *testing.T) {
	checker := NewChecker("no-such-binary-anywhere-on-path", nil)

	first := checker.Check(context.Background())
	cached := checker.Snapshot(context.Background())

	assert.True(t, cached.CheckedAt.Equal(first.CheckedAt))
}

func TestChecker_CPUPercentWarmsUpOnSecondCheck(t *testing.T) {
	checker := NewChecker("no-such-binary-anywhere-on-path", nil)

	first := checker.Check(context.Background())
	assert.Zero(t, first.CPUPercent)

	time.Sleep(50 * time.Millisecond)
	second := checker.Check(context.Background())
	assert.GreaterOrEqual(t, second.CPUPercent, 0.0)
	assert.LessOrEqual(t, second.CPUPercent, 100.0)
}

func TestChecker_CollectsMemory(t *testing.T) {
	checker := NewChecker("no-such-binary-anywhere-on-path", nil)
	snap := checker.Check(context.Background())

	if snap.MemTotalMB == 0 {
		t.Skip("memory stats unavailable on this platform")
	}
	assert.Greater(t, snap.MemTotalMB, snap.MemUsedMB)
	assert.Greater(t, snap.MemPercent, 0.0)
	assert.LessOrEqual(t, snap.MemPercent, 100.0)
}
