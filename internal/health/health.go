// Package health reports whether the external CLI is usable and how loaded
// the host is. Collection is best-effort: probes that fail leave their
// fields zeroed rather than failing the snapshot.
package health

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/patternbench/patternbench/internal/logging"
)

// versionTimeout bounds the --version probe.
const versionTimeout = 5 * time.Second

// cacheTTL is how long a snapshot stays fresh for on-demand readers.
const cacheTTL = 5 * time.Second

// Snapshot is one health observation.
type Snapshot struct {
	ExecutableAvailable bool      `json:"executable_available"`
	ExecutablePath      string    `json:"executable_path,omitempty"`
	Version             string    `json:"version,omitempty"`
	Load1               float64   `json:"load_avg_1"`
	Load5               float64   `json:"load_avg_5"`
	Load15              float64   `json:"load_avg_15"`
	CPUPercent          float64   `json:"cpu_percent"`
	MemTotalMB          float64   `json:"mem_total_mb"`
	MemUsedMB           float64   `json:"mem_used_mb"`
	MemPercent          float64   `json:"mem_percent"`
	CheckedAt           time.Time `json:"checked_at"`
}

// Checker collects snapshots. CPU usage is a delta between consecutive
// collections, so the first snapshot reports zero.
type Checker struct {
	executable string
	logger     *logging.Logger

	mu           sync.Mutex
	lastCPUTotal float64
	lastCPUIdle  float64
	version      string
	last         *Snapshot
}

// NewChecker creates a Checker probing the given executable.
func NewChecker(executable string, logger *logging.Logger) *Checker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Checker{
		executable: executable,
		logger:     logger.WithComponent("health"),
	}
}

// Check collects a fresh snapshot and caches it.
func (c *Checker) Check(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{CheckedAt: time.Now().UTC()}
	c.probeExecutable(ctx, &snap)
	c.collectLoad(&snap)
	c.collectCPU(&snap)
	c.collectMemory(&snap)

	c.last = &snap
	return snap
}

// Snapshot returns the cached snapshot when fresh, collecting otherwise.
func (c *Checker) Snapshot(ctx context.Context) Snapshot {
	c.mu.Lock()
	if c.last != nil && time.Since(c.last.CheckedAt) < cacheTTL {
		snap := *c.last
		c.mu.Unlock()
		return snap
	}
	c.mu.Unlock()
	return c.Check(ctx)
}

// probeExecutable resolves the binary and reads its version. The version
// is cached after the first successful probe.
func (c *Checker) probeExecutable(ctx context.Context, snap *Snapshot) {
	path, err := exec.LookPath(c.executable)
	if err != nil {
		return
	}
	snap.ExecutableAvailable = true
	snap.ExecutablePath = path

	if c.version != "" {
		snap.Version = c.version
		return
	}

	versionCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	// #nosec G204 -- fixed flag, resolved path
	out, err := exec.CommandContext(versionCtx, path, "--version").Output()
	if err != nil {
		c.logger.Debug("version probe failed", "executable", path, "error", err)
		return
	}
	version, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	c.version = strings.TrimSpace(version)
	snap.Version = c.version
}

func (c *Checker) collectLoad(snap *Snapshot) {
	avg, err := load.Avg()
	if err != nil {
		return
	}
	snap.Load1 = avg.Load1
	snap.Load5 = avg.Load5
	snap.Load15 = avg.Load15
}

func (c *Checker) collectCPU(snap *Snapshot) {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return
	}

	t := times[0]
	total := t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	idle := t.Idle + t.Iowait

	if c.lastCPUTotal > 0 {
		totalDelta := total - c.lastCPUTotal
		idleDelta := idle - c.lastCPUIdle
		if totalDelta > 0 {
			snap.CPUPercent = (1 - idleDelta/totalDelta) * 100
		}
	}
	c.lastCPUTotal = total
	c.lastCPUIdle = idle
}

func (c *Checker) collectMemory(snap *Snapshot) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	snap.MemTotalMB = float64(vm.Total) / 1024 / 1024
	snap.MemUsedMB = float64(vm.Used) / 1024 / 1024
	snap.MemPercent = vm.UsedPercent
}
