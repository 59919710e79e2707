// Package runner launches the external pattern executable: one process per
// invocation, argv only, input over stdin, stdout captured under a byte cap,
// wall-clock timeout enforced through the process context. Execution
// failures are data in the returned RunResult; the only error Run returns is
// pattern-name validation, raised before any record or process exists.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/patternbench/patternbench/internal/core"
	"github.com/patternbench/patternbench/internal/logging"
	"github.com/patternbench/patternbench/internal/monitor"
)

const (
	// DefaultExecutable is the external CLI launched when no path is
	// configured.
	DefaultExecutable = "fabric"

	// DefaultTimeout bounds one invocation's wall-clock time.
	DefaultTimeout = 90 * time.Second

	// DefaultMaxOutputBytes caps retained stdout per invocation.
	DefaultMaxOutputBytes = 1_000_000

	// killGracePeriod bounds how long Wait may linger on pipe I/O after the
	// context kills the process (e.g. a grandchild inheriting stdout).
	killGracePeriod = 5 * time.Second
)

// Config holds runner settings.
type Config struct {
	// ExecutablePath is the external CLI binary; resolved via PATH when not
	// absolute. Defaults to DefaultExecutable.
	ExecutablePath string
	// DefaultTimeout applies when a request carries none.
	DefaultTimeout time.Duration
	// MaxInputChars caps sanitized input length in runes.
	MaxInputChars int
	// MaxOutputBytes caps retained stdout bytes.
	MaxOutputBytes int
}

func (c Config) withDefaults() Config {
	if c.ExecutablePath == "" {
		c.ExecutablePath = DefaultExecutable
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = core.MaxInputChars
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return c
}

// Request describes one pattern invocation.
type Request struct {
	Pattern string
	Input   string
	// Vendor and Model are passed through verbatim as a single
	// --model vendor/model argument; Vendor alone is ignored.
	Vendor string
	Model  string
	// Timeout overrides the configured default when positive.
	Timeout time.Duration
}

// ChainRequest describes a linear sequence of invocations where each stage
// consumes the previous successful stage's output.
type ChainRequest struct {
	Patterns        []string
	Input           string
	Vendor          string
	Model           string
	Timeout         time.Duration
	ContinueOnError bool
}

// Runner executes patterns through the external CLI and reports every
// lifecycle transition to the monitor.
type Runner struct {
	cfg    Config
	mon    *monitor.Monitor
	logger *logging.Logger
}

// New creates a Runner. The monitor is required; the logger defaults to a
// no-op logger.
func New(cfg Config, mon *monitor.Monitor, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:    cfg.withDefaults(),
		mon:    mon,
		logger: logger.WithComponent("runner"),
	}
}

// Config returns the effective runner configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// Run executes one pattern. A non-nil error means the pattern name failed
// validation and nothing was launched or recorded; every execution outcome,
// including timeout and spawn failure, lands inside the RunResult with
// Success=false. The monitor record id is echoed in the result metadata.
func (r *Runner) Run(ctx context.Context, req Request) (*core.RunResult, error) {
	if err := core.ValidatePatternName(req.Pattern); err != nil {
		return nil, err
	}
	input := core.SanitizeInput(req.Input, r.cfg.MaxInputChars)
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}

	id := r.mon.Create(req.Pattern, req.Vendor, req.Model, len(input))
	r.mon.Start(id)

	result := r.execute(ctx, id, req, input, timeout)

	r.mon.Complete(id, result)
	if result.Metadata == nil {
		result.Metadata = make(map[string]string, 1)
	}
	result.Metadata[core.MetaExecutionID] = string(id)
	return result, nil
}

// execute owns the process lifecycle for one already-registered execution.
func (r *Runner) execute(ctx context.Context, id core.ExecutionID, req Request, input string, timeout time.Duration) *core.RunResult {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Bind cancellation before spawning: a cancel racing this point finds
	// either a terminal record (we never launch) or a live hook that kills
	// the process through the context.
	if !r.mon.BindCancel(id, cancel) {
		return &core.RunResult{
			Success:  false,
			Error:    "execution cancelled before launch",
			ExitCode: -1,
			Metadata: map[string]string{core.MetaCancelled: "true"},
		}
	}
	r.mon.UpdateProgress(id, 0.2, nil)

	execCtx, cancelTimeout := context.WithTimeout(runCtx, timeout)
	defer cancelTimeout()

	args := []string{"--pattern", req.Pattern}
	if ref := modelRef(req.Vendor, req.Model); ref != "" {
		args = append(args, "--model", ref)
	}

	// #nosec G204 -- executable path comes from validated config, args from
	// the validated pattern grammar
	cmd := exec.CommandContext(execCtx, r.cfg.ExecutablePath, args...)
	cmd.Stdin = strings.NewReader(input)
	stdout := newCapWriter(r.cfg.MaxOutputBytes)
	stderr := newCapWriter(r.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = killGracePeriod

	r.logger.Info("executing pattern",
		"execution_id", string(id),
		"pattern", req.Pattern,
		"args", args,
		"stdin_bytes", len(input),
		"timeout", timeout.String(),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return r.startFailure(id, err, runCtx, execCtx, timeout, time.Since(start))
	}
	waitErr := cmd.Wait()
	duration := time.Since(start)

	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		r.logger.Error("pattern timed out",
			"execution_id", string(id),
			"pattern", req.Pattern,
			"timeout", timeout.String(),
		)
		return &core.RunResult{
			Success:    false,
			Error:      fmt.Sprintf("execution timed out after %s", timeout),
			DurationMS: duration.Milliseconds(),
			ExitCode:   -1,
			Metadata:   map[string]string{core.MetaTimeout: "true"},
		}
	case runCtx.Err() == context.Canceled:
		r.logger.Info("pattern cancelled",
			"execution_id", string(id),
			"pattern", req.Pattern,
			"duration_ms", duration.Milliseconds(),
		)
		return &core.RunResult{
			Success:    false,
			Error:      "execution cancelled",
			DurationMS: duration.Milliseconds(),
			ExitCode:   -1,
			Metadata:   map[string]string{core.MetaCancelled: "true"},
		}
	}

	result := &core.RunResult{
		Output:     decodeReplace(stdout.Bytes()),
		DurationMS: duration.Milliseconds(),
	}
	if stdout.Truncated() {
		result.Metadata = map[string]string{core.MetaTruncated: "true"}
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			result.Error = strings.TrimSpace(decodeReplace(stderr.Bytes()))
			if result.Error == "" {
				result.Error = fmt.Sprintf("process exited with code %d", result.ExitCode)
			}
			r.logger.Warn("pattern failed",
				"execution_id", string(id),
				"pattern", req.Pattern,
				"exit_code", result.ExitCode,
				"stderr_preview", preview(result.Error, 500),
			)
			return result
		}
		result.ExitCode = -1
		result.Error = fmt.Sprintf("process error: %v", waitErr)
		r.logger.Error("pattern process error",
			"execution_id", string(id),
			"pattern", req.Pattern,
			"error", waitErr,
		)
		return result
	}

	result.Success = true
	r.logger.Info("pattern completed",
		"execution_id", string(id),
		"pattern", req.Pattern,
		"duration_ms", duration.Milliseconds(),
		"stdout_bytes", stdout.Total(),
		"truncated", stdout.Truncated(),
	)
	return result
}

// startFailure classifies a Start error. A missing executable is an
// environment precondition, reported plainly and never retried.
func (r *Runner) startFailure(id core.ExecutionID, err error, runCtx, execCtx context.Context, timeout time.Duration, elapsed time.Duration) *core.RunResult {
	result := &core.RunResult{
		DurationMS: elapsed.Milliseconds(),
		ExitCode:   -1,
	}
	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		result.Error = fmt.Sprintf("execution timed out after %s", timeout)
		result.Metadata = map[string]string{core.MetaTimeout: "true"}
	case runCtx.Err() == context.Canceled:
		result.Error = "execution cancelled"
		result.Metadata = map[string]string{core.MetaCancelled: "true"}
	case errors.Is(err, exec.ErrNotFound):
		result.Error = fmt.Sprintf("executable not found: %s", r.cfg.ExecutablePath)
	default:
		result.Error = fmt.Sprintf("failed to start process: %v", err)
	}
	r.logger.Error("pattern launch failed",
		"execution_id", string(id),
		"executable", r.cfg.ExecutablePath,
		"error", result.Error,
	)
	return result
}

// RunChain executes patterns in order, feeding each stage the previous
// successful stage's output (the first stage gets the sanitized seed). A
// failing stage is always appended with its error; with ContinueOnError the
// chain proceeds and the next stage keeps the last successful output,
// otherwise it stops immediately. A stage whose name fails validation aborts
// the chain: the steps completed so far are returned together with the
// validation error, and the invalid stage leaves no record and no process.
// An empty pattern list is a no-op.
func (r *Runner) RunChain(ctx context.Context, req ChainRequest) ([]core.ChainStep, error) {
	steps := make([]core.ChainStep, 0, len(req.Patterns))
	if len(req.Patterns) == 0 {
		return steps, nil
	}

	current := core.SanitizeInput(req.Input, r.cfg.MaxInputChars)
	for _, name := range req.Patterns {
		res, err := r.Run(ctx, Request{
			Pattern: name,
			Input:   current,
			Vendor:  req.Vendor,
			Model:   req.Model,
			Timeout: req.Timeout,
		})
		if err != nil {
			return steps, err
		}

		step := core.ChainStep{
			Pattern:    name,
			Input:      current,
			DurationMS: res.DurationMS,
		}
		if res.Success {
			step.Output = res.Output
			current = res.Output
			steps = append(steps, step)
			continue
		}

		step.Error = res.Error
		if step.Error == "" {
			step.Error = "unknown runner error"
		}
		steps = append(steps, step)
		if !req.ContinueOnError {
			break
		}
	}
	return steps, nil
}

// modelRef joins vendor and model into the single --model argument the
// external CLI accepts: "vendor/model" when both are set, the bare model
// otherwise. No model means no argument.
func modelRef(vendor, model string) string {
	if model == "" {
		return ""
	}
	if vendor == "" {
		return model
	}
	return vendor + "/" + model
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... [truncated]"
}
