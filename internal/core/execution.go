// Package core defines the domain types shared by the runner, the execution
// monitor, and the web layer: execution records, run results, chain steps,
// and the structured error taxonomy.
package core

import (
	"time"
)

// ExecutionID uniquely identifies a tracked pattern execution.
type ExecutionID string

// ExecutionStatus represents the lifecycle state of an execution.
type ExecutionStatus string

const (
	StatusQueued    ExecutionStatus = "queued"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusCancelled ExecutionStatus = "cancelled"
	StatusTimeout   ExecutionStatus = "timeout"
)

// Terminal reports whether the status is final. Terminal statuses are
// absorbing: a record never leaves one.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// Metadata keys set on results by the runner.
const (
	MetaTruncated   = "truncated"
	MetaTimeout     = "timeout"
	MetaCancelled   = "cancelled"
	MetaExecutionID = "execution_id"
)

// ExecutionRecord is the tracked lifecycle state of one pattern invocation.
// Records are owned by the monitor; callers receive copies.
type ExecutionRecord struct {
	ID                  ExecutionID       `json:"id"`
	Pattern             string            `json:"pattern"`
	Status              ExecutionStatus   `json:"status"`
	Progress            float64           `json:"progress"`
	StartedAt           time.Time         `json:"started_at"`
	EndedAt             *time.Time        `json:"ended_at,omitempty"`
	EstimatedCompletion *time.Time        `json:"estimated_completion,omitempty"`
	Vendor              string            `json:"vendor,omitempty"`
	Model               string            `json:"model,omitempty"`
	InputSize           int               `json:"input_size"`
	OutputSize          *int              `json:"output_size,omitempty"`
	DurationMS          *int64            `json:"duration_ms,omitempty"`
	Error               string            `json:"error,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// Active reports whether the record still counts against the live set.
func (r *ExecutionRecord) Active() bool {
	return r.Status == StatusQueued || r.Status == StatusRunning
}

// Clone returns a deep copy so callers can never mutate registry state.
func (r *ExecutionRecord) Clone() *ExecutionRecord {
	out := *r
	if r.EndedAt != nil {
		t := *r.EndedAt
		out.EndedAt = &t
	}
	if r.EstimatedCompletion != nil {
		t := *r.EstimatedCompletion
		out.EstimatedCompletion = &t
	}
	if r.OutputSize != nil {
		n := *r.OutputSize
		out.OutputSize = &n
	}
	if r.DurationMS != nil {
		d := *r.DurationMS
		out.DurationMS = &d
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// RunResult is the outcome of a single runner invocation. Execution failures
// are carried here as data; only pre-launch validation surfaces as an error.
type RunResult struct {
	Success    bool              `json:"success"`
	Output     string            `json:"output"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	ExitCode   int               `json:"exit_code"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Flag reports whether the named metadata flag is set.
func (r *RunResult) Flag(key string) bool {
	return r.Metadata[key] == "true"
}

// TerminalStatus maps the result onto the record status the monitor should
// stamp: completed on success, timeout/cancelled when flagged, failed
// otherwise.
func (r *RunResult) TerminalStatus() ExecutionStatus {
	switch {
	case r.Success:
		return StatusCompleted
	case r.Flag(MetaTimeout):
		return StatusTimeout
	case r.Flag(MetaCancelled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// ChainStep is one stage of a chained execution. When stage i succeeds,
// stage i+1's Input equals stage i's Output.
type ChainStep struct {
	Pattern    string `json:"pattern"`
	Input      string `json:"input"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// ExecutionStats aggregates the registry for dashboards. SuccessRate and
// AverageDuration are computed over terminal records only; both report zero
// when no terminal records exist.
type ExecutionStats struct {
	TotalExecutions int     `json:"total_executions"`
	SuccessRate     float64 `json:"success_rate"`
	AverageDuration float64 `json:"average_duration"`
	ActiveCount     int     `json:"active_count"`
	CompletedCount  int     `json:"completed_count"`
	FailedCount     int     `json:"failed_count"`
}
