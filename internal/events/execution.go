package events

// Event type constants for execution lifecycle events.
const (
	TypeExecutionCreated   = "execution_created"
	TypeExecutionStarted   = "execution_started"
	TypeProgressUpdated    = "progress_updated"
	TypeExecutionCompleted = "execution_completed"
	TypeExecutionCancelled = "execution_cancelled"
)

// ExecutionCreatedEvent is emitted when a record enters the registry.
type ExecutionCreatedEvent struct {
	BaseEvent
	Pattern   string `json:"pattern"`
	InputSize int    `json:"input_size"`
}

// NewExecutionCreatedEvent creates a new execution created event.
func NewExecutionCreatedEvent(executionID, pattern string, inputSize int) ExecutionCreatedEvent {
	return ExecutionCreatedEvent{
		BaseEvent: NewBaseEvent(TypeExecutionCreated, executionID),
		Pattern:   pattern,
		InputSize: inputSize,
	}
}

// ExecutionStartedEvent is emitted on the queued to running transition.
type ExecutionStartedEvent struct {
	BaseEvent
	Pattern string `json:"pattern"`
}

// NewExecutionStartedEvent creates a new execution started event.
func NewExecutionStartedEvent(executionID, pattern string) ExecutionStartedEvent {
	return ExecutionStartedEvent{
		BaseEvent: NewBaseEvent(TypeExecutionStarted, executionID),
		Pattern:   pattern,
	}
}

// ProgressUpdatedEvent reports fractional progress in [0,1].
type ProgressUpdatedEvent struct {
	BaseEvent
	Progress float64 `json:"progress"`
}

// NewProgressUpdatedEvent creates a new progress event.
func NewProgressUpdatedEvent(executionID string, progress float64) ProgressUpdatedEvent {
	return ProgressUpdatedEvent{
		BaseEvent: NewBaseEvent(TypeProgressUpdated, executionID),
		Progress:  progress,
	}
}

// ExecutionCompletedEvent is emitted once when a record reaches any
// terminal status other than cancelled. Failed and timed-out runs carry
// their error text.
type ExecutionCompletedEvent struct {
	BaseEvent
	Pattern    string `json:"pattern"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// NewExecutionCompletedEvent creates a new execution completed event.
func NewExecutionCompletedEvent(executionID, pattern, status string, durationMS int64, errText string) ExecutionCompletedEvent {
	return ExecutionCompletedEvent{
		BaseEvent:  NewBaseEvent(TypeExecutionCompleted, executionID),
		Pattern:    pattern,
		Status:     status,
		DurationMS: durationMS,
		Error:      errText,
	}
}

// ExecutionCancelledEvent is emitted when a run is cancelled by request.
type ExecutionCancelledEvent struct {
	BaseEvent
	Pattern string `json:"pattern"`
	Reason  string `json:"reason,omitempty"`
}

// NewExecutionCancelledEvent creates a new execution cancelled event.
func NewExecutionCancelledEvent(executionID, pattern, reason string) ExecutionCancelledEvent {
	return ExecutionCancelledEvent{
		BaseEvent: NewBaseEvent(TypeExecutionCancelled, executionID),
		Pattern:   pattern,
		Reason:    reason,
	}
}
