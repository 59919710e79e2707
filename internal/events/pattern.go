package events

// Event type constants for pattern library changes.
const (
	TypePatternSaved   = "pattern_saved"
	TypePatternDeleted = "pattern_deleted"
)

// PatternSavedEvent is emitted when a pattern file is created or updated,
// whether through the API or detected on disk.
type PatternSavedEvent struct {
	BaseEvent
	Pattern string `json:"pattern"`
}

// NewPatternSavedEvent creates a new pattern saved event.
func NewPatternSavedEvent(pattern string) PatternSavedEvent {
	return PatternSavedEvent{
		BaseEvent: NewBaseEvent(TypePatternSaved, ""),
		Pattern:   pattern,
	}
}

// PatternDeletedEvent is emitted when a pattern is removed.
type PatternDeletedEvent struct {
	BaseEvent
	Pattern string `json:"pattern"`
}

// NewPatternDeletedEvent creates a new pattern deleted event.
func NewPatternDeletedEvent(pattern string) PatternDeletedEvent {
	return PatternDeletedEvent{
		BaseEvent: NewBaseEvent(TypePatternDeleted, ""),
		Pattern:   pattern,
	}
}
