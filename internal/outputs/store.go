// Package outputs persists run artifacts: the rolling output log and the
// user's starred collection. Two backends implement the same Store
// contract, JSON files for zero-setup installs and SQLite for larger
// histories.
package outputs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patternbench/patternbench/internal/core"
	"github.com/patternbench/patternbench/internal/logging"
)

// OutputLog is one saved run artifact.
type OutputLog struct {
	ID         string    `json:"id"`
	Pattern    string    `json:"pattern"`
	InputText  string    `json:"input_text"`
	OutputText string    `json:"output_text"`
	CreatedAt  time.Time `json:"created_at"`
}

// StarredOutput is a named copy of an output the user wants to keep. It
// survives deletion of the log entry it was starred from.
type StarredOutput struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Pattern    string    `json:"pattern"`
	OutputText string    `json:"output_text"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the persistence contract for run artifacts.
type Store interface {
	// Append saves a log entry, assigning ID and CreatedAt when unset, and
	// evicts the oldest entries beyond the configured bound.
	Append(ctx context.Context, log OutputLog) (*OutputLog, error)
	// List returns entries newest first, capped at limit when positive.
	List(ctx context.Context, limit int) ([]OutputLog, error)
	// Get returns one entry by id.
	Get(ctx context.Context, id string) (*OutputLog, error)
	// Delete removes one entry by id. Starred copies are unaffected.
	Delete(ctx context.Context, id string) error
	// Star copies an entry into the starred collection under the given
	// name; starring again renames the existing copy.
	Star(ctx context.Context, id, name string) (*StarredOutput, error)
	// Unstar removes a starred copy by id.
	Unstar(ctx context.Context, id string) error
	// ListStarred returns the starred collection newest first.
	ListStarred(ctx context.Context) ([]StarredOutput, error)
	Close() error
}

// Backend names accepted by NewStore.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Options configures store creation.
type Options struct {
	// Backend selects the implementation; empty means BackendJSON.
	Backend string
	// Dir holds the JSON backend's files.
	Dir string
	// DBPath is the SQLite backend's database file.
	DBPath string
	// MaxEntries bounds retained log entries; zero or negative means
	// unbounded.
	MaxEntries int
	// Logger defaults to a no-op logger.
	Logger *logging.Logger
}

// NewStore creates the configured backend.
func NewStore(opts Options) (Store, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	switch strings.ToLower(opts.Backend) {
	case "", BackendJSON:
		return NewJSONStore(opts.Dir, opts.MaxEntries, opts.Logger), nil
	case BackendSQLite:
		return NewSQLiteStore(opts.DBPath, opts.MaxEntries, opts.Logger)
	default:
		return nil, core.ErrValidation(core.CodeInvalidConfig, "unknown outputs backend: %s", opts.Backend)
	}
}

// fill assigns the generated fields of a new log entry.
func fill(log OutputLog) OutputLog {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	return log
}

// starName applies the default naming rule for starred copies.
func starName(name, pattern string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return "Starred " + pattern + " output"
}
