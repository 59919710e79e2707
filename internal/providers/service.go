// Package providers keeps the catalog of model vendors: which are
// configured through environment keys, and which models the external CLI
// reports for them.
package providers

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/patternbench/patternbench/internal/logging"
)

const (
	// DefaultListTimeout bounds the model listing subprocess.
	DefaultListTimeout = 30 * time.Second
	// DefaultCacheTTL bounds how stale the model catalog may get.
	DefaultCacheTTL = 5 * time.Minute
)

// Options configures a Service.
type Options struct {
	// ExecutablePath is the CLI binary queried for models. Required.
	ExecutablePath string
	// EnvFile is the vendor credentials file. Defaults to
	// ~/.config/fabric/.env.
	EnvFile string
	// ListTimeout defaults to DefaultListTimeout.
	ListTimeout time.Duration
	// CacheTTL defaults to DefaultCacheTTL.
	CacheTTL time.Duration
	// Logger defaults to a no-op logger.
	Logger *logging.Logger
}

// Service answers vendor and model questions for the API and the doctor
// command.
type Service struct {
	execPath    string
	envFile     string
	listTimeout time.Duration
	ttl         time.Duration
	logger      *logging.Logger

	mu       sync.Mutex
	cached   []Model
	cachedAt time.Time
}

// New creates a Service.
func New(opts Options) *Service {
	if opts.EnvFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			opts.EnvFile = filepath.Join(home, ".config", "fabric", ".env")
		}
	}
	if opts.ListTimeout <= 0 {
		opts.ListTimeout = DefaultListTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Service{
		execPath:    opts.ExecutablePath,
		envFile:     opts.EnvFile,
		listTimeout: opts.ListTimeout,
		ttl:         opts.CacheTTL,
		logger:      opts.Logger.WithComponent("providers"),
	}
}

// InvalidateCache drops the cached model catalog.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
