package providers

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/patternbench/patternbench/internal/core"
)

// Model is one entry of the CLI-reported catalog.
type Model struct {
	Vendor        string `json:"vendor"`
	Name          string `json:"name"`
	DisplayName   string `json:"display_name"`
	ContextLength int    `json:"context_length"`
}

// Ref returns the vendor/model form passed on the command line.
func (m Model) Ref() string {
	return m.Vendor + "/" + m.Name
}

// ListModels queries the external CLI for its model catalog, optionally
// filtered to one vendor. Results are cached for the configured TTL.
func (s *Service) ListModels(ctx context.Context, vendor string) ([]Model, error) {
	s.mu.Lock()
	if s.cached != nil && time.Since(s.cachedAt) < s.ttl {
		cached := s.cached
		s.mu.Unlock()
		return filterVendor(cached, vendor), nil
	}
	s.mu.Unlock()

	listCtx, cancel := context.WithTimeout(ctx, s.listTimeout)
	defer cancel()

	// #nosec G204 -- fixed flag, executable from validated config
	cmd := exec.CommandContext(listCtx, s.execPath, "--listmodels")
	out, err := cmd.Output()
	if err != nil {
		if listCtx.Err() == context.DeadlineExceeded {
			return nil, core.ErrTimeout(core.CodeProviderFailure, "model listing timed out after %s", s.listTimeout)
		}
		return nil, core.ErrInternal(core.CodeProviderFailure, "listing models: %v", err).WithCause(err)
	}

	models := parseModelListing(string(out))
	s.logger.Debug("model catalog refreshed", "count", len(models))

	s.mu.Lock()
	s.cached = models
	s.cachedAt = time.Now()
	s.mu.Unlock()

	return filterVendor(models, vendor), nil
}

// Validate checks a vendor/model pair against the configured vendors and
// the CLI-reported catalog.
func (s *Service) Validate(ctx context.Context, vendor, model string) error {
	if !KnownVendor(vendor) {
		return core.ErrValidation(core.CodeInvalidModelRef, "unknown vendor: %s", vendor)
	}
	enabled := false
	for _, status := range s.LoadVendors() {
		if status.Name == vendor && status.Enabled {
			enabled = true
			break
		}
	}
	if !enabled {
		return core.ErrValidation(core.CodeInvalidModelRef, "vendor not configured: %s", vendor)
	}

	models, err := s.ListModels(ctx, vendor)
	if err != nil {
		return err
	}
	for _, m := range models {
		if m.Name == model {
			return nil
		}
	}
	return core.ErrValidation(core.CodeInvalidModelRef, "model %s not reported by vendor %s", model, vendor)
}

var modelEntry = regexp.MustCompile(`\[(\d+)\]\s*(.+)`)

// parseModelListing parses the CLI's --listmodels output: vendor header
// lines followed by indented [n] model entries. Connection-error noise
// from unreachable local backends is skipped.
func parseModelListing(output string) []Model {
	models := make([]Model, 0)
	currentVendor := ""

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.Contains(trimmed, "Available models:") ||
			strings.Contains(trimmed, "Ollama Get") ||
			strings.Contains(trimmed, "dial tcp") ||
			strings.Contains(trimmed, "connection refused") {
			continue
		}

		if !strings.HasPrefix(trimmed, "[") {
			currentVendor = strings.ToLower(trimmed)
			continue
		}

		if currentVendor == "" {
			continue
		}
		if m := modelEntry.FindStringSubmatch(trimmed); m != nil {
			name := strings.TrimSpace(m[2])
			models = append(models, Model{
				Vendor:        currentVendor,
				Name:          name,
				DisplayName:   name,
				ContextLength: contextLength(name),
			})
		}
	}
	return models
}

// knownContextLengths is ordered most specific first so partial matching
// is deterministic.
var knownContextLengths = []struct {
	fragment string
	length   int
}{
	{"gpt-4o", 128000},
	{"gpt-4-turbo", 128000},
	{"gpt-4", 8192},
	{"gpt-3.5-turbo", 4096},
	{"claude-3-opus", 200000},
	{"claude-3-sonnet", 200000},
	{"claude-2.1", 200000},
	{"gemini-pro", 32000},
	{"mixtral", 32000},
}

// defaultContextLength is assumed for models not in the known table.
const defaultContextLength = 2048

func contextLength(model string) int {
	lower := strings.ToLower(model)
	for _, known := range knownContextLengths {
		if strings.Contains(lower, known.fragment) {
			return known.length
		}
	}
	return defaultContextLength
}

func filterVendor(models []Model, vendor string) []Model {
	if vendor == "" {
		out := make([]Model, len(models))
		copy(out, models)
		return out
	}
	vendor = strings.ToLower(vendor)
	out := make([]Model, 0)
	for _, m := range models {
		if m.Vendor == vendor {
			out = append(out, m)
		}
	}
	return out
}
