package outputs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/patternbench/patternbench/internal/core"
	"github.com/patternbench/patternbench/internal/fsutil"
	"github.com/patternbench/patternbench/internal/logging"
)

// JSON backend file names.
const (
	outputsFile = "outputs.json"
	starredFile = "starred_outputs.json"
)

// JSONStore persists artifacts as two JSON files under one directory.
// Files are rewritten whole on every mutation through atomic renames, and
// entries are kept oldest first on disk.
type JSONStore struct {
	dir        string
	maxEntries int
	logger     *logging.Logger
	mu         sync.Mutex
}

// NewJSONStore creates a JSON-file store rooted at dir.
func NewJSONStore(dir string, maxEntries int, logger *logging.Logger) *JSONStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &JSONStore{
		dir:        dir,
		maxEntries: maxEntries,
		logger:     logger.WithComponent("outputs"),
	}
}

func (s *JSONStore) Append(_ context.Context, log OutputLog) (*OutputLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := readJSONList[OutputLog](filepath.Join(s.dir, outputsFile))
	if err != nil {
		return nil, err
	}

	log = fill(log)
	logs = append(logs, log)
	if s.maxEntries > 0 && len(logs) > s.maxEntries {
		logs = logs[len(logs)-s.maxEntries:]
	}

	if err := s.writeList(outputsFile, logs); err != nil {
		return nil, err
	}
	s.logger.Debug("output appended", "id", log.ID, "pattern", log.Pattern, "total", len(logs))
	return &log, nil
}

func (s *JSONStore) List(_ context.Context, limit int) ([]OutputLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := readJSONList[OutputLog](filepath.Join(s.dir, outputsFile))
	if err != nil {
		return nil, err
	}

	reversed := make([]OutputLog, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		reversed = append(reversed, logs[i])
	}
	if limit > 0 && len(reversed) > limit {
		reversed = reversed[:limit]
	}
	return reversed, nil
}

func (s *JSONStore) Get(_ context.Context, id string) (*OutputLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := readJSONList[OutputLog](filepath.Join(s.dir, outputsFile))
	if err != nil {
		return nil, err
	}
	for i := range logs {
		if logs[i].ID == id {
			log := logs[i]
			return &log, nil
		}
	}
	return nil, core.ErrNotFound(core.CodeOutputNotFound, "output not found: %s", id)
}

func (s *JSONStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := readJSONList[OutputLog](filepath.Join(s.dir, outputsFile))
	if err != nil {
		return err
	}

	kept := logs[:0]
	found := false
	for _, log := range logs {
		if log.ID == id {
			found = true
			continue
		}
		kept = append(kept, log)
	}
	if !found {
		return core.ErrNotFound(core.CodeOutputNotFound, "output not found: %s", id)
	}
	return s.writeList(outputsFile, kept)
}

func (s *JSONStore) Star(_ context.Context, id, name string) (*StarredOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := readJSONList[OutputLog](filepath.Join(s.dir, outputsFile))
	if err != nil {
		return nil, err
	}
	var source *OutputLog
	for i := range logs {
		if logs[i].ID == id {
			source = &logs[i]
			break
		}
	}
	if source == nil {
		return nil, core.ErrNotFound(core.CodeOutputNotFound, "output not found: %s", id)
	}

	starred, err := readJSONList[StarredOutput](filepath.Join(s.dir, starredFile))
	if err != nil {
		return nil, err
	}

	entry := StarredOutput{
		ID:         source.ID,
		Name:       starName(name, source.Pattern),
		Pattern:    source.Pattern,
		OutputText: source.OutputText,
		CreatedAt:  time.Now().UTC(),
	}
	replaced := false
	for i := range starred {
		if starred[i].ID == id {
			entry.CreatedAt = starred[i].CreatedAt
			starred[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		starred = append(starred, entry)
	}

	if err := s.writeList(starredFile, starred); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *JSONStore) Unstar(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	starred, err := readJSONList[StarredOutput](filepath.Join(s.dir, starredFile))
	if err != nil {
		return err
	}

	kept := starred[:0]
	found := false
	for _, entry := range starred {
		if entry.ID == id {
			found = true
			continue
		}
		kept = append(kept, entry)
	}
	if !found {
		return core.ErrNotFound(core.CodeOutputNotFound, "starred output not found: %s", id)
	}
	return s.writeList(starredFile, kept)
}

func (s *JSONStore) ListStarred(_ context.Context) ([]StarredOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	starred, err := readJSONList[StarredOutput](filepath.Join(s.dir, starredFile))
	if err != nil {
		return nil, err
	}
	reversed := make([]StarredOutput, 0, len(starred))
	for i := len(starred) - 1; i >= 0; i-- {
		reversed = append(reversed, starred[i])
	}
	return reversed, nil
}

func (s *JSONStore) Close() error {
	return nil
}

// readJSONList loads a JSON array file; a missing file is an empty list.
func readJSONList[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		return nil, core.ErrInternal(core.CodeStoreFailure, "reading %s: %v", filepath.Base(path), err)
	}
	var list []T
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "parsing %s: %v", filepath.Base(path), err)
	}
	return list, nil
}

func (s *JSONStore) writeList(name string, list any) error {
	if err := fsutil.EnsureDir(s.dir); err != nil {
		return core.ErrInternal(core.CodeStoreFailure, "creating outputs dir: %v", err)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return core.ErrInternal(core.CodeStoreFailure, "encoding %s: %v", name, err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return core.ErrInternal(core.CodeStoreFailure, "writing %s: %v", name, err)
	}
	return nil
}

var _ Store = (*JSONStore)(nil)
