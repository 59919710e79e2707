// Package patterns is the file-backed template library behind the control
// panel: discovery, CRUD with atomic writes, fuzzy search, and a TTL cache
// invalidated by a filesystem watcher. Two layouts coexist, single <name>.md
// files and fabric-style <name>/system.md directories.
package patterns

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sahilm/fuzzy"

	"github.com/patternbench/patternbench/internal/core"
	"github.com/patternbench/patternbench/internal/events"
	"github.com/patternbench/patternbench/internal/fsutil"
	"github.com/patternbench/patternbench/internal/logging"
)

// DefaultCacheTTL bounds how stale a listing may get without a watcher
// event or an explicit invalidation.
const DefaultCacheTTL = 5 * time.Minute

// Options configures a Store.
type Options struct {
	// Root is the pattern library directory. Required.
	Root string
	// CacheTTL defaults to DefaultCacheTTL.
	CacheTTL time.Duration
	// Bus receives pattern_saved/pattern_deleted events. Optional.
	Bus *events.Bus
	// Logger defaults to a no-op logger.
	Logger *logging.Logger
}

// Store reads and writes the pattern library.
type Store struct {
	root   string
	ttl    time.Duration
	bus    *events.Bus
	logger *logging.Logger

	mu       sync.Mutex
	cached   []Pattern
	cachedAt time.Time

	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// New creates a Store over the given root.
func New(opts Options) *Store {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Store{
		root:   opts.Root,
		ttl:    opts.CacheTTL,
		bus:    opts.Bus,
		logger: opts.Logger.WithComponent("patterns"),
	}
}

// Root returns the library directory.
func (s *Store) Root() string {
	return s.root
}

// List returns every pattern in the library sorted by name. Listings are
// cached for the configured TTL; writes through this store and watcher
// events invalidate the cache early.
func (s *Store) List() ([]Pattern, error) {
	s.mu.Lock()
	if s.cached != nil && time.Since(s.cachedAt) < s.ttl {
		out := make([]Pattern, len(s.cached))
		copy(out, s.cached)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	scanned, err := s.scan()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = scanned
	s.cachedAt = time.Now()
	s.mu.Unlock()

	out := make([]Pattern, len(scanned))
	copy(out, scanned)
	return out, nil
}

// scan walks the root for both layouts. Unreadable entries are skipped
// with a warning so one broken file never hides the library.
func (s *Store) scan() ([]Pattern, error) {
	if err := fsutil.EnsureDir(s.root); err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "creating patterns dir: %v", err)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "reading patterns dir: %v", err)
	}

	patterns := make([]Pattern, 0, len(entries))
	for _, entry := range entries {
		var (
			p  Pattern
			ok bool
		)
		switch {
		case entry.IsDir():
			p, ok = s.scanDir(entry.Name())
		case strings.HasSuffix(entry.Name(), ".md"):
			p, ok = s.scanFile(entry.Name())
		default:
			continue
		}
		if ok {
			patterns = append(patterns, p)
		}
	}

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Name < patterns[j].Name })
	s.logger.Debug("pattern scan", "count", len(patterns), "root", s.root)
	return patterns, nil
}

func (s *Store) scanFile(fileName string) (Pattern, bool) {
	path := filepath.Join(s.root, fileName)
	content, err := fsutil.ReadFileScoped(path)
	if err != nil {
		s.logger.Warn("skipping unreadable pattern", "path", path, "error", err)
		return Pattern{}, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return Pattern{}, false
	}
	name := strings.TrimSuffix(fileName, ".md")
	return buildPattern(name, FormatFile, path, string(content), false, info), true
}

func (s *Store) scanDir(dirName string) (Pattern, bool) {
	path := filepath.Join(s.root, dirName, "system.md")
	info, err := os.Stat(path)
	if err != nil {
		// Not a pattern directory.
		return Pattern{}, false
	}
	content, err := fsutil.ReadFileScoped(path)
	if err != nil {
		s.logger.Warn("skipping unreadable pattern", "path", path, "error", err)
		return Pattern{}, false
	}
	_, userErr := os.Stat(filepath.Join(s.root, dirName, "user.md"))
	return buildPattern(dirName, FormatDir, path, string(content), userErr == nil, info), true
}

func buildPattern(name string, format Format, path, content string, hasUser bool, info os.FileInfo) Pattern {
	return Pattern{
		Name:        name,
		DisplayName: displayName(name),
		Description: describe(content),
		Category:    Categorize(name),
		Tags:        extractTags(name, content),
		HasUser:     hasUser,
		EstTokens:   EstimateTokens(content),
		Format:      format,
		Path:        path,
		Size:        info.Size(),
		ModifiedAt:  info.ModTime().Unix(),
	}
}

// Load returns one pattern with its content. The file layout is preferred,
// then the directory layout; a directory pattern also carries user.md when
// present.
func (s *Store) Load(name string) (*Document, error) {
	if err := s.checkName(name); err != nil {
		return nil, err
	}

	if path := filepath.Join(s.root, name+".md"); fileExists(path) {
		content, err := fsutil.ReadFileScoped(path)
		if err != nil {
			return nil, core.ErrInternal(core.CodeStoreFailure, "reading pattern %s: %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, core.ErrInternal(core.CodeStoreFailure, "reading pattern %s: %v", name, err)
		}
		return &Document{
			Pattern: buildPattern(name, FormatFile, path, string(content), false, info),
			Content: string(content),
		}, nil
	}

	if path := filepath.Join(s.root, name, "system.md"); fileExists(path) {
		content, err := fsutil.ReadFileScoped(path)
		if err != nil {
			return nil, core.ErrInternal(core.CodeStoreFailure, "reading pattern %s: %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, core.ErrInternal(core.CodeStoreFailure, "reading pattern %s: %v", name, err)
		}
		doc := &Document{Content: string(content)}
		userPath := filepath.Join(s.root, name, "user.md")
		hasUser := false
		if userContent, userErr := fsutil.ReadFileScoped(userPath); userErr == nil {
			doc.UserContent = string(userContent)
			hasUser = true
		}
		doc.Pattern = buildPattern(name, FormatDir, path, string(content), hasUser, info)
		return doc, nil
	}

	return nil, core.ErrNotFound(core.CodePatternNotFound, "pattern not found: %s", name)
}

// Save writes a pattern's content atomically and reports whether it was
// created rather than updated. An existing directory-layout pattern keeps
// its layout; everything else is written as <name>.md.
func (s *Store) Save(name, content string) (bool, error) {
	if err := s.checkName(name); err != nil {
		return false, err
	}

	path := filepath.Join(s.root, name+".md")
	if dirPath := filepath.Join(s.root, name, "system.md"); fileExists(dirPath) {
		path = dirPath
	}
	created := !fileExists(path)

	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return false, core.ErrInternal(core.CodeStoreFailure, "creating pattern dir: %v", err)
	}
	if err := fsutil.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return false, core.ErrInternal(core.CodeStoreFailure, "writing pattern %s: %v", name, err)
	}

	s.InvalidateCache()
	s.logger.Info("pattern saved", "pattern", name, "path", path, "created", created)
	if s.bus != nil {
		s.bus.Publish(events.NewPatternSavedEvent(name))
	}
	return created, nil
}

// Delete removes a pattern. Directory-layout patterns are removed whole,
// including any user.md.
func (s *Store) Delete(name string) error {
	if err := s.checkName(name); err != nil {
		return err
	}

	var err error
	switch {
	case fileExists(filepath.Join(s.root, name, "system.md")):
		err = os.RemoveAll(filepath.Join(s.root, name))
	case fileExists(filepath.Join(s.root, name+".md")):
		err = os.Remove(filepath.Join(s.root, name+".md"))
	default:
		return core.ErrNotFound(core.CodePatternNotFound, "pattern not found: %s", name)
	}
	if err != nil {
		return core.ErrInternal(core.CodeStoreFailure, "deleting pattern %s: %v", name, err)
	}

	s.InvalidateCache()
	s.logger.Info("pattern deleted", "pattern", name)
	if s.bus != nil {
		s.bus.Publish(events.NewPatternDeletedEvent(name))
	}
	return nil
}

// Search fuzzy-matches the query against pattern names and descriptions,
// best matches first. An empty query lists everything.
func (s *Store) Search(query string) ([]Pattern, error) {
	list, err := s.List()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return list, nil
	}

	targets := make([]string, len(list))
	for i, p := range list {
		targets[i] = p.Name + " " + p.Description
	}
	matches := fuzzy.Find(query, targets)

	out := make([]Pattern, len(matches))
	for i, m := range matches {
		out[i] = list[m.Index]
	}
	return out, nil
}

// InvalidateCache drops the cached listing so the next List rescans.
func (s *Store) InvalidateCache() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// Watch starts a filesystem watcher that invalidates the cache on library
// changes. Stop it with Close.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsutil.EnsureDir(s.root); err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(s.root); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher
	s.stop = make(chan struct{})
	go s.watchLoop()
	s.logger.Debug("pattern watcher started", "root", s.root)
	return nil
}

func (s *Store) watchLoop() {
	for {
		select {
		case <-s.stop:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.InvalidateCache()
				// New pattern directories get their own watch so edits to
				// their system.md invalidate too.
				if ev.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						_ = s.watcher.Add(ev.Name)
					}
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("pattern watcher error", "error", err)
		}
	}
}

// Close stops the watcher if one is running.
func (s *Store) Close() {
	if s.watcher != nil {
		close(s.stop)
		s.watcher.Close()
		s.watcher = nil
	}
}

// checkName applies the pattern-name grammar plus a path-safety guard. The
// grammar admits names like ".." that are valid tokens but unsafe paths.
func (s *Store) checkName(name string) error {
	if err := core.ValidatePatternName(name); err != nil {
		return err
	}
	if !filepath.IsLocal(name) {
		return core.ErrValidation(core.CodeInvalidPatternName, "unsafe pattern path: %s", name)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
