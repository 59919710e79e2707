package outputs

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/patternbench/patternbench/internal/core"
	"github.com/patternbench/patternbench/internal/logging"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// SQLiteStore persists artifacts in a single SQLite database opened in WAL
// mode. The mutex serializes writers so concurrent mutations never surface
// busy errors.
type SQLiteStore struct {
	dbPath     string
	db         *sql.DB
	maxEntries int
	logger     *logging.Logger
	mu         sync.Mutex
}

// NewSQLiteStore opens (and migrates) the database at dbPath.
func NewSQLiteStore(dbPath string, maxEntries int, logger *logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "creating outputs directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "opening outputs database: %v", err)
	}

	s := &SQLiteStore{
		dbPath:     dbPath,
		db:         db,
		maxEntries: maxEntries,
		logger:     logger.WithComponent("outputs"),
	}
	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			s.logger.Warn("closing database after failed migration", "error", closeErr)
		}
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table missing on a fresh database.
		version = 0
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return core.ErrInternal(core.CodeStoreFailure, "applying schema migration v1: %v", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, log OutputLog) (*OutputLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log = fill(log)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "beginning transaction: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outputs (id, pattern, input_text, output_text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, log.ID, log.Pattern, log.InputText, log.OutputText, log.CreatedAt)
	if err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "inserting output: %v", err)
	}

	if s.maxEntries > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM outputs WHERE rowid NOT IN (
				SELECT rowid FROM outputs ORDER BY rowid DESC LIMIT ?
			)
		`, s.maxEntries)
		if err != nil {
			return nil, core.ErrInternal(core.CodeStoreFailure, "evicting old outputs: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "committing output: %v", err)
	}
	s.logger.Debug("output appended", "id", log.ID, "pattern", log.Pattern)
	return &log, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]OutputLog, error) {
	if limit <= 0 {
		// SQLite treats a negative limit as unlimited.
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern, input_text, output_text, created_at
		FROM outputs ORDER BY rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "listing outputs: %v", err)
	}
	defer rows.Close()

	logs := make([]OutputLog, 0)
	for rows.Next() {
		var log OutputLog
		if err := rows.Scan(&log.ID, &log.Pattern, &log.InputText, &log.OutputText, &log.CreatedAt); err != nil {
			return nil, core.ErrInternal(core.CodeStoreFailure, "scanning output row: %v", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "reading output rows: %v", err)
	}
	return logs, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*OutputLog, error) {
	var log OutputLog
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pattern, input_text, output_text, created_at
		FROM outputs WHERE id = ?
	`, id).Scan(&log.ID, &log.Pattern, &log.InputText, &log.OutputText, &log.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound(core.CodeOutputNotFound, "output not found: %s", id)
	}
	if err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "loading output: %v", err)
	}
	return &log, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM outputs WHERE id = ?", id)
	if err != nil {
		return core.ErrInternal(core.CodeStoreFailure, "deleting output: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.ErrInternal(core.CodeStoreFailure, "deleting output: %v", err)
	}
	if affected == 0 {
		return core.ErrNotFound(core.CodeOutputNotFound, "output not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) Star(ctx context.Context, id, name string) (*StarredOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	source, err := s.Get(ctx, id)
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO starred_outputs (id, name, pattern, output_text, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, entry.ID, entry.Name, entry.Pattern, entry.OutputText, entry.CreatedAt)
	if err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "starring output: %v", err)
	}

	// Re-starring keeps the original star time.
	err = s.db.QueryRowContext(ctx,
		"SELECT created_at FROM starred_outputs WHERE id = ?", id,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "starring output: %v", err)
	}
	return &entry, nil
}

func (s *SQLiteStore) Unstar(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM starred_outputs WHERE id = ?", id)
	if err != nil {
		return core.ErrInternal(core.CodeStoreFailure, "unstarring output: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.ErrInternal(core.CodeStoreFailure, "unstarring output: %v", err)
	}
	if affected == 0 {
		return core.ErrNotFound(core.CodeOutputNotFound, "starred output not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) ListStarred(ctx context.Context) ([]StarredOutput, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, pattern, output_text, created_at
		FROM starred_outputs ORDER BY rowid DESC
	`)
	if err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "listing starred outputs: %v", err)
	}
	defer rows.Close()

	starred := make([]StarredOutput, 0)
	for rows.Next() {
		var entry StarredOutput
		if err := rows.Scan(&entry.ID, &entry.Name, &entry.Pattern, &entry.OutputText, &entry.CreatedAt); err != nil {
			return nil, core.ErrInternal(core.CodeStoreFailure, "scanning starred row: %v", err)
		}
		starred = append(starred, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrInternal(core.CodeStoreFailure, "reading starred rows: %v", err)
	}
	return starred, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
