// Package history persists an audit trail of player switch attempts in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/switcher"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the history database.
	DefaultDBPath = "data/switch_history.db"

	defaultMaxEntries = 1000
	defaultLimit      = 50
)

// Store records switch attempts.
type Store struct {
	mu         sync.RWMutex
	db         *sql.DB
	path       string
	maxEntries int
}

// NewStore creates a store at path. Call Open before use.
func NewStore(path string, maxEntries int) *Store {
	if path == "" {
		path = DefaultDBPath
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Store{
		path:       path,
		maxEntries: maxEntries,
	}
}

// Open opens the database and initializes the schema.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", s.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s.db = db
	if err := s.initSchema(); err != nil {
		s.db.Close()
		s.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", s.path).Msg("Switch history database opened")
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS switches (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		service TEXT NOT NULL,
		outcome TEXT NOT NULL,
		confirmed INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		steps TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_switches_service ON switches(service);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	var version string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, CurrentSchemaVersion)
		return err
	case err != nil:
		return err
	case version != CurrentSchemaVersion:
		log.Info().Str("current", version).Str("target", CurrentSchemaVersion).Msg("Migrating history schema")
		_, err = s.db.Exec(`UPDATE meta SET value = ? WHERE key = 'schema_version'`, CurrentSchemaVersion)
		return err
	}
	return nil
}

// Add stores one record and trims the table to the configured size.
func (s *Store) Add(ctx context.Context, rec switcher.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("history database not open")
	}

	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO switches (id, service, outcome, confirmed, message, started_at, duration_ms, steps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Service, string(rec.Outcome), rec.Confirmed, rec.Message,
		rec.StartedAt.UnixMilli(), rec.Duration.Milliseconds(), string(steps))
	if err != nil {
		return fmt.Errorf("failed to insert switch record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM switches WHERE seq NOT IN (
			SELECT seq FROM switches ORDER BY seq DESC LIMIT ?
		)`, s.maxEntries)
	if err != nil {
		return fmt.Errorf("failed to trim switch history: %w", err)
	}
	return nil
}

// Observe records rec, logging rather than returning failures.
func (s *Store) Observe(ctx context.Context, rec switcher.Record) {
	if err := s.Add(ctx, rec); err != nil {
		log.Error().Err(err).Str("switch", rec.ID).Msg("Failed to record switch history")
	}
}

// Recent returns up to limit records, newest first. A non-empty service
// restricts the result to that player.
func (s *Store) Recent(ctx context.Context, service string, limit int) ([]switcher.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, fmt.Errorf("history database not open")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT id, service, outcome, confirmed, message, started_at, duration_ms, steps FROM switches`
	args := []interface{}{}
	if service != "" {
		query += ` WHERE service = ?`
		args = append(args, service)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query switch history: %w", err)
	}
	defer rows.Close()

	records := []switcher.Record{}
	for rows.Next() {
		var (
			rec        switcher.Record
			outcome    string
			startedAt  int64
			durationMs int64
			steps      string
		)
		if err := rows.Scan(&rec.ID, &rec.Service, &outcome, &rec.Confirmed, &rec.Message, &startedAt, &durationMs, &steps); err != nil {
			return nil, fmt.Errorf("failed to scan switch record: %w", err)
		}
		rec.Outcome = switcher.Outcome(outcome)
		rec.StartedAt = time.UnixMilli(startedAt)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal([]byte(steps), &rec.Steps); err != nil {
			log.Warn().Err(err).Str("switch", rec.ID).Msg("Corrupt step log in switch history")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats returns attempt counts by outcome.
func (s *Store) Stats(ctx context.Context) (map[switcher.Outcome]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, fmt.Errorf("history database not open")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM switches GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to query switch stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[switcher.Outcome]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		stats[switcher.Outcome(outcome)] = count
	}
	return stats, rows.Err()
}
