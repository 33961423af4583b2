package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/isdmx/dataquery/sandbox"
)

// timeLayout keeps a fixed width so created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    question    TEXT NOT NULL DEFAULT '',
    column_name TEXT NOT NULL DEFAULT '',
    script      TEXT NOT NULL,
    kind        TEXT NOT NULL,
    error_kind  TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '',
    missing     TEXT NOT NULL DEFAULT '',
    output      TEXT NOT NULL DEFAULT '',
    duration_ns INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`

// SQLiteStore implements Store backed by a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use MemoryPath for an in-memory database.
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// Each connection to :memory: is its own database
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&current); err != nil {
		current = 0
	}
	if current >= schemaVersion {
		return nil
	}

	if _, err := db.Exec(schemaV1); err != nil {
		return err
	}
	if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
	return err
}

// Record stores one entry
func (s *SQLiteStore) Record(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	o := entry.Outcome

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, question, column_name, script, kind, error_kind, detail, missing, output, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Question, entry.Column, entry.Script,
		o.Kind.String(), o.ErrorKind, o.Detail, o.Column, o.Output, int64(o.Duration),
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", entry.ID, err)
	}
	return nil
}

const selectRuns = `
	SELECT id, question, column_name, script, kind, error_kind, detail, missing, output, duration_ns, created_at
	FROM runs`

// List returns the most recent entries first
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, selectRuns+" ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Get returns the entry with the given id
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry, err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry      Entry
		kind       string
		durationNs int64
		createdAt  string
	)
	err := row.Scan(
		&entry.ID, &entry.Question, &entry.Column, &entry.Script,
		&kind, &entry.Outcome.ErrorKind, &entry.Outcome.Detail, &entry.Outcome.Column, &entry.Outcome.Output,
		&durationNs, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if entry.Outcome.Kind, err = sandbox.ParseKind(kind); err != nil {
		return nil, fmt.Errorf("run %s: %w", entry.ID, err)
	}
	entry.Outcome.Duration = time.Duration(durationNs)
	if entry.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("run %s: invalid created_at: %w", entry.ID, err)
	}
	return &entry, nil
}
