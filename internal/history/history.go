// Package history records every request the viewer served in a local
// SQLite database so past table queries and edits can be browsed again.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sadopc/dbviewer/internal/config"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS history (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	command       TEXT NOT NULL,
	target        TEXT,
	adapter       TEXT,
	database_name TEXT,
	executed_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
	duration_ms   INTEGER,
	row_count     INTEGER,
	is_error      BOOLEAN DEFAULT FALSE
)`

const selectColumns = `SELECT id, command, target, adapter, database_name, executed_at, duration_ms, row_count, is_error
	FROM history`

// Entry is one served request. Target holds the table name or the SELECT
// text the request ran against.
type Entry struct {
	ID         int64
	Command    string
	Target     string
	Adapter    string
	Database   string
	ExecutedAt time.Time
	DurationMS int64
	RowCount   int64
	IsError    bool
}

// History provides SQLite-backed request history storage.
type History struct {
	db *sql.DB
}

// New opens (or creates) the history database at ConfigDir()/history.db.
func New() (*History, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("history: config dir: %w", err)
	}
	return Open(filepath.Join(dir, "history.db"))
}

// Open opens (or creates) a history database at path and ensures the schema
// exists.
func Open(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}

	return &History{db: db}, nil
}

// Add inserts a new history entry. A zero ExecutedAt is stamped with the
// current time.
func (h *History) Add(e Entry) error {
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}
	_, err := h.db.Exec(
		`INSERT INTO history (command, target, adapter, database_name, executed_at, duration_ms, row_count, is_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Command,
		e.Target,
		e.Adapter,
		e.Database,
		e.ExecutedAt,
		e.DurationMS,
		e.RowCount,
		e.IsError,
	)
	if err != nil {
		return fmt.Errorf("history add: %w", err)
	}
	return nil
}

// Search returns entries whose target matches the SQL LIKE pattern, most
// recent first.
func (h *History) Search(pattern string, limit int) ([]Entry, error) {
	rows, err := h.db.Query(selectColumns+`
		 WHERE target LIKE ?
		 ORDER BY executed_at DESC, id DESC
		 LIMIT ?`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Recent returns the most recent entries, limited to limit rows.
func (h *History) Recent(limit int) ([]Entry, error) {
	rows, err := h.db.Query(selectColumns+`
		 ORDER BY executed_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Clear deletes all history entries.
func (h *History) Clear() error {
	if _, err := h.db.Exec(`DELETE FROM history`); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e      Entry
			target sql.NullString
			adpt   sql.NullString
			dbName sql.NullString
		)
		if err := rows.Scan(
			&e.ID,
			&e.Command,
			&target,
			&adpt,
			&dbName,
			&e.ExecutedAt,
			&e.DurationMS,
			&e.RowCount,
			&e.IsError,
		); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		e.Target, e.Adapter, e.Database = target.String, adpt.String, dbName.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return entries, nil
}
