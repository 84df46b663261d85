// internal/store/store.go
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is how timestamps are stored; it sorts lexicographically.
const timeFormat = "2006-01-02 15:04:05"

const schema = `
CREATE TABLE IF NOT EXISTS job_logs (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    printer_addr   TEXT NOT NULL,
    job_id         TEXT NOT NULL DEFAULT '',
    account_job_id TEXT NOT NULL DEFAULT '',
    mode           TEXT NOT NULL DEFAULT '',
    user_name      TEXT NOT NULL DEFAULT '',
    login_name     TEXT NOT NULL DEFAULT '',
    computer_name  TEXT NOT NULL DEFAULT '',
    start_time     TEXT NOT NULL,
    end_time       TEXT NOT NULL DEFAULT '',
    bw_pages       INTEGER NOT NULL DEFAULT 0,
    color_pages    INTEGER NOT NULL DEFAULT 0,
    total_pages    INTEGER NOT NULL DEFAULT 0,
    file_name      TEXT NOT NULL DEFAULT '',
    scan_type      TEXT NOT NULL DEFAULT '',
    destination    TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    UNIQUE (printer_addr, job_id, start_time)
);
CREATE INDEX IF NOT EXISTS idx_job_logs_start ON job_logs(start_time);
CREATE INDEX IF NOT EXISTS idx_job_logs_user ON job_logs(user_name, login_name);

CREATE TABLE IF NOT EXISTS user_counts (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    printer_addr  TEXT NOT NULL,
    user_name     TEXT NOT NULL DEFAULT '',
    print_bw      INTEGER NOT NULL DEFAULT 0,
    print_color   INTEGER NOT NULL DEFAULT 0,
    copy_bw       INTEGER NOT NULL DEFAULT 0,
    copy_color    INTEGER NOT NULL DEFAULT 0,
    other_usage   INTEGER NOT NULL DEFAULT 0,
    total_pages   INTEGER NOT NULL DEFAULT 0,
    snapshot_time TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_counts_latest ON user_counts(printer_addr, snapshot_time);

CREATE TABLE IF NOT EXISTS update_logs (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id         TEXT NOT NULL DEFAULT '',
    trigger_source TEXT NOT NULL,
    status         TEXT NOT NULL,
    start_time     TEXT NOT NULL,
    end_time       TEXT NOT NULL DEFAULT '',
    message        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_update_logs_start ON update_logs(start_time);
`

// Store is the sqlite-backed persistence layer: job logs keyed by
// (printer, job id, start time), user-count snapshot history, and the
// run audit trail.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// WAL keeps report queries readable while a run is ingesting.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeFormat)
}

func parseStoredTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(timeFormat, v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
