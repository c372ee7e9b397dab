// Package sqlite is the persistent domain.Store, backed by a single SQLite
// file through the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "greencredits.db"

// DB wraps the SQL handle. All methods are safe for concurrent use.
type DB struct {
	db   *sql.DB
	path string
}

// Open creates dir if needed, opens dir/greencredits.db and applies
// migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dir, FileName)

	// Immediate transactions take the write lock at BEGIN, so another
	// process opening the same file waits on busy_timeout instead of
	// failing mid-transaction.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection keeps ledger commits
	// strictly ordered.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB, path: path}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close releases the underlying handle.
func (db *DB) Close() error { return db.db.Close() }

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'citizen',
			created_at    TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_accounts (
			user_id           TEXT PRIMARY KEY,
			total_credits     INTEGER NOT NULL DEFAULT 0,
			available_credits INTEGER NOT NULL DEFAULT 0,
			redeemed          INTEGER NOT NULL DEFAULT 0,
			report_count      INTEGER NOT NULL DEFAULT 0,
			gps_report_count  INTEGER NOT NULL DEFAULT 0,
			streak            INTEGER NOT NULL DEFAULT 0,
			last_activity     TEXT NOT NULL DEFAULT '',
			multiplier        REAL NOT NULL DEFAULT 1.0,
			CHECK (available_credits = total_credits - redeemed),
			CHECK (available_credits >= 0)
		)`,

		// Append-only: rows are never updated or deleted.
		`CREATE TABLE IF NOT EXISTS credit_transactions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT NOT NULL,
			action      TEXT NOT NULL,
			amount      INTEGER NOT NULL,
			description TEXT NOT NULL,
			report_id   INTEGER,
			reward_id   TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user ON credit_transactions(user_id, id)`,

		`CREATE TABLE IF NOT EXISTS user_badges (
			user_id     TEXT NOT NULL,
			badge_key   TEXT NOT NULL,
			name        TEXT NOT NULL,
			icon        TEXT NOT NULL,
			description TEXT NOT NULL,
			earned_at   TEXT NOT NULL,
			PRIMARY KEY (user_id, badge_key)
		)`,

		`CREATE TABLE IF NOT EXISTS reports (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id         TEXT NOT NULL,
			reporter_name   TEXT NOT NULL DEFAULT '',
			reporter_email  TEXT NOT NULL DEFAULT '',
			description     TEXT NOT NULL DEFAULT '',
			address         TEXT NOT NULL DEFAULT '',
			lat             REAL,
			lng             REAL,
			photo_url       TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT 'Pending',
			disposal_method TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_user ON reports(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status)`,
	}
}

// ─── Time Encoding ──────────────────────────────────────────────────────────

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
