package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed application, alias and email history store.
type Store struct {
	db *sql.DB
}

// Open creates the database file if needed, opens it and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return New(db), nil
}

// New wraps an already migrated connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunMigrations creates all necessary tables
func RunMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS applications (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		job_url TEXT NOT NULL DEFAULT '',
		ats_type TEXT NOT NULL DEFAULT 'generic',
		status TEXT NOT NULL DEFAULT 'pending',
		submitted_at DATETIME,
		confirmation_number TEXT NOT NULL DEFAULT '',
		confirmation_email TEXT NOT NULL DEFAULT '',
		steps_completed TEXT NOT NULL DEFAULT '[]',
		errors TEXT NOT NULL DEFAULT '[]',
		screenshot_paths TEXT NOT NULL DEFAULT '[]',
		last_email_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, job_id)
	);

	CREATE TABLE IF NOT EXISTS forwarding_aliases (
		address TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		day TEXT NOT NULL,
		real_email TEXT NOT NULL DEFAULT '',
		application_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		emails_received INTEGER NOT NULL DEFAULT 0,
		last_email_at DATETIME,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		UNIQUE (user_id, job_id, day)
	);

	CREATE TABLE IF NOT EXISTS email_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		from_address TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		detected_status TEXT NOT NULL,
		confirmation_number TEXT NOT NULL DEFAULT '',
		received_at DATETIME NOT NULL,
		FOREIGN KEY (user_id, job_id) REFERENCES applications(user_id, job_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status);
	CREATE INDEX IF NOT EXISTS idx_applications_ats ON applications(ats_type);
	CREATE INDEX IF NOT EXISTS idx_aliases_user ON forwarding_aliases(user_id);
	CREATE INDEX IF NOT EXISTS idx_aliases_status_expiry ON forwarding_aliases(status, expires_at);
	CREATE INDEX IF NOT EXISTS idx_email_history_app ON email_history(user_id, job_id);
	`

	_, err := db.Exec(schema)
	return err
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func decodeList(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}
