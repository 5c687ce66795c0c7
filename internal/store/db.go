// Package store keeps friends and the sightings journal in SQLite.
// Uses WAL mode so the API can read while the journal writes.
package store

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the database at dir/state.db.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}

	dsn := filepath.Join(dir, "state.db") +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}

	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS friends (
			id       TEXT PRIMARY KEY,
			nickname TEXT NOT NULL DEFAULT '',
			added_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sightings (
			id         TEXT PRIMARY KEY,
			nickname   TEXT NOT NULL,
			first_seen INTEGER NOT NULL,
			last_seen  INTEGER NOT NULL,
			last_rssi  INTEGER NOT NULL,
			heading    INTEGER,
			count      INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sightings_seen ON sightings(last_seen)`,
	}
	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return errors.Wrapf(err, "exec %.40q", m)
		}
	}
	return nil
}
