// Package store persists the recent folder and per-root tree state in a
// sqlite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/justyntemme/filetree/internal/debug"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const recentFolderKey = "recent_folder"

type DB struct {
	conn *sql.DB
}

// Open initializes the database connection and schema
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// WAL mode allows simultaneous readers and writers
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}
	// Synchronous NORMAL is safe against app crashes, faster than FULL
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, err
	}

	settingsQuery := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.Exec(settingsQuery); err != nil {
		db.Close()
		return nil, err
	}

	// tree_state is a BLOB: encoded snapshots contain NUL separators
	sessionsQuery := `
	CREATE TABLE IF NOT EXISTS sessions (
		root TEXT PRIMARY KEY,
		tree_state BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(sessionsQuery); err != nil {
		db.Close()
		return nil, err
	}

	debug.Log(debug.STORE, "Open: %s", dbPath)
	return &DB{conn: db}, nil
}

// RecentFolder returns the last opened root, or "" if none is recorded.
func (d *DB) RecentFolder() (string, error) {
	path, _, err := d.setting(recentFolderKey)
	if err != nil {
		return "", fmt.Errorf("read recent folder: %w", err)
	}
	return path, nil
}

// SetRecentFolder records path as the last opened root. An empty path
// forgets it.
func (d *DB) SetRecentFolder(path string) error {
	var err error
	if path == "" {
		err = d.deleteSetting(recentFolderKey)
	} else {
		err = d.saveSetting(recentFolderKey, path)
	}
	if err != nil {
		return fmt.Errorf("save recent folder: %w", err)
	}
	debug.Log(debug.STORE, "SetRecentFolder: %q", path)
	return nil
}

func (d *DB) setting(key string) (string, bool, error) {
	var value string
	err := d.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (d *DB) saveSetting(key, value string) error {
	_, err := d.conn.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
	return err
}

func (d *DB) deleteSetting(key string) error {
	_, err := d.conn.Exec("DELETE FROM settings WHERE key = ?", key)
	return err
}

// TreeState returns the encoded tree state saved for root, or "".
func (d *DB) TreeState(root string) (string, error) {
	var state []byte
	err := d.conn.QueryRow("SELECT tree_state FROM sessions WHERE root = ?", root).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read tree state for %s: %w", root, err)
	}
	return string(state), nil
}

// SaveTreeState stores the encoded tree state for root. Empty state removes
// the row.
func (d *DB) SaveTreeState(root, state string) error {
	if state == "" {
		return d.ClearTreeState(root)
	}
	_, err := d.conn.Exec(
		"INSERT OR REPLACE INTO sessions (root, tree_state, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		root, []byte(state),
	)
	if err != nil {
		return fmt.Errorf("save tree state for %s: %w", root, err)
	}
	debug.Log(debug.STORE, "SaveTreeState: %s (%d bytes)", root, len(state))
	return nil
}

// ClearTreeState forgets the tree state saved for root.
func (d *DB) ClearTreeState(root string) error {
	if _, err := d.conn.Exec("DELETE FROM sessions WHERE root = ?", root); err != nil {
		return fmt.Errorf("clear tree state for %s: %w", root, err)
	}
	return nil
}

func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
