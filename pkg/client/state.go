package client

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// DisplayNameKey is the Config key holding the remembered display name.
const DisplayNameKey = "forum-username"

// State manages client-side persistent state
type State struct {
	db  *sql.DB
	dir string // Directory where state is stored
}

// OpenState opens or creates the client state database
func OpenState(path string) (*State, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create state directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open state database")
	}

	db.SetMaxOpenConns(1) // Client only needs one connection
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to set busy timeout")
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	return &State{db: db, dir: dir}, nil
}

// migrations are applied in order; the index+1 is the schema version
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS Config (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT 0
	)`,
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "read schema version")
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return errors.Wrap(err, "begin migration")
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "migration %d", i+1)
		}
		// PRAGMA does not accept bound parameters
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "set schema version %d", i+1)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit migration %d", i+1)
		}
	}
	return nil
}

// Close closes the state database
func (s *State) Close() error {
	return s.db.Close()
}

// GetConfig retrieves a configuration value
func (s *State) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM Config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig stores a configuration value
func (s *State) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO Config (key, value, updated_at) VALUES (?, ?, ?)
	`, key, value, time.Now().Unix())
	return err
}

// GetDisplayName returns the remembered display name, or "" if none
func (s *State) GetDisplayName() string {
	name, _ := s.GetConfig(DisplayNameKey)
	return name
}

// SetDisplayName remembers the display name across sessions
func (s *State) SetDisplayName(name string) error {
	return s.SetConfig(DisplayNameKey, name)
}

// GetStateDir returns the directory where state is stored
func (s *State) GetStateDir() string {
	return s.dir
}
