package db

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

const (
	appName    = "tdl"
	fileName   = appName + ".db"
	memoryPath = ":memory:"
)

// ErrNotFound is returned when no task has the requested id
var ErrNotFound = errors.New("todo not found")

// DB is a task store on top of a SQLite handle
type DB struct {
	*sql.DB
}

// New opens the SQLite file at path, creating its directory, and applies the
// schema. ":memory:" gives a private in-process store.
func New(path string) (*DB, error) {
	inMemory := path == memoryPath
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if inMemory {
		// a second pooled connection would see a different database
		conn.SetMaxOpenConns(1)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &DB{conn}, nil
}

// dsn adds the driver options every connection needs
func dsn(path string) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", "5000")
	return path + "?" + q.Encode()
}

// DefaultPath is where the store lives when no path is configured
func DefaultPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// DataDir resolves $XDG_DATA_HOME/tdl, or ~/.local/share/tdl, and makes sure
// it exists.
func DataDir() (string, error) {
	base, ok := os.LookupEnv("XDG_DATA_HOME")
	if !ok || base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locating home directory: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}

	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// GetSetting returns the stored value for key, or "" if it was never set.
func (db *DB) GetSetting(key string) (string, error) {
	var v string
	switch err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v); {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		return "", err
	}
	return v, nil
}

func (db *DB) SetSetting(key, value string) error {
	const upsert = `INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	_, err := db.Exec(upsert, key, value)
	return err
}
