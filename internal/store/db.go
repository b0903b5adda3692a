package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lazypower/memvault/internal/memory"
	_ "modernc.org/sqlite"
)

// DB is the durable record store, backed by SQLite.
type DB struct {
	*sql.DB
	Path string
}

var _ memory.Store = (*DB)(nil)

// DefaultDataDir returns ~/.memvault, the parent of every default path.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".memvault"), nil
}

// DefaultDBPath returns the default database path: ~/.memvault/memvault.db
func DefaultDBPath() (string, error) {
	dir, err := DefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "memvault.db"), nil
}

// Open opens (or creates) the SQLite database at path and brings its
// schema up to date.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(path, 0)
}

// OpenMemory opens a private in-memory database, used by tests and the
// volatile configuration.
func OpenMemory() (*DB, error) {
	// Every pooled connection to :memory: is a separate database.
	return open(":memory:", 1)
}

func open(path string, maxConns int) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
	}

	db := &DB{DB: sqlDB, Path: path}
	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA mmap_size=268435456", // 256MB
}

func (db *DB) configurePragmas() error {
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}
