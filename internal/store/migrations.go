package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "memories: records with embeddings",
		SQL: `
CREATE TABLE memories (
    id          TEXT PRIMARY KEY,
    text        TEXT NOT NULL,

    -- little-endian float32, dimensions * 4 bytes
    embedding   BLOB,
    model       TEXT NOT NULL DEFAULT '',
    dimensions  INTEGER NOT NULL DEFAULT 0,

    metadata    TEXT NOT NULL DEFAULT '{}',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE INDEX idx_memories_created ON memories(created_at DESC, id DESC);
`,
	},
}

const schemaVersionsDDL = `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    description TEXT NOT NULL,
    applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
)`

// migrate applies every migration newer than the recorded schema version,
// each in its own transaction.
func (db *DB) migrate() error {
	if _, err := db.Exec(schemaVersionsDDL); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}
	current, err := db.SchemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := db.apply(m); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) apply(m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration, or 0 for a new
// database.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
