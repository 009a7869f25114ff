// Package storage: SQLite schema for the generic key/value backend.
package storage

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schema stores every persisted record (episode, pattern, heuristic,
// relationship) as an opaque JSON blob under a namespaced key, matching the
// byte-oriented Backend contract of spec §6. An index on key alone suffices
// since SQLite's TEXT PRIMARY KEY is already ordered for prefix scans.
const schema = `
CREATE TABLE IF NOT EXISTS schema_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kv (
    key   TEXT PRIMARY KEY,
    value BLOB NOT NULL
);
`

func initializeSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT value FROM schema_metadata WHERE key = 'version'").Scan(&currentVersion)
	switch {
	case err == sql.ErrNoRows:
		if _, err := db.Exec("INSERT INTO schema_metadata (key, value) VALUES ('version', ?)", schemaVersion); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to query schema version: %w", err)
	case currentVersion != schemaVersion:
		return fmt.Errorf("schema version mismatch: expected %d, got %d", schemaVersion, currentVersion)
	}

	return nil
}

// configureSQLite sets pragmas for performance and crash safety.
func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 268435456",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}
