package knowledge

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the SQLite store.
const schemaV1 = `
-- Knowledge nodes. Name is the natural key shared with the external graph.
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL,
    description TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);

-- Immutable facts attached to entities. Re-asserting a fact is a no-op.
CREATE TABLE IF NOT EXISTS observations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    content TEXT NOT NULL,
    source TEXT,
    source_ref TEXT,
    confidence REAL DEFAULT 1.0,
    created_at TEXT NOT NULL,
    UNIQUE (entity_id, content)
);
CREATE INDEX IF NOT EXISTS idx_observations_entity ON observations(entity_id);

-- Directed typed edges, keyed by entity name (the natural key shared with
-- the external graph). Re-creating a triple updates strength.
CREATE TABLE IF NOT EXISTS relations (
    from_name TEXT NOT NULL REFERENCES entities(name) ON DELETE CASCADE,
    to_name TEXT NOT NULL REFERENCES entities(name) ON DELETE CASCADE,
    relation_type TEXT NOT NULL,
    strength REAL DEFAULT 1.0,
    created_at TEXT NOT NULL,
    PRIMARY KEY (from_name, to_name, relation_type)
);
CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_name);

-- Error/solution pairs keyed by normalized error pattern.
CREATE TABLE IF NOT EXISTS error_solutions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    error_pattern TEXT NOT NULL,
    error_message TEXT NOT NULL,
    error_type TEXT,
    file_pattern TEXT,
    solution_description TEXT NOT NULL,
    solution_code TEXT,
    solution_files TEXT,  -- JSON array
    solution_steps TEXT,  -- JSON array
    related_pattern TEXT,
    tags TEXT,            -- JSON array
    success_count INTEGER DEFAULT 0,
    fail_count INTEGER DEFAULT 0,
    commit_hash TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_error_solutions_pattern ON error_solutions(error_pattern);

-- Learned commits, idempotent on hash.
CREATE TABLE IF NOT EXISTS commits (
    hash TEXT PRIMARY KEY,
    message TEXT NOT NULL,
    commit_type TEXT,
    module TEXT,
    identity TEXT,
    author TEXT,
    files_changed TEXT,   -- JSON array
    insertions INTEGER DEFAULT 0,
    deletions INTEGER DEFAULT 0,
    has_metadata_block INTEGER DEFAULT 0,
    metadata_block TEXT,  -- JSON object
    is_breaking INTEGER DEFAULT 0,
    committed_at TEXT,
    learned_at TEXT NOT NULL
);

-- Reusable code patterns, merge-on-relearn.
CREATE TABLE IF NOT EXISTS code_patterns (
    name TEXT PRIMARY KEY,
    pattern_type TEXT,
    category TEXT,
    description TEXT,
    example_code TEXT,
    anti_pattern TEXT,
    anti_pattern_reason TEXT,
    related_files TEXT,   -- JSON array
    tags TEXT,            -- JSON array
    usage_count INTEGER DEFAULT 1,
    effectiveness_score REAL DEFAULT 0,
    source_commit TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Append-only audit log, one row per sync pass.
CREATE TABLE IF NOT EXISTS sync_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sync_kind TEXT NOT NULL,
    direction TEXT NOT NULL,
    counts TEXT,          -- JSON object of category -> count
    status TEXT NOT NULL,
    error_message TEXT,
    duration_ms INTEGER DEFAULT 0,
    graph_size INTEGER DEFAULT 0,
    synced_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_log_status ON sync_log(status, synced_at);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema initializes the database schema.
// It creates all tables and applies migrations as needed.
func InitSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion < SchemaVersion {
		if err := migrateSchema(ctx, db, currentVersion); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version from the database.
// Returns an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// createSchema creates the initial database schema.
func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// migrateSchema applies migrations from currentVersion to SchemaVersion.
func migrateSchema(ctx context.Context, db *sql.DB, currentVersion int) error {
	// Currently only one version, no migrations needed
	_ = currentVersion
	return nil
}

// ValidateIntegrity runs SQLite integrity checks on the database.
// It runs PRAGMA integrity_check and PRAGMA foreign_key_check.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}

	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()

	var fkErrors []string
	for fkRows.Next() {
		var table, rowid, parent, fkid string
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table, rowid, parent, fkid))
	}

	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}

	return nil
}
