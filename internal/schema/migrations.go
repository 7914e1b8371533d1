package schema

import "github.com/dshills/artifact-index/internal/driver"

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"

	// Table names shared by the engines built on top of the schema
	TableIndex    = "artifact_metadata_index"
	TableLinks    = "artifact_links"
	TableFullText = "artifact_metadata_fts"
	TableVectors  = "artifact_vectors"
	TableSettings = "index_settings"
)

// Migration represents a database schema migration. Each statement is
// executed on its own so trigger bodies can contain semicolons.
type Migration struct {
	Version string
	Up      []string
}

// Migrations returns the ordered migrations for a dialect
func Migrations(d driver.Dialect) []Migration {
	switch d {
	case driver.DialectDuckDB:
		return []Migration{
			{Version: "1.0.0", Up: duckdbCoreUp},
			{Version: "1.1.0", Up: duckdbFullTextUp},
		}
	default:
		return []Migration{
			{Version: "1.0.0", Up: sqliteCoreUp},
			{Version: "1.1.0", Up: sqliteFullTextUp},
		}
	}
}

// FullText returns the DDL that creates the full-text shadow structure
func FullText(d driver.Dialect) []string {
	if d == driver.DialectDuckDB {
		return duckdbFullTextUp
	}
	return sqliteFullTextUp
}

var sqliteCoreUp = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS index_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS artifact_metadata_index (
		id TEXT PRIMARY KEY,
		artifact_id TEXT NOT NULL,
		vault_id TEXT NOT NULL,
		vault_name TEXT,
		type TEXT,
		category TEXT,
		tags TEXT NOT NULL DEFAULT '[]',
		links TEXT NOT NULL DEFAULT '[]',
		related_artifacts TEXT NOT NULL DEFAULT '[]',
		related_code_paths TEXT NOT NULL DEFAULT '[]',
		related_components TEXT NOT NULL DEFAULT '[]',
		author TEXT,
		owner TEXT,
		reviewers TEXT NOT NULL DEFAULT '[]',
		properties TEXT NOT NULL DEFAULT '{}',
		created_at TEXT,
		updated_at TEXT,
		metadata_file_path TEXT NOT NULL,
		title TEXT,
		description TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metadata_artifact_id ON artifact_metadata_index(artifact_id)`,
	`CREATE INDEX IF NOT EXISTS idx_metadata_vault_id ON artifact_metadata_index(vault_id)`,
	`CREATE INDEX IF NOT EXISTS idx_metadata_type ON artifact_metadata_index(type)`,
	`CREATE INDEX IF NOT EXISTS idx_metadata_category ON artifact_metadata_index(category)`,

	`CREATE TABLE IF NOT EXISTS artifact_links (
		id TEXT PRIMARY KEY,
		source_artifact_id TEXT NOT NULL,
		target_type TEXT NOT NULL CHECK (target_type IN ('artifact', 'file', 'external')),
		target_id TEXT,
		target_path TEXT,
		target_url TEXT,
		link_type TEXT NOT NULL,
		strength REAL,
		line_start INTEGER,
		line_end INTEGER,
		vault_id TEXT NOT NULL,
		created_at TEXT,
		updated_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_source ON artifact_links(source_artifact_id)`,
	`CREATE INDEX IF NOT EXISTS idx_links_target_path ON artifact_links(target_path)`,
	`CREATE INDEX IF NOT EXISTS idx_links_type ON artifact_links(link_type)`,
	`CREATE INDEX IF NOT EXISTS idx_links_vault ON artifact_links(vault_id)`,
}

// The FTS5 table is an external-content table over the primary index,
// joined by rowid. Triggers use the FTS5 'delete' command so the shadow
// table never holds stale tokens.
var sqliteFullTextUp = []string{
	`CREATE VIRTUAL TABLE IF NOT EXISTS artifact_metadata_fts USING fts5(
		title, description, artifact_id UNINDEXED,
		content='artifact_metadata_index',
		content_rowid='rowid'
	)`,

	`CREATE TRIGGER IF NOT EXISTS artifact_metadata_ai AFTER INSERT ON artifact_metadata_index BEGIN
		INSERT INTO artifact_metadata_fts(rowid, title, description, artifact_id)
		VALUES (new.rowid, new.title, new.description, new.artifact_id);
	END`,

	`CREATE TRIGGER IF NOT EXISTS artifact_metadata_ad AFTER DELETE ON artifact_metadata_index BEGIN
		INSERT INTO artifact_metadata_fts(artifact_metadata_fts, rowid, title, description, artifact_id)
		VALUES ('delete', old.rowid, old.title, old.description, old.artifact_id);
	END`,

	`CREATE TRIGGER IF NOT EXISTS artifact_metadata_au AFTER UPDATE ON artifact_metadata_index BEGIN
		INSERT INTO artifact_metadata_fts(artifact_metadata_fts, rowid, title, description, artifact_id)
		VALUES ('delete', old.rowid, old.title, old.description, old.artifact_id);
		INSERT INTO artifact_metadata_fts(rowid, title, description, artifact_id)
		VALUES (new.rowid, new.title, new.description, new.artifact_id);
	END`,
}

// DuckDB refuses ON CONFLICT updates of columns covered by an ART index, so
// the primary table relies on zone maps for its filter columns.
var duckdbCoreUp = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version VARCHAR PRIMARY KEY,
		applied_at VARCHAR NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS index_settings (
		key VARCHAR PRIMARY KEY,
		value VARCHAR NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS artifact_metadata_index (
		id VARCHAR PRIMARY KEY,
		artifact_id VARCHAR NOT NULL,
		vault_id VARCHAR NOT NULL,
		vault_name VARCHAR,
		type VARCHAR,
		category VARCHAR,
		tags JSON NOT NULL DEFAULT '[]',
		links JSON NOT NULL DEFAULT '[]',
		related_artifacts JSON NOT NULL DEFAULT '[]',
		related_code_paths JSON NOT NULL DEFAULT '[]',
		related_components JSON NOT NULL DEFAULT '[]',
		author VARCHAR,
		owner VARCHAR,
		reviewers JSON NOT NULL DEFAULT '[]',
		properties JSON NOT NULL DEFAULT '{}',
		created_at VARCHAR,
		updated_at VARCHAR,
		metadata_file_path VARCHAR NOT NULL,
		title VARCHAR,
		description VARCHAR
	)`,

	`CREATE TABLE IF NOT EXISTS artifact_links (
		id VARCHAR PRIMARY KEY,
		source_artifact_id VARCHAR NOT NULL,
		target_type VARCHAR NOT NULL CHECK (target_type IN ('artifact', 'file', 'external')),
		target_id VARCHAR,
		target_path VARCHAR,
		target_url VARCHAR,
		link_type VARCHAR NOT NULL,
		strength DOUBLE,
		line_start INTEGER,
		line_end INTEGER,
		vault_id VARCHAR NOT NULL,
		created_at VARCHAR,
		updated_at VARCHAR
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_source ON artifact_links(source_artifact_id)`,
	`CREATE INDEX IF NOT EXISTS idx_links_target_path ON artifact_links(target_path)`,
	`CREATE INDEX IF NOT EXISTS idx_links_type ON artifact_links(link_type)`,
	`CREATE INDEX IF NOT EXISTS idx_links_vault ON artifact_links(vault_id)`,
}

// DuckDB has no triggers: the shadow table is a plain table written in the
// same transaction as the primary row, and the BM25 index over it is built
// with PRAGMA create_fts_index by the full-text engine.
var duckdbFullTextUp = []string{
	`CREATE TABLE IF NOT EXISTS artifact_metadata_fts (
		id VARCHAR NOT NULL,
		artifact_id VARCHAR NOT NULL,
		title VARCHAR,
		description VARCHAR
	)`,
}
