// Package schema creates and evolves the index database schema.
//
// Every statement uses IF NOT EXISTS semantics, so EnsureSchema can run on
// each start-up. Applied versions are recorded in schema_version and
// compared with semver to skip work already done.
package schema

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/dshills/artifact-index/internal/driver"
)

// EnsureSchema loads required extensions and applies pending migrations
func EnsureSchema(ctx context.Context, client driver.Client, conn *driver.Conn) error {
	if err := LoadExtensions(ctx, client, conn); err != nil {
		return err
	}
	return ApplyMigrations(ctx, client, conn)
}

// LoadExtensions loads the engine extensions the schema relies on.
// Extensions missing from the local cache are installed once, then loaded.
func LoadExtensions(ctx context.Context, client driver.Client, conn *driver.Conn) error {
	if client.Dialect() == driver.DialectSQLite {
		// JSON1 is compiled into both sqlite drivers; probe it so a build
		// without it fails here rather than on the first tag filter.
		probe := driver.Statement{SQL: `SELECT json('[]')`, Kind: driver.OpSelect}
		if _, err := client.Execute(ctx, conn.DB, probe); err != nil {
			return fmt.Errorf("sqlite json support missing: %w", err)
		}
		return nil
	}

	for _, ext := range client.Features().Extensions {
		load := driver.Statement{SQL: "LOAD " + ext, Kind: driver.OpRaw}
		if _, err := client.Execute(ctx, conn.DB, load); err == nil {
			continue
		}
		install := driver.Statement{SQL: "INSTALL " + ext, Kind: driver.OpRaw}
		if _, err := client.Execute(ctx, conn.DB, install); err != nil {
			return fmt.Errorf("failed to install extension %s: %w", ext, err)
		}
		if _, err := client.Execute(ctx, conn.DB, load); err != nil {
			return fmt.Errorf("failed to load extension %s after install: %w", ext, err)
		}
	}
	return nil
}

// CurrentVersion returns the highest applied schema version, or 0.0.0 on
// a fresh database. Only a missing schema_version table counts as fresh;
// any other read failure is returned.
func CurrentVersion(ctx context.Context, client driver.Client, conn *driver.Conn) (*semver.Version, error) {
	zero := semver.MustParse("0.0.0")

	exists, err := TableExists(ctx, client, conn, "schema_version")
	if err != nil {
		return nil, err
	}
	if !exists {
		return zero, nil
	}

	res, err := client.Execute(ctx, conn.DB, driver.Statement{
		SQL:  `SELECT version FROM schema_version`,
		Kind: driver.OpSelect,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	current := zero
	for _, v := range res.Strings("version") {
		parsed, err := semver.NewVersion(v)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", v, err)
		}
		if parsed.GreaterThan(current) {
			current = parsed
		}
	}
	return current, nil
}

// TableExists reports whether the named table is present in the catalog
func TableExists(ctx context.Context, client driver.Client, conn *driver.Conn, name string) (bool, error) {
	sql := `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	if client.Dialect() == driver.DialectDuckDB {
		sql = `SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?`
	}
	res, err := client.Execute(ctx, conn.DB, driver.Statement{
		SQL:      sql,
		Bindings: []any{name},
		Kind:     driver.OpCount,
	})
	if err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", name, err)
	}
	return res.Count > 0, nil
}

// ApplyMigrations runs all pending migrations in order
func ApplyMigrations(ctx context.Context, client driver.Client, conn *driver.Conn) error {
	currentVersion, err := CurrentVersion(ctx, client, conn)
	if err != nil {
		return err
	}

	for _, migration := range Migrations(client.Dialect()) {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		// Skip if already applied
		if !currentVersion.LessThan(migrationVersion) {
			continue
		}

		if err := execAll(ctx, client, conn, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		_, err = client.Execute(ctx, conn.DB, driver.Statement{
			SQL:      `INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
			Bindings: []any{migration.Version, time.Now().UTC().Format(time.RFC3339Nano)},
			Kind:     driver.OpInsert,
		})
		if err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// EnsureFullText creates the full-text shadow structure if it is missing
func EnsureFullText(ctx context.Context, client driver.Client, conn *driver.Conn) error {
	if err := execAll(ctx, client, conn, FullText(client.Dialect())); err != nil {
		return fmt.Errorf("failed to create full-text index: %w", err)
	}
	return nil
}

// EnsureVectorSchema creates the vector table for embeddings of the given
// dimension. A table built for another dimension is dropped and recreated:
// its rows are derived data and cannot be compared with the new model.
func EnsureVectorSchema(ctx context.Context, client driver.Client, conn *driver.Conn, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}

	stored, err := GetSetting(ctx, client, conn, "vector_dimension")
	if err != nil {
		return err
	}
	if stored != "" && stored != strconv.Itoa(dimension) {
		_, err := client.Execute(ctx, conn.DB, driver.Statement{
			SQL:  `DROP TABLE IF EXISTS ` + client.QuoteIdentifier(TableVectors),
			Kind: driver.OpRaw,
		})
		if err != nil {
			return fmt.Errorf("failed to drop vector table for dimension change: %w", err)
		}
	}

	var ddl string
	switch client.Dialect() {
	case driver.DialectDuckDB:
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS artifact_vectors (
			artifact_id VARCHAR PRIMARY KEY,
			title VARCHAR,
			description VARCHAR,
			embedding FLOAT[%d] NOT NULL,
			model VARCHAR,
			updated_at VARCHAR NOT NULL
		)`, dimension)
	default:
		ddl = `CREATE TABLE IF NOT EXISTS artifact_vectors (
			artifact_id TEXT PRIMARY KEY,
			title TEXT,
			description TEXT,
			embedding BLOB NOT NULL,
			dimension INTEGER NOT NULL,
			model TEXT,
			updated_at TEXT NOT NULL
		)`
	}

	if _, err := client.Execute(ctx, conn.DB, driver.Statement{SQL: ddl, Kind: driver.OpRaw}); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}
	return PutSetting(ctx, client, conn, "vector_dimension", strconv.Itoa(dimension))
}

// GetSetting reads a value from index_settings, "" when unset
func GetSetting(ctx context.Context, client driver.Client, conn *driver.Conn, key string) (string, error) {
	res, err := client.Execute(ctx, conn.DB, driver.Statement{
		SQL:      `SELECT value FROM index_settings WHERE key = ?`,
		Bindings: []any{key},
		Kind:     driver.OpSelect,
	})
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	if len(res.Rows) == 0 {
		return "", nil
	}
	return res.Rows[0].String("value"), nil
}

// PutSetting writes a value to index_settings
func PutSetting(ctx context.Context, client driver.Client, conn *driver.Conn, key, value string) error {
	_, err := client.Execute(ctx, conn.DB, driver.Statement{
		SQL:      `INSERT OR REPLACE INTO index_settings (key, value) VALUES (?, ?)`,
		Bindings: []any{key, value},
		Kind:     driver.OpInsert,
	})
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

func execAll(ctx context.Context, client driver.Client, conn *driver.Conn, stmts []string) error {
	for _, ddl := range stmts {
		if _, err := client.Execute(ctx, conn.DB, driver.Statement{SQL: ddl, Kind: driver.OpRaw}); err != nil {
			return err
		}
	}
	return nil
}
