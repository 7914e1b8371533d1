package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func init() {
	register(DialectSQLite, NewSQLite)
}

// NewSQLite returns the client for the lightweight relational backend.
// FTS5 triggers keep the shadow table in sync; vector similarity is native
// only when built with the sqlite_vec tag.
func NewSQLite() Client {
	return &engine{
		dialect:    DialectSQLite,
		driverName: sqliteDriverName,
		quote:      '"',
		features: Features{
			Triggers:     true,
			NativeVector: SQLiteVectorExtension,
		},
		dsn:       sqliteDSN,
		onOpen:    sqliteOnOpen,
		normalize: sqliteNormalize,
	}
}

func sqliteDSN(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

// sqliteOnOpen applies connection settings
func sqliteOnOpen(ctx context.Context, db *sql.DB) error {
	// Enable WAL mode for better read concurrency on file databases
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return nil
}

// sqliteNormalize turns TEXT columns returned as bytes into strings and
// leaves BLOBs alone.
func sqliteNormalize(v any, dbType string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if strings.EqualFold(dbType, "BLOB") {
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}
	return string(b)
}
