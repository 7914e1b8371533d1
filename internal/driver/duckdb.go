//go:build duckdb
// +build duckdb

package driver

// Compiled with the duckdb tag (requires CGO). Adds the analytical backend.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "duckdb" ./...

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	_ "github.com/marcboeker/go-duckdb"
)

func init() {
	register(DialectDuckDB, NewDuckDB)
}

// NewDuckDB returns the client for the analytical backend. DuckDB has no
// triggers, so the full-text shadow table is dual-written; cosine similarity
// is computed natively with array_cosine_similarity.
func NewDuckDB() Client {
	return &engine{
		dialect:    DialectDuckDB,
		driverName: "duckdb",
		quote:      '"',
		features: Features{
			Triggers:     false,
			NativeVector: true,
			Extensions:   []string{"json", "fts", "vss"},
		},
		dsn:       duckdbDSN,
		onOpen:    duckdbOnOpen,
		normalize: duckdbNormalize,
	}
}

func duckdbDSN(path string) string {
	// An empty DSN opens an in-memory database
	return path
}

func duckdbOnOpen(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "SET threads TO 1"); err != nil {
		return fmt.Errorf("failed to limit threads: %w", err)
	}
	return nil
}

// duckdbNormalize flattens driver-specific types: HUGEINTs and nested
// LIST/STRUCT values.
func duckdbNormalize(v any, dbType string) any {
	switch t := v.(type) {
	case *big.Int:
		if t.IsInt64() {
			return t.Int64()
		}
		return t.String()
	case []byte:
		if dbType == "BLOB" {
			return t
		}
		return string(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = duckdbNormalize(t[i], "")
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = duckdbNormalize(val, "")
		}
		return out
	default:
		return v
	}
}
