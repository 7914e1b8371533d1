//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package driver

// Compiled without CGO or with the purego tag. The SQLite backend runs on
// modernc.org/sqlite, which ships FTS5 and JSON1 but no vector extension, so
// similarity is computed in Go.
//
// Build command:
//   CGO_ENABLED=0 go build -tags "purego" ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// sqliteDriverName is the database/sql driver backing DialectSQLite
	sqliteDriverName = "sqlite"

	// SQLiteVectorExtension reports whether vec_distance_cosine is available
	SQLiteVectorExtension = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
