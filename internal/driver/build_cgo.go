//go:build sqlite_vec && !purego
// +build sqlite_vec,!purego

package driver

// Compiled with CGO and the sqlite_vec tag. The SQLite backend then runs on
// mattn/go-sqlite3 with the sqlite-vec extension registered, so vector search
// uses vec_distance_cosine inside the engine.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec,sqlite_fts5" ./...

import (
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// sqliteDriverName is the database/sql driver backing DialectSQLite
	sqliteDriverName = "sqlite3"

	// SQLiteVectorExtension reports whether vec_distance_cosine is available
	SQLiteVectorExtension = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

func init() {
	// Registers vec0 and the vec_* scalar functions on every new connection.
	sqlite_vec.Auto()
}
