package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Dialect names an embedded engine the index can run on
type Dialect string

const (
	// DialectSQLite is the lightweight embedded relational engine
	DialectSQLite Dialect = "sqlite"
	// DialectDuckDB is the embedded analytical engine with vector support
	DialectDuckDB Dialect = "duckdb"
)

// ErrBackendUnavailable is returned when a dialect was not compiled into the binary
var ErrBackendUnavailable = errors.New("backend not available in this build")

// OpKind tells Execute what shape of result the caller expects
type OpKind int

const (
	OpSelect OpKind = iota
	OpInsert
	OpUpdate
	OpDelete
	OpCount
	OpRaw // DDL, pragmas, extension loading
)

func (k OpKind) String() string {
	switch k {
	case OpSelect:
		return "select"
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpCount:
		return "count"
	case OpRaw:
		return "raw"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// returnsRows reports whether the statement is expected to yield a row set
func (k OpKind) returnsRows() bool {
	return k == OpSelect || k == OpCount
}

// Statement is one SQL statement with positional bindings
type Statement struct {
	SQL      string
	Bindings []any
	Kind     OpKind
}

// PoolConfig describes the connection pool policy of a client
type PoolConfig struct {
	Min                  int
	Max                  int
	PropagateCreateError bool
}

// Features describes engine capabilities the upper layers branch on
type Features struct {
	// Triggers is true when the engine can keep the full-text shadow table
	// in sync by itself.
	Triggers bool
	// NativeVector is true when cosine similarity can be computed in SQL.
	NativeVector bool
	// Extensions lists the extensions the schema needs loaded.
	Extensions []string
}

// Querier is satisfied by *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Client is the contract a query layer needs to drive an embedded engine
// that has no native binding for it.
type Client interface {
	Dialect() Dialect
	Features() Features

	// AcquireConnection opens the database file read-write. An empty path
	// opens a memory-backed database.
	AcquireConnection(ctx context.Context, path string) (*Conn, error)
	// DestroyConnection releases the native handle held by conn.
	DestroyConnection(conn *Conn) error

	// Execute runs stmt against q and translates the native result.
	Execute(ctx context.Context, q Querier, stmt Statement) (*Result, error)

	QuoteIdentifier(name string) string
	PoolDefaults() PoolConfig
}

// Conn is one live session on a database file
type Conn struct {
	Path string
	DB   *sql.DB

	dialect Dialect
	mu      sync.Mutex
	closed  bool
}

// Dialect returns the engine the connection belongs to
func (c *Conn) Dialect() Dialect {
	return c.dialect
}

// Closed reports whether DestroyConnection already ran
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// BeginTx starts a transaction on the single pooled connection
func (c *Conn) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, &ConnError{Path: c.Path, Err: fmt.Errorf("begin transaction: %w", err)}
	}
	return tx, nil
}

type constructor func() Client

var (
	backendsMu sync.RWMutex
	backends   = map[Dialect]constructor{}
)

func register(d Dialect, fn constructor) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[d] = fn
}

// New returns the client for the given dialect
func New(d Dialect) (Client, error) {
	backendsMu.RLock()
	fn, ok := backends[d]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, d)
	}
	return fn(), nil
}

// Available lists the dialects compiled into this binary
func Available() []Dialect {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	out := make([]Dialect, 0, len(backends))
	for d := range backends {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// quoteIdentifier wraps each dot-separated part of name in q, doubling any
// embedded quote characters. A bare "*" is passed through.
func quoteIdentifier(name string, q byte) string {
	if name == "*" {
		return name
	}
	quote := string(q)
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "*" {
			continue
		}
		parts[i] = quote + strings.ReplaceAll(p, quote, quote+quote) + quote
	}
	return strings.Join(parts, ".")
}
