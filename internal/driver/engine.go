package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// engine holds the logic shared by every dialect. Dialect-specific behavior
// is injected through the hook fields.
type engine struct {
	dialect    Dialect
	driverName string
	quote      byte
	features   Features

	// dsn maps a file path ("" for memory) to a driver DSN
	dsn func(path string) string
	// onOpen runs once per new connection, before it is handed out
	onOpen func(ctx context.Context, db *sql.DB) error
	// normalize converts native column values
	normalize normalizer
}

func (e *engine) Dialect() Dialect {
	return e.dialect
}

func (e *engine) Features() Features {
	return e.features
}

// PoolDefaults reports single-connection pooling: embedded engines accept
// exactly one writer.
func (e *engine) PoolDefaults() PoolConfig {
	return PoolConfig{Min: 1, Max: 1, PropagateCreateError: false}
}

func (e *engine) QuoteIdentifier(name string) string {
	return quoteIdentifier(name, e.quote)
}

func (e *engine) AcquireConnection(ctx context.Context, path string) (*Conn, error) {
	db, err := sql.Open(e.driverName, e.dsn(path))
	if err != nil {
		return nil, &ConnError{Path: path, Err: err}
	}

	pool := e.PoolDefaults()
	db.SetMaxOpenConns(pool.Max)
	db.SetMaxIdleConns(pool.Min)
	db.SetConnMaxLifetime(0)

	// sql.Open is lazy; force the file open so failures surface here
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnError{Path: path, Err: err}
	}

	if e.onOpen != nil {
		if err := e.onOpen(ctx, db); err != nil {
			_ = db.Close()
			return nil, &ConnError{Path: path, Err: err}
		}
	}

	return &Conn{Path: path, DB: db, dialect: e.dialect}, nil
}

func (e *engine) DestroyConnection(conn *Conn) error {
	if conn == nil {
		return nil
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return nil
	}
	conn.closed = true
	if err := conn.DB.Close(); err != nil {
		return &ConnError{Path: conn.Path, Err: err}
	}
	return nil
}

func (e *engine) Execute(ctx context.Context, q Querier, stmt Statement) (*Result, error) {
	if q == nil {
		return nil, &ConnError{Err: errors.New("no connection")}
	}

	if stmt.Kind.returnsRows() {
		rows, err := q.QueryContext(ctx, stmt.SQL, stmt.Bindings...)
		if err != nil {
			return nil, e.execError(stmt, err)
		}
		defer func() { _ = rows.Close() }()

		translated, err := translateRows(rows, e.normalize)
		if err != nil {
			return nil, e.execError(stmt, fmt.Errorf("read rows: %w", err))
		}
		out := &Result{Rows: translated}
		if stmt.Kind == OpCount {
			out.Count = translateCount(translated)
		}
		return out, nil
	}

	res, err := q.ExecContext(ctx, stmt.SQL, stmt.Bindings...)
	if err != nil {
		return nil, e.execError(stmt, err)
	}
	return translateExec(res, stmt.Kind), nil
}

// execError classifies a failure. A closed database is a connection
// problem, everything else is the statement's fault.
func (e *engine) execError(stmt Statement, err error) error {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) || isClosedDB(err) {
		return &ConnError{Err: err}
	}
	return &ExecError{Op: stmt.Kind, SQL: stmt.SQL, Err: err}
}

func isClosedDB(err error) bool {
	return err != nil && err.Error() == "sql: database is closed"
}
