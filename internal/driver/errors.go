package driver

import "fmt"

// ExecError reports a statement the engine rejected: malformed SQL,
// constraint violations, type errors. It is never retried by this package.
type ExecError struct {
	Op  OpKind
	SQL string
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("driver: %s failed: %v", e.Op, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ConnError reports a failure to open, use or close the database handle
type ConnError struct {
	Path string
	Err  error
}

func (e *ConnError) Error() string {
	path := e.Path
	if path == "" {
		path = ":memory:"
	}
	return fmt.Sprintf("driver: connection %s: %v", path, e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}
