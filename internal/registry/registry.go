// Package registry maps database file paths to their single live connection.
//
// A Registry is created once at application start and torn down with
// CloseAll at shutdown. Tests create their own instances, so there is no
// package-level state.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dshills/artifact-index/internal/driver"
)

// Registry guarantees at most one open connection per path
type Registry struct {
	client driver.Client

	mu    sync.Mutex
	conns map[string]*driver.Conn
}

// New creates an empty registry whose connections are opened by client
func New(client driver.Client) *Registry {
	return &Registry{
		client: client,
		conns:  make(map[string]*driver.Conn),
	}
}

// Client returns the driver used for every connection in the registry
func (r *Registry) Client() driver.Client {
	return r.client
}

// key normalizes a path so "a/../b.db" and "b.db" share an entry.
// The empty path (memory database) is its own key.
func key(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	return abs, nil
}

// Create returns the connection registered for path, opening it first if
// needed. The parent directory is created on demand.
func (r *Registry) Create(ctx context.Context, path string) (*driver.Conn, error) {
	k, err := key(path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[k]; ok && !conn.Closed() {
		return conn, nil
	}

	if k != "" {
		if err := os.MkdirAll(filepath.Dir(k), 0o755); err != nil {
			return nil, &driver.ConnError{Path: k, Err: fmt.Errorf("create parent directory: %w", err)}
		}
	}

	conn, err := r.client.AcquireConnection(ctx, k)
	if err != nil {
		return nil, err
	}
	r.conns[k] = conn
	return conn, nil
}

// Get looks up the connection for path without creating one
func (r *Registry) Get(path string) (*driver.Conn, bool) {
	k, err := key(path)
	if err != nil {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[k]
	if !ok || conn.Closed() {
		return nil, false
	}
	return conn, true
}

// Close destroys and deregisters the connection for path. Closing an
// unknown path is a no-op.
func (r *Registry) Close(path string) error {
	k, err := key(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	conn, ok := r.conns[k]
	delete(r.conns, k)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return r.client.DestroyConnection(conn)
}

// Len returns the number of registered connections
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll destroys every registered connection
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*driver.Conn)
	r.mu.Unlock()

	var errs []error
	for _, conn := range conns {
		if err := r.client.DestroyConnection(conn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
