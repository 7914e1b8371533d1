package index

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by every operation except Initialize
	// while the index is not Ready, including after Close
	ErrNotInitialized = errors.New("index not initialized")

	// ErrClosed is returned by Initialize on a closed index
	ErrClosed = errors.New("index closed")

	// ErrNotFound is returned when an artifact is not in the index
	ErrNotFound = errors.New("artifact not found in index")
)

// InitError is a fatal failure while bringing the index up. The index is
// left Uninitialized.
type InitError struct {
	Path  string
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize index %q (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// OpError is an operational failure of a single index operation. The index
// stays Ready and the caller may retry.
type OpError struct {
	Op         string
	ArtifactID string
	Err        error
}

func (e *OpError) Error() string {
	if e.ArtifactID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ArtifactID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
