package indexer

import "sync/atomic"

// RebuildLock is a non-blocking lock: a second rebuild is refused instead
// of queued behind the first.
type RebuildLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *RebuildLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *RebuildLock) Release() {
	l.state.Store(0)
}

// Held reports whether a rebuild is running
func (l *RebuildLock) Held() bool {
	return l.state.Load() == 1
}
