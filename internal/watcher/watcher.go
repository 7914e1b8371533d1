// Package watcher keeps the index current while metadata files change.
//
// It watches a vault directory tree with fsnotify, debounces bursts of
// events per file, and applies each settled change through a Handler:
// writes and creates re-sync the file, removes and renames drop the
// artifact that was synced from it.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dshills/artifact-index/internal/logging"
	"github.com/dshills/artifact-index/internal/metadata"
)

// DefaultDebounce is how long a file must be quiet before it is applied
const DefaultDebounce = 200 * time.Millisecond

// ErrWatcherFailed indicates the filesystem watcher failed to initialize
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Handler applies file changes to the index
type Handler interface {
	SyncFile(ctx context.Context, path string) error
	RemoveFile(ctx context.Context, path string) (string, error)
}

// Op is the kind of change applied for a file
type Op int

const (
	OpSync Op = iota
	OpRemove
)

func (o Op) String() string {
	if o == OpRemove {
		return "remove"
	}
	return "sync"
}

// Event reports one applied change
type Event struct {
	Path       string
	Op         Op
	ArtifactID string // set for removals of a known file
	Err        error
	Timestamp  time.Time
}

// Options configures a Watcher
type Options struct {
	Debounce time.Duration
	Logger   *zap.Logger
	// OnChange runs after every batch of applied changes
	OnChange func()
}

// Watcher watches a vault root for metadata file changes
type Watcher struct {
	root    string
	handler Handler
	opts    Options
	logger  *zap.Logger

	watcher *fsnotify.Watcher
	events  chan Event
	stop    chan struct{}
	done    chan struct{}

	started atomic.Bool

	mu      sync.Mutex
	pending map[string]Op
}

// New creates a watcher for root. Call Start to begin watching.
func New(root string, handler Handler, opts Options) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving vault root: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		root:    root,
		handler: handler,
		opts:    opts,
		logger:  logging.OrNop(opts.Logger).Named("watcher"),
		watcher: fw,
		events:  make(chan Event, 64),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		pending: make(map[string]Op),
	}, nil
}

// Events returns applied changes. Events are dropped when nobody reads.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start registers the directory tree and begins processing in the
// background
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.started.Store(true)
	go w.processEvents(ctx)
	w.logger.Info("watching vault", zap.String("root", w.root))
	return nil
}

// Stop stops the watcher and waits for the event loop to exit
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
	if w.started.Load() {
		<-w.done
	}
}

// Done is closed when the event loop exits
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// addTree watches dir and every non-hidden directory below it
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.handleEvent(event) {
				timer.Reset(w.opts.Debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", zap.Error(err))
		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// handleEvent records a pending change. It returns true when something
// was queued.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", path), zap.Error(err))
			}
			return false
		}
	}

	if !metadata.IsMetadataFile(path) {
		return false
	}

	var op Op
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = OpRemove
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		op = OpSync
	default:
		return false
	}

	w.mu.Lock()
	w.pending[path] = op
	w.mu.Unlock()
	return true
}

// flush applies every pending change
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]Op)
	w.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	for path, op := range pending {
		ev := Event{Path: path, Op: op, Timestamp: time.Now()}
		switch op {
		case OpRemove:
			ev.ArtifactID, ev.Err = w.handler.RemoveFile(ctx, path)
		default:
			ev.Err = w.handler.SyncFile(ctx, path)
		}

		if ev.Err != nil {
			w.logger.Warn("failed to apply metadata change",
				zap.String("path", path),
				zap.Stringer("op", op),
				zap.Error(ev.Err))
		} else {
			w.logger.Debug("applied metadata change", zap.String("path", path), zap.Stringer("op", op))
		}

		select {
		case w.events <- ev:
		default:
		}
	}

	if w.opts.OnChange != nil {
		w.opts.OnChange()
	}
}
