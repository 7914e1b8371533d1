// Package index is the runtime metadata index: a rebuildable cache of the
// canonical artifact metadata that answers structured filters, full-text
// queries and semantic similarity queries.
//
// An Index moves through Uninitialized, Initializing, Ready and Closed.
// Every operation other than Initialize requires Ready.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/artifact-index/internal/driver"
	"github.com/dshills/artifact-index/internal/embedder"
	"github.com/dshills/artifact-index/internal/fts"
	"github.com/dshills/artifact-index/internal/logging"
	"github.com/dshills/artifact-index/internal/metrics"
	"github.com/dshills/artifact-index/internal/registry"
	"github.com/dshills/artifact-index/internal/schema"
	"github.com/dshills/artifact-index/internal/vector"
	"github.com/dshills/artifact-index/pkg/types"
)

// DefaultLimit is the result cap for searches called without a limit
const DefaultLimit = 20

// State is the lifecycle position of an Index
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures an Index
type Options struct {
	// Path of the database file; empty opens an in-memory database
	Path string
	// Registry owning the connection. Nil creates a private registry for
	// Dialect.
	Registry *registry.Registry
	// Dialect selects the backend when Registry is nil (default sqlite)
	Dialect driver.Dialect
	// Loader produces the embedding model; nil disables semantic search
	Loader embedder.Loader
	// Dimension of stored vectors; 0 takes the model's dimension
	Dimension int
	// EmbedWorkers bounds concurrent embedding computations
	EmbedWorkers int
	Logger       *zap.Logger
}

// Index is the runtime metadata index over one database file
type Index struct {
	opts     Options
	registry *registry.Registry
	client   driver.Client
	logger   *zap.Logger

	mu    sync.RWMutex
	state State
	conn  *driver.Conn
	fts   *fts.Engine
	vec   *vector.Engine
}

// New creates an uninitialized index
func New(opts Options) (*Index, error) {
	reg := opts.Registry
	if reg == nil {
		dialect := opts.Dialect
		if dialect == "" {
			dialect = driver.DialectSQLite
		}
		client, err := driver.New(dialect)
		if err != nil {
			return nil, err
		}
		reg = registry.New(client)
	}

	return &Index{
		opts:     opts,
		registry: reg,
		client:   reg.Client(),
		logger:   logging.OrNop(opts.Logger).Named("index"),
		state:    StateUninitialized,
	}, nil
}

// State returns the current lifecycle state
func (ix *Index) State() State {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.state
}

// Path returns the database path the index was created for
func (ix *Index) Path() string {
	return ix.opts.Path
}

// Dialect returns the backend in use
func (ix *Index) Dialect() driver.Dialect {
	return ix.client.Dialect()
}

// Initialize opens the connection, applies the schema and brings up the
// search engines. On failure the index returns to Uninitialized and the
// error is an *InitError. Calling it on a Ready index is a no-op.
func (ix *Index) Initialize(ctx context.Context) (err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	switch ix.state {
	case StateReady:
		return nil
	case StateClosed:
		return &InitError{Path: ix.opts.Path, Stage: "state", Err: ErrClosed}
	}

	start := time.Now()
	defer func() { metrics.Observe("initialize", start, err) }()

	ix.state = StateInitializing
	_, existed := ix.registry.Get(ix.opts.Path)

	fail := func(stage string, cause error) error {
		if !existed {
			_ = ix.registry.Close(ix.opts.Path)
		}
		ix.conn, ix.fts, ix.vec = nil, nil, nil
		ix.state = StateUninitialized
		ix.logger.Error("index initialization failed",
			zap.String("path", ix.opts.Path),
			zap.String("stage", stage),
			zap.Error(cause))
		return &InitError{Path: ix.opts.Path, Stage: stage, Err: cause}
	}

	conn, err := ix.registry.Create(ctx, ix.opts.Path)
	if err != nil {
		return fail("connect", err)
	}
	ix.conn = conn

	if err := schema.EnsureSchema(ctx, ix.client, conn); err != nil {
		return fail("schema", err)
	}

	ix.fts = fts.New(ix.client, conn, ix.opts.Logger)
	if err := ix.fts.Initialize(ctx); err != nil {
		return fail("fulltext", err)
	}

	ix.vec = vector.New(ix.client, conn, vector.Options{
		Loader:    ix.opts.Loader,
		Dimension: ix.opts.Dimension,
		Workers:   ix.opts.EmbedWorkers,
		Logger:    ix.opts.Logger,
	})
	if err := ix.vec.Initialize(ctx); err != nil {
		return fail("vector", err)
	}

	ix.state = StateReady
	ix.logger.Info("index ready",
		zap.String("path", ix.opts.Path),
		zap.String("backend", string(ix.client.Dialect())),
		zap.Bool("embeddings", ix.vec.Enabled()))
	return nil
}

// Close releases the embedding model and the connection. Subsequent
// operations return ErrNotInitialized.
func (ix *Index) Close(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.state == StateClosed {
		return nil
	}
	wasOpen := ix.state == StateReady
	ix.state = StateClosed
	if !wasOpen {
		return nil
	}

	var errs []error
	if err := ix.vec.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := ix.registry.Close(ix.opts.Path); err != nil {
		errs = append(errs, err)
	}
	ix.conn, ix.fts, ix.vec = nil, nil, nil
	ix.logger.Info("index closed", zap.String("path", ix.opts.Path))
	return errors.Join(errs...)
}

// handles is the snapshot of engine pointers an operation works with
type handles struct {
	conn *driver.Conn
	fts  *fts.Engine
	vec  *vector.Engine
}

func (ix *Index) ready() (handles, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.state != StateReady {
		return handles{}, ErrNotInitialized
	}
	return handles{conn: ix.conn, fts: ix.fts, vec: ix.vec}, nil
}

// SyncFromYaml upserts the index row for md.ID. When both title and
// description are given and non-blank the artifact's vector is refreshed as
// well; an embedding failure is logged and counted but does not undo the
// upsert.
func (ix *Index) SyncFromYaml(ctx context.Context, md *types.ArtifactMetadata, metadataFilePath string, title, description *string) (err error) {
	h, err := ix.ready()
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() { metrics.Observe("sync", start, err) }()

	if err := md.Validate(); err != nil {
		return &OpError{Op: "sync", Err: err}
	}
	if metadataFilePath == "" {
		return &OpError{Op: "sync", ArtifactID: md.ArtifactID, Err: fmt.Errorf("%w: metadata file path is required", types.ErrInvalidMetadata)}
	}

	row, err := encodeRow(md, metadataFilePath, title, description)
	if err != nil {
		return &OpError{Op: "sync", ArtifactID: md.ArtifactID, Err: err}
	}

	if err := ix.upsertRow(ctx, h, row); err != nil {
		return &OpError{Op: "sync", ArtifactID: md.ArtifactID, Err: err}
	}

	if title == nil || description == nil {
		return nil
	}
	if !hasText(title) || !hasText(description) {
		// Nothing to embed; a vector of the previous text would go stale.
		if verr := h.vec.RemoveVector(ctx, h.conn.DB, md.ArtifactID); verr != nil {
			ix.logger.Warn("failed to drop artifact embedding",
				zap.String("artifact_id", md.ArtifactID),
				zap.Error(verr))
		}
		return nil
	}
	if verr := h.vec.UpsertVector(ctx, md.ArtifactID, *title, *description); verr != nil {
		ix.logger.Warn("failed to update artifact embedding",
			zap.String("artifact_id", md.ArtifactID),
			zap.Error(verr))
		metrics.EmbeddingFailuresTotal.Inc()
	}
	return nil
}

func hasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// upsertRow writes the primary row and its full-text shadow in one
// transaction. Both backends update in place on conflict: DuckDB rejects a
// delete and re-insert of the same key within a transaction.
func (ix *Index) upsertRow(ctx context.Context, h handles, row indexRow) error {
	tx, err := h.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	previous, err := ix.client.Execute(ctx, tx, driver.Statement{
		SQL:      `SELECT artifact_id FROM artifact_metadata_index WHERE id = ?`,
		Bindings: []any{row.ID},
		Kind:     driver.OpSelect,
	})
	if err != nil {
		return err
	}

	if _, err := ix.client.Execute(ctx, tx, driver.Statement{
		SQL: `INSERT INTO artifact_metadata_index (` + indexColumns + `) VALUES (` + indexPlaceholders + `)
			ON CONFLICT(id) DO UPDATE SET ` + indexUpdateSet,
		Bindings: row.bindings(),
		Kind:     driver.OpInsert,
	}); err != nil {
		return err
	}

	for _, old := range previous.Strings("artifact_id") {
		if old == row.ArtifactID {
			continue
		}
		if err := ix.dropOrphan(ctx, tx, h, old); err != nil {
			return err
		}
	}

	if err := h.fts.Upsert(ctx, tx, fts.Entry{
		ID:          row.ID,
		ArtifactID:  row.ArtifactID,
		Title:       nullString(row.Title),
		Description: nullString(row.Description),
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// dropOrphan removes the vector and outgoing links of an artifact id that
// no index row carries any more.
func (ix *Index) dropOrphan(ctx context.Context, tx driver.Querier, h handles, artifactID string) error {
	res, err := ix.client.Execute(ctx, tx, driver.Statement{
		SQL:      `SELECT COUNT(*) FROM artifact_metadata_index WHERE artifact_id = ?`,
		Bindings: []any{artifactID},
		Kind:     driver.OpCount,
	})
	if err != nil {
		return err
	}
	if res.Count > 0 {
		return nil
	}
	if _, err := ix.client.Execute(ctx, tx, driver.Statement{
		SQL:      `DELETE FROM artifact_links WHERE source_artifact_id = ?`,
		Bindings: []any{artifactID},
		Kind:     driver.OpDelete,
	}); err != nil {
		return err
	}
	if err := h.vec.RemoveVector(ctx, tx, artifactID); err != nil {
		return err
	}
	ix.logger.Debug("dropped data of renamed artifact", zap.String("artifact_id", artifactID))
	return nil
}

// RemoveFromIndex deletes every trace of an artifact: its index rows, the
// full-text entries, its vector and its outgoing links. Removing an
// unknown artifact is not an error.
func (ix *Index) RemoveFromIndex(ctx context.Context, artifactID string) (err error) {
	h, err := ix.ready()
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() { metrics.Observe("remove", start, err) }()

	if artifactID == "" {
		return &OpError{Op: "remove", Err: types.ErrInvalidArtifactID}
	}

	tx, err := h.conn.BeginTx(ctx)
	if err != nil {
		return &OpError{Op: "remove", ArtifactID: artifactID, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []driver.Statement{
		{SQL: `DELETE FROM artifact_metadata_index WHERE artifact_id = ?`, Bindings: []any{artifactID}, Kind: driver.OpDelete},
		{SQL: `DELETE FROM artifact_links WHERE source_artifact_id = ?`, Bindings: []any{artifactID}, Kind: driver.OpDelete},
	}
	for _, stmt := range stmts {
		if _, err := ix.client.Execute(ctx, tx, stmt); err != nil {
			return &OpError{Op: "remove", ArtifactID: artifactID, Err: err}
		}
	}
	if err := h.fts.DeleteArtifact(ctx, tx, artifactID); err != nil {
		return &OpError{Op: "remove", ArtifactID: artifactID, Err: err}
	}
	if err := h.vec.RemoveVector(ctx, tx, artifactID); err != nil {
		return &OpError{Op: "remove", ArtifactID: artifactID, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &OpError{Op: "remove", ArtifactID: artifactID, Err: err}
	}
	return nil
}

// QueryIndex returns the metadata file paths of rows matching every set
// field of filter. Row order is unspecified unless filter.OrderBy is set.
func (ix *Index) QueryIndex(ctx context.Context, filter types.Filter) (paths []string, err error) {
	h, err := ix.ready()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.Observe("query", start, err) }()

	if err := filter.Validate(); err != nil {
		return nil, &OpError{Op: "query", Err: err}
	}

	stmt := ix.buildQuery(filter)
	res, err := ix.client.Execute(ctx, h.conn.DB, stmt)
	if err != nil {
		return nil, &OpError{Op: "query", Err: err}
	}
	return res.Strings("metadata_file_path"), nil
}

// TextSearch returns artifact ids ranked by keyword relevance. Search
// failures degrade to an empty result.
func (ix *Index) TextSearch(ctx context.Context, query string, limit int) ([]string, error) {
	h, err := ix.ready()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	start := time.Now()
	ids := h.fts.Search(ctx, query, limit)
	metrics.Observe("text_search", start, nil)
	return ids, nil
}

// VectorSearch returns artifact ids ranked by semantic similarity. Without
// an embedding model, or when the search fails, the result is empty.
func (ix *Index) VectorSearch(ctx context.Context, query string, limit int) ([]string, error) {
	h, err := ix.ready()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	start := time.Now()
	ids := h.vec.Search(ctx, query, limit)
	metrics.Observe("vector_search", start, nil)
	return ids, nil
}

// EmbeddingsEnabled reports whether semantic search is available
func (ix *Index) EmbeddingsEnabled() bool {
	h, err := ix.ready()
	if err != nil {
		return false
	}
	return h.vec.Enabled()
}

// RebuildFullText reloads the full-text shadow from the primary table
func (ix *Index) RebuildFullText(ctx context.Context) error {
	h, err := ix.ready()
	if err != nil {
		return err
	}
	if err := h.fts.SyncIndex(ctx); err != nil {
		return &OpError{Op: "rebuild_fulltext", Err: err}
	}
	return nil
}
