// Package fts maintains the full-text shadow of the artifact index and
// runs ranked keyword searches against it.
//
// On SQLite the shadow is an FTS5 external-content table kept current by
// triggers. DuckDB has no triggers, so the engine runs in dual-write mode:
// the index writes shadow rows in the same transaction as the primary row,
// and the BM25 index over the shadow is rebuilt lazily before the next
// search after any write.
package fts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/artifact-index/internal/driver"
	"github.com/dshills/artifact-index/internal/logging"
	"github.com/dshills/artifact-index/internal/metrics"
	"github.com/dshills/artifact-index/internal/schema"
)

// DefaultLimit is used when Search is called with a non-positive limit
const DefaultLimit = 20

// ErrNotInitialized is returned by operations that need Initialize first
var ErrNotInitialized = errors.New("full-text engine not initialized")

// Entry is the searchable projection of one index row
type Entry struct {
	ID          string
	ArtifactID  string
	Title       string
	Description string
}

// Engine runs full-text search over the artifact index
type Engine struct {
	client driver.Client
	conn   *driver.Conn
	logger *zap.Logger

	dualWrite bool

	mu          sync.Mutex
	initialized bool
	dirty       bool // dual-write only: BM25 index is behind the shadow table
}

// New creates an engine bound to an open connection
func New(client driver.Client, conn *driver.Conn, logger *zap.Logger) *Engine {
	return &Engine{
		client:    client,
		conn:      conn,
		logger:    logging.OrNop(logger).Named("fts"),
		dualWrite: !client.Features().Triggers,
	}
}

// DualWrite reports whether callers must maintain shadow rows themselves
func (e *Engine) DualWrite() bool {
	return e.dualWrite
}

// Initialize creates the shadow structure. Calling it again is a no-op.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	if err := schema.EnsureFullText(ctx, e.client, e.conn); err != nil {
		return err
	}
	e.initialized = true
	e.dirty = e.dualWrite
	return nil
}

// Healthy reports whether the shadow table answers queries
func (e *Engine) Healthy(ctx context.Context) bool {
	_, err := e.client.Execute(ctx, e.conn.DB, driver.Statement{
		SQL:  `SELECT COUNT(*) FROM ` + e.client.QuoteIdentifier(schema.TableFullText),
		Kind: driver.OpCount,
	})
	return err == nil
}

// Upsert replaces the shadow row for entry.ID. It is a no-op when triggers
// maintain the shadow. q is normally the caller's transaction.
func (e *Engine) Upsert(ctx context.Context, q driver.Querier, entry Entry) error {
	if !e.dualWrite {
		return nil
	}
	if _, err := e.client.Execute(ctx, q, driver.Statement{
		SQL:      `DELETE FROM artifact_metadata_fts WHERE id = ?`,
		Bindings: []any{entry.ID},
		Kind:     driver.OpDelete,
	}); err != nil {
		return fmt.Errorf("failed to clear full-text entry: %w", err)
	}
	if _, err := e.client.Execute(ctx, q, driver.Statement{
		SQL:      `INSERT INTO artifact_metadata_fts (id, artifact_id, title, description) VALUES (?, ?, ?, ?)`,
		Bindings: []any{entry.ID, entry.ArtifactID, entry.Title, entry.Description},
		Kind:     driver.OpInsert,
	}); err != nil {
		return fmt.Errorf("failed to write full-text entry: %w", err)
	}
	e.markDirty()
	return nil
}

// DeleteArtifact removes the shadow rows of an artifact. It is a no-op when
// triggers maintain the shadow.
func (e *Engine) DeleteArtifact(ctx context.Context, q driver.Querier, artifactID string) error {
	if !e.dualWrite {
		return nil
	}
	if _, err := e.client.Execute(ctx, q, driver.Statement{
		SQL:      `DELETE FROM artifact_metadata_fts WHERE artifact_id = ?`,
		Bindings: []any{artifactID},
		Kind:     driver.OpDelete,
	}); err != nil {
		return fmt.Errorf("failed to delete full-text entries: %w", err)
	}
	e.markDirty()
	return nil
}

func (e *Engine) markDirty() {
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
}

// Search returns artifact ids matching query, best first. Failures are
// logged, counted and answered with an empty result.
func (e *Engine) Search(ctx context.Context, query string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ids, err := e.search(ctx, query, limit)
	if err != nil {
		reason := "query"
		if errors.Is(err, ErrNotInitialized) {
			reason = "not_initialized"
		}
		e.logger.Warn("full-text search degraded to empty result",
			zap.String("query", query),
			zap.String("reason", reason),
			zap.Error(err))
		metrics.Degraded("fts", reason)
		return []string{}
	}
	return ids
}

func (e *Engine) search(ctx context.Context, query string, limit int) ([]string, error) {
	e.mu.Lock()
	initialized := e.initialized
	e.mu.Unlock()
	if !initialized {
		return nil, ErrNotInitialized
	}

	var stmt driver.Statement
	if e.dualWrite {
		q := sanitizeBM25Query(query)
		if q == "" {
			return []string{}, nil
		}
		if err := e.refresh(ctx); err != nil {
			return nil, err
		}
		stmt = driver.Statement{
			SQL: `SELECT artifact_id, score FROM (
					SELECT artifact_id, fts_main_artifact_metadata_fts.match_bm25(id, ?) AS score
					FROM artifact_metadata_fts
				) sq
				WHERE score IS NOT NULL
				ORDER BY score DESC
				LIMIT ?`,
			Bindings: []any{q, limit},
			Kind:     driver.OpSelect,
		}
	} else {
		q := sanitizeFTS5Query(query)
		if q == "" {
			return []string{}, nil
		}
		stmt = driver.Statement{
			SQL: `SELECT artifact_id
				FROM artifact_metadata_fts
				WHERE artifact_metadata_fts MATCH ?
				ORDER BY bm25(artifact_metadata_fts)
				LIMIT ?`,
			Bindings: []any{q, limit},
			Kind:     driver.OpSelect,
		}
	}

	res, err := e.client.Execute(ctx, e.conn.DB, stmt)
	if err != nil {
		return nil, err
	}
	return uniqueIDs(res.Strings("artifact_id")), nil
}

// refresh rebuilds the DuckDB BM25 index when writes happened since the
// last build.
func (e *Engine) refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty {
		return nil
	}
	if err := e.buildIndex(ctx); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

func (e *Engine) buildIndex(ctx context.Context) error {
	start := time.Now()
	_, err := e.client.Execute(ctx, e.conn.DB, driver.Statement{
		SQL:  `PRAGMA create_fts_index('artifact_metadata_fts', 'id', 'title', 'description', overwrite=1)`,
		Kind: driver.OpRaw,
	})
	if err != nil {
		return fmt.Errorf("failed to build full-text index: %w", err)
	}
	e.logger.Debug("rebuilt bm25 index", zap.Duration("took", time.Since(start)))
	return nil
}

// SyncIndex reloads the whole shadow from the primary table
func (e *Engine) SyncIndex(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return ErrNotInitialized
	}

	start := time.Now()
	var err error
	defer func() { metrics.Observe("fts_sync", start, err) }()

	if !e.dualWrite {
		_, err = e.client.Execute(ctx, e.conn.DB, driver.Statement{
			SQL:  `INSERT INTO artifact_metadata_fts(artifact_metadata_fts) VALUES('rebuild')`,
			Kind: driver.OpRaw,
		})
		if err != nil {
			return fmt.Errorf("failed to rebuild full-text index: %w", err)
		}
		return nil
	}

	tx, err := e.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = e.client.Execute(ctx, tx, driver.Statement{
		SQL:  `DELETE FROM artifact_metadata_fts`,
		Kind: driver.OpDelete,
	}); err != nil {
		return fmt.Errorf("failed to clear full-text shadow: %w", err)
	}
	if _, err = e.client.Execute(ctx, tx, driver.Statement{
		SQL: `INSERT INTO artifact_metadata_fts (id, artifact_id, title, description)
			SELECT id, artifact_id, title, description FROM artifact_metadata_index`,
		Kind: driver.OpInsert,
	}); err != nil {
		return fmt.Errorf("failed to reload full-text shadow: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit full-text reload: %w", err)
	}

	if err = e.buildIndex(ctx); err != nil {
		e.dirty = true
		return err
	}
	e.dirty = false
	return nil
}

// uniqueIDs drops repeated ids, keeping the first (best ranked) occurrence
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
