// Package vector stores title and description embeddings per artifact and
// runs cosine-similarity search over them.
//
// The embedding model is optional. When it cannot be loaded the engine
// stays usable: writes skip the vector table and searches return an empty
// result.
package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/artifact-index/internal/driver"
	"github.com/dshills/artifact-index/internal/embedder"
	"github.com/dshills/artifact-index/internal/logging"
	"github.com/dshills/artifact-index/internal/metrics"
	"github.com/dshills/artifact-index/internal/schema"
)

const (
	// DefaultDimension matches bge-small-en-v1.5
	DefaultDimension = 384
	// DefaultLimit is used when Search is called with a non-positive limit
	DefaultLimit = 20
	// DefaultWorkers bounds concurrent embedding computations
	DefaultWorkers = 2
)

// ErrNotInitialized is returned by operations that need Initialize first
var ErrNotInitialized = errors.New("vector engine not initialized")

// Options configures an Engine
type Options struct {
	// Loader produces the embedding model; nil disables embeddings
	Loader embedder.Loader
	// Dimension of stored vectors; 0 takes the model's dimension, or
	// DefaultDimension without a model
	Dimension int
	// Workers bounds concurrent embedding computations
	Workers int
	Logger  *zap.Logger
}

// Engine manages the vector table and the embedding model
type Engine struct {
	client driver.Client
	conn   *driver.Conn
	logger *zap.Logger
	opts   Options

	// workers bounds concurrent model calls so slow embeddings do not pile
	// up behind structured writes
	workers *semaphore.Weighted

	mu          sync.RWMutex
	initialized bool
	model       embedder.Embedder
	dimension   int
}

// New creates an engine bound to an open connection
func New(client driver.Client, conn *driver.Conn, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Engine{
		client:  client,
		conn:    conn,
		logger:  logging.OrNop(opts.Logger).Named("vector"),
		opts:    opts,
		workers: semaphore.NewWeighted(int64(opts.Workers)),
	}
}

// Initialize loads the model and creates the vector table. A model that
// fails to load is logged and leaves embeddings disabled; only a failure to
// create the table is returned.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	model := e.loadModel(ctx)
	dim := e.opts.Dimension
	if model != nil {
		switch {
		case dim == 0:
			dim = model.Dimension()
		case model.Dimension() != dim:
			e.logger.Warn("embedding model dimension does not match configuration, semantic search disabled",
				zap.String("model", model.Model()),
				zap.Int("model_dimension", model.Dimension()),
				zap.Int("configured_dimension", dim))
			_ = model.Close()
			model = nil
		}
	}
	if dim <= 0 {
		dim = DefaultDimension
	}

	if err := schema.EnsureVectorSchema(ctx, e.client, e.conn, dim); err != nil {
		if model != nil {
			_ = model.Close()
		}
		return err
	}

	e.model = model
	e.dimension = dim
	e.initialized = true
	metrics.SetEmbeddingsEnabled(model != nil)
	return nil
}

func (e *Engine) loadModel(ctx context.Context) embedder.Embedder {
	if e.opts.Loader == nil {
		e.logger.Info("no embedding model configured, semantic search disabled")
		return nil
	}

	start := time.Now()
	model, err := e.opts.Loader(ctx)
	if err != nil || model == nil {
		e.logger.Warn("failed to load embedding model, semantic search disabled", zap.Error(err))
		return nil
	}
	e.logger.Info("embedding model loaded",
		zap.String("provider", model.Provider()),
		zap.String("model", model.Model()),
		zap.Int("dimension", model.Dimension()),
		zap.Duration("took", time.Since(start)))
	return model
}

// Enabled reports whether a model is loaded
func (e *Engine) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model != nil
}

// Dimension returns the stored vector dimension
func (e *Engine) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

// ModelName returns the loaded model, or "" when disabled
func (e *Engine) ModelName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.model == nil {
		return ""
	}
	return e.model.Model()
}

// Embed computes an embedding. It returns nil, nil when no model is loaded.
func (e *Engine) Embed(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	e.mu.RLock()
	model := e.model
	dim := e.dimension
	e.mu.RUnlock()

	if model == nil {
		return nil, nil
	}

	if err := e.workers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.workers.Release(1)

	emb, err := model.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text, IsQuery: isQuery})
	if err != nil {
		return nil, err
	}
	if len(emb.Vector) != dim {
		return nil, fmt.Errorf("model returned %d dimensions, want %d", len(emb.Vector), dim)
	}
	return emb.Vector, nil
}

// EmbeddingText is the text embedded for an artifact
func EmbeddingText(title, description string) string {
	return strings.TrimSpace(title + "\n" + description)
}

// UpsertVector embeds title and description and stores the vector under
// artifactID. It is a no-op when no model is loaded. Blank text removes
// any stored vector, since there is nothing left to embed.
func (e *Engine) UpsertVector(ctx context.Context, artifactID, title, description string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.Enabled() {
		return nil
	}

	text := EmbeddingText(title, description)
	if text == "" {
		return e.RemoveVector(ctx, e.conn.DB, artifactID)
	}

	vec, err := e.Embed(ctx, text, false)
	if err != nil {
		return fmt.Errorf("failed to embed artifact %s: %w", artifactID, err)
	}
	if vec == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	model := e.ModelName()

	if e.client.Dialect() == driver.DialectDuckDB {
		return e.upsertDuckDB(ctx, artifactID, title, description, vec, model, now)
	}

	_, err = e.client.Execute(ctx, e.conn.DB, driver.Statement{
		SQL: `INSERT INTO artifact_vectors (artifact_id, title, description, embedding, dimension, model, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(artifact_id) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				embedding = excluded.embedding,
				dimension = excluded.dimension,
				model = excluded.model,
				updated_at = excluded.updated_at`,
		Bindings: []any{artifactID, title, description, serializeVector(vec), len(vec), model, now},
		Kind:     driver.OpInsert,
	})
	if err != nil {
		return fmt.Errorf("failed to store vector for %s: %w", artifactID, err)
	}
	return nil
}

// upsertDuckDB writes the vector with a single upsert. DuckDB rejects a
// delete and re-insert of the same key inside one transaction; updating
// the non-key columns in place is allowed.
func (e *Engine) upsertDuckDB(ctx context.Context, artifactID, title, description string, vec []float32, model, now string) error {
	_, err := e.client.Execute(ctx, e.conn.DB, driver.Statement{
		SQL: fmt.Sprintf(`INSERT INTO artifact_vectors (artifact_id, title, description, embedding, model, updated_at)
			VALUES (?, ?, ?, CAST(? AS FLOAT[%d]), ?, ?)
			ON CONFLICT(artifact_id) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				embedding = excluded.embedding,
				model = excluded.model,
				updated_at = excluded.updated_at`, len(vec)),
		Bindings: []any{artifactID, title, description, vectorLiteral(vec), model, now},
		Kind:     driver.OpInsert,
	})
	if err != nil {
		return fmt.Errorf("failed to store vector for %s: %w", artifactID, err)
	}
	return nil
}

// RemoveVector deletes the vector of artifactID. Removing a missing vector
// is not an error.
func (e *Engine) RemoveVector(ctx context.Context, q driver.Querier, artifactID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	_, err := e.client.Execute(ctx, q, driver.Statement{
		SQL:      `DELETE FROM artifact_vectors WHERE artifact_id = ?`,
		Bindings: []any{artifactID},
		Kind:     driver.OpDelete,
	})
	if err != nil {
		return fmt.Errorf("failed to remove vector for %s: %w", artifactID, err)
	}
	return nil
}

// Search returns artifact ids ranked by cosine similarity to query, best
// first. Without a model, or on any failure, it returns an empty result.
func (e *Engine) Search(ctx context.Context, query string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if err := e.ready(); err != nil {
		e.degraded(query, "not_initialized", err)
		return []string{}
	}
	if !e.Enabled() {
		e.logger.Debug("vector search skipped, no embedding model", zap.String("query", query))
		return []string{}
	}
	if strings.TrimSpace(query) == "" {
		return []string{}
	}

	vec, err := e.Embed(ctx, query, true)
	if err != nil {
		e.degraded(query, "embedding", err)
		return []string{}
	}
	if vec == nil {
		return []string{}
	}

	ids, err := e.search(ctx, vec, limit)
	if err != nil {
		e.degraded(query, "query", err)
		return []string{}
	}
	return ids
}

func (e *Engine) search(ctx context.Context, vec []float32, limit int) ([]string, error) {
	features := e.client.Features()

	switch {
	case e.client.Dialect() == driver.DialectDuckDB:
		res, err := e.client.Execute(ctx, e.conn.DB, driver.Statement{
			SQL: fmt.Sprintf(`SELECT artifact_id
				FROM artifact_vectors
				ORDER BY array_cosine_similarity(embedding, CAST(? AS FLOAT[%d])) DESC, artifact_id
				LIMIT ?`, len(vec)),
			Bindings: []any{vectorLiteral(vec), limit},
			Kind:     driver.OpSelect,
		})
		if err != nil {
			return nil, err
		}
		return res.Strings("artifact_id"), nil

	case features.NativeVector:
		// vec_distance_cosine returns a distance, lower is better
		res, err := e.client.Execute(ctx, e.conn.DB, driver.Statement{
			SQL: `SELECT artifact_id
				FROM artifact_vectors
				WHERE dimension = ?
				ORDER BY vec_distance_cosine(embedding, ?) ASC, artifact_id
				LIMIT ?`,
			Bindings: []any{len(vec), serializeVector(vec), limit},
			Kind:     driver.OpSelect,
		})
		if err != nil {
			return nil, err
		}
		return res.Strings("artifact_id"), nil

	default:
		return e.searchFallback(ctx, vec, limit)
	}
}

// searchFallback computes cosine similarity in Go for builds without a
// vector extension
func (e *Engine) searchFallback(ctx context.Context, vec []float32, limit int) ([]string, error) {
	res, err := e.client.Execute(ctx, e.conn.DB, driver.Statement{
		SQL:      `SELECT artifact_id, embedding FROM artifact_vectors WHERE dimension = ?`,
		Bindings: []any{len(vec)},
		Kind:     driver.OpSelect,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(res.Rows))
	for _, row := range res.Rows {
		stored := deserializeVector(row.Bytes("embedding"))
		if len(stored) != len(vec) {
			continue
		}
		candidates = append(candidates, candidate{
			artifactID: row.String("artifact_id"),
			score:      cosineSimilarity(vec, stored),
		})
	}
	return rankCandidates(candidates, limit), nil
}

func (e *Engine) degraded(query, reason string, err error) {
	e.logger.Warn("vector search degraded to empty result",
		zap.String("query", query),
		zap.String("reason", reason),
		zap.Error(err))
	metrics.Degraded("vector", reason)
}

// Count returns the number of stored vectors
func (e *Engine) Count(ctx context.Context) (int64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	res, err := e.client.Execute(ctx, e.conn.DB, driver.Statement{
		SQL:  `SELECT COUNT(*) FROM artifact_vectors`,
		Kind: driver.OpCount,
	})
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Close releases the model
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.initialized = false
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	metrics.SetEmbeddingsEnabled(false)
	return err
}

func (e *Engine) ready() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return ErrNotInitialized
	}
	return nil
}
