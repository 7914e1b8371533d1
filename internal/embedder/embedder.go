package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrModelUnavailable  = errors.New("embedding model unavailable")
)

// DefaultCacheSize is used when NewCache gets a non-positive size
const DefaultCacheSize = 10000

// Embedding is one artifact or query vector
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // hex SHA-256 of the embedded text
}

// EmbeddingRequest asks for the vector of one text
type EmbeddingRequest struct {
	Text  string
	Model string // Optional: override default model

	// IsQuery selects the query-side encoding for models that embed
	// queries and passages differently.
	IsQuery bool
}

// BatchEmbeddingRequest asks for passage vectors of several texts
type BatchEmbeddingRequest struct {
	Texts []string
	Model string
}

// BatchEmbeddingResponse holds one embedding per requested text, in order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder turns artifact titles, descriptions and search queries into
// vectors. Implementations are safe for concurrent use.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension of every vector this embedder produces
	Dimension() int
	Provider() string
	Model() string
	Close() error
}

// Loader produces an Embedder. The vector engine calls it once while the
// index initializes; an error leaves semantic search disabled.
type Loader func(ctx context.Context) (Embedder, error)

// CacheKey identifies a cached vector. The same text embeds differently
// per model and per query/passage side.
type CacheKey struct {
	Model   string
	IsQuery bool
	Sum     [sha256.Size]byte
}

// KeyFor builds the cache key of text under model
func KeyFor(model, text string, isQuery bool) CacheKey {
	return CacheKey{Model: model, IsQuery: isQuery, Sum: sha256.Sum256([]byte(text))}
}

// Cache is an LRU of embeddings. Artifacts are re-synced on every rebuild,
// so unchanged titles and descriptions hit the cache instead of the model.
type Cache struct {
	lru *lru.Cache[CacheKey, *Embedding]
}

// NewCache creates a cache holding at most maxLen embeddings
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	c, err := lru.New[CacheKey, *Embedding](maxLen)
	if err != nil {
		c, _ = lru.New[CacheKey, *Embedding](DefaultCacheSize)
	}
	return &Cache{lru: c}
}

// Get returns a copy of the cached embedding. Callers may modify it.
func (c *Cache) Get(key CacheKey) (*Embedding, bool) {
	emb, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	out := *emb
	out.Vector = append([]float32(nil), emb.Vector...)
	return &out, true
}

// Set stores emb under key, evicting the least recently used entry when
// full
func (c *Cache) Set(key CacheKey, emb *Embedding) {
	c.lru.Add(key, emb)
}

// Size returns the number of cached embeddings
func (c *Cache) Size() int {
	return c.lru.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.lru.Purge()
}

// ComputeHash returns the hex SHA-256 of text
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateRequest rejects empty text
func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest rejects empty batches and empty texts
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
