// Package embeddertest provides deterministic embedders for tests.
package embeddertest

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/dshills/artifact-index/internal/embedder"
)

// Concepts used by ConceptEmbedder. Each one is a vector dimension; a text
// scores on a dimension for every keyword of that concept it contains.
var Concepts = [][]string{
	{"payment", "payments", "billing", "invoice", "gateway", "checkout", "charge"},
	{"user", "users", "authentication", "login", "password", "session", "identity"},
	{"kafka", "stream", "streaming", "event", "events", "queue", "ingestion"},
	{"database", "schema", "index", "query", "sql", "table"},
	{"deploy", "deployment", "kubernetes", "cluster", "release"},
	{"diagram", "architecture", "component", "design"},
	{"test", "tests", "testing", "coverage"},
	{"integration", "api", "endpoint", "webhook"},
}

// Dimension of ConceptEmbedder vectors
var Dimension = len(Concepts)

// ConceptEmbedder maps text onto keyword concepts. Texts that share concepts
// have high cosine similarity, which is enough to exercise ranking without
// a real model.
type ConceptEmbedder struct {
	calls atomic.Int64
}

// NewConceptEmbedder returns a ready ConceptEmbedder
func NewConceptEmbedder() *ConceptEmbedder {
	return &ConceptEmbedder{}
}

// Loader returns a loader yielding e
func (e *ConceptEmbedder) Loader() embedder.Loader {
	return func(context.Context) (embedder.Embedder, error) { return e, nil }
}

// Calls reports how many texts were embedded
func (e *ConceptEmbedder) Calls() int64 {
	return e.calls.Load()
}

func (e *ConceptEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if err := embedder.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.calls.Add(1)

	vector := make([]float32, Dimension)
	for _, word := range strings.FieldsFunc(strings.ToLower(req.Text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		for i, keywords := range Concepts {
			for _, kw := range keywords {
				if word == kw {
					vector[i]++
				}
			}
		}
	}

	return &embedder.Embedding{
		Vector:    embedder.NormalizeVector(vector),
		Dimension: Dimension,
		Provider:  "test",
		Model:     "concepts",
		Hash:      embedder.ComputeHash(req.Text),
	}, nil
}

func (e *ConceptEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	if err := embedder.ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := e.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out, Provider: "test", Model: "concepts"}, nil
}

func (e *ConceptEmbedder) Dimension() int   { return Dimension }
func (e *ConceptEmbedder) Provider() string { return "test" }
func (e *ConceptEmbedder) Model() string    { return "concepts" }
func (e *ConceptEmbedder) Close() error     { return nil }

// ErrInjected is returned by FailingEmbedder
var ErrInjected = errors.New("injected embedding failure")

// FailingLoader simulates a model that cannot be loaded
func FailingLoader() embedder.Loader {
	return func(context.Context) (embedder.Embedder, error) {
		return nil, embedder.ErrModelUnavailable
	}
}

// FailingEmbedder loads fine but fails every embedding
type FailingEmbedder struct {
	ConceptEmbedder
}

// Loader returns a loader yielding e
func (e *FailingEmbedder) Loader() embedder.Loader {
	return func(context.Context) (embedder.Embedder, error) { return e, nil }
}

func (e *FailingEmbedder) GenerateEmbedding(context.Context, embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return nil, ErrInjected
}

func (e *FailingEmbedder) GenerateBatch(context.Context, embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, ErrInjected
}
