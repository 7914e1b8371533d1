//go:build !cgo

package embedder

import (
	"context"
	"fmt"
)

// LocalProvider is unavailable without cgo; the ONNX runtime needs it.
type LocalProvider struct{}

// NewLocalProvider always fails in builds without cgo
func NewLocalProvider(modelName, _ string, _ *Cache) (*LocalProvider, error) {
	return nil, fmt.Errorf("%w: %s needs a cgo build", ErrModelUnavailable, modelName)
}

func (l *LocalProvider) GenerateEmbedding(context.Context, EmbeddingRequest) (*Embedding, error) {
	return nil, ErrModelUnavailable
}

func (l *LocalProvider) GenerateBatch(context.Context, BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	return nil, ErrModelUnavailable
}

func (l *LocalProvider) Dimension() int   { return 0 }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model() string    { return "" }
func (l *LocalProvider) Close() error     { return nil }
