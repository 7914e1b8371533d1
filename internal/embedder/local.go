//go:build cgo

package embedder

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// localModels maps model names to fastembed models and their dimensions
var localModels = map[string]struct {
	model     fastembed.EmbeddingModel
	dimension int
}{
	"BAAI/bge-small-en-v1.5":                 {fastembed.BGESmallENV15, 384},
	"BAAI/bge-small-en":                      {fastembed.BGESmallEN, 384},
	"BAAI/bge-base-en-v1.5":                  {fastembed.BGEBaseENV15, 768},
	"BAAI/bge-base-en":                       {fastembed.BGEBaseEN, 768},
	"sentence-transformers/all-MiniLM-L6-v2": {fastembed.AllMiniLML6V2, 384},
}

// LocalProvider runs an ONNX embedding model in-process
type LocalProvider struct {
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
	cache     *Cache
	mu        sync.RWMutex
}

// NewLocalProvider loads a local model, downloading it into cacheDir on
// first use. An empty model selects bge-small-en-v1.5.
func NewLocalProvider(modelName, cacheDir string, cache *Cache) (*LocalProvider, error) {
	if modelName == "" {
		modelName = DefaultLocalModel
	}
	spec, ok := localModels[modelName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, modelName)
	}

	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                spec.model,
		CacheDir:             cacheDir,
		MaxLength:            512,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, modelName, err)
	}

	return &LocalProvider{
		model:     flagEmbed,
		modelName: modelName,
		dimension: spec.dimension,
		cache:     cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := KeyFor(l.modelName, req.Text, req.IsQuery)
	if l.cache != nil {
		if emb, ok := l.cache.Get(key); ok {
			return emb, nil
		}
	}

	l.mu.RLock()
	var vector []float32
	var err error
	if req.IsQuery {
		vector, err = l.model.QueryEmbed(req.Text)
	} else {
		var out [][]float32
		out, err = l.model.PassageEmbed([]string{req.Text}, 1)
		if err == nil && len(out) > 0 {
			vector = out[0]
		}
	}
	l.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  ProviderLocal,
		Model:     l.modelName,
		Hash:      ComputeHash(req.Text),
	}
	if l.cache != nil {
		l.cache.Set(key, emb)
	}
	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	vectors, err := l.model.PassageEmbed(req.Texts, DefaultBatchSize)
	l.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	embeddings := make([]*Embedding, len(vectors))
	for i, v := range vectors {
		embeddings[i] = &Embedding{
			Vector:    v,
			Dimension: len(v),
			Provider:  ProviderLocal,
			Model:     l.modelName,
			Hash:      ComputeHash(req.Texts[i]),
		}
		if l.cache != nil {
			l.cache.Set(KeyFor(l.modelName, req.Texts[i], false), embeddings[i])
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.modelName,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.modelName
}

func (l *LocalProvider) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.model != nil {
		err := l.model.Destroy()
		l.model = nil
		return err
	}
	return nil
}
