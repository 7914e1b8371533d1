package embeddertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/artifact-index/internal/embedder"
)

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestConceptEmbedder_RelatedTextsAreClose(t *testing.T) {
	e := NewConceptEmbedder()
	ctx := context.Background()

	embed := func(text string) []float32 {
		emb, err := e.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, Dimension)
		return emb.Vector
	}

	query := embed("billing integration")
	payment := embed("Payment Gateway")
	auth := embed("User Authentication")

	assert.Greater(t, dot(query, payment), dot(query, auth))
	assert.Equal(t, int64(3), e.Calls())
}

func TestFailingEmbedder(t *testing.T) {
	f := &FailingEmbedder{}
	emb, err := f.Loader()(context.Background())
	require.NoError(t, err)

	_, err = emb.GenerateEmbedding(context.Background(), embedder.EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrInjected)

	_, err = FailingLoader()(context.Background())
	assert.ErrorIs(t, err, embedder.ErrModelUnavailable)
}
