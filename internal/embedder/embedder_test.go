package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	assert.Equal(t, ComputeHash("abc"), ComputeHash("abc"))
	assert.NotEqual(t, ComputeHash("abc"), ComputeHash("abd"))
	assert.Len(t, ComputeHash(""), 64)
}

func TestValidateRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "x"}))

	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}}), ErrInvalidInput)
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}))
}

func TestCache(t *testing.T) {
	t.Run("get returns a copy", func(t *testing.T) {
		c := NewCache(2)
		key := KeyFor("m", "billing retries", false)
		c.Set(key, &Embedding{Vector: []float32{1, 2}, Dimension: 2})

		got, ok := c.Get(key)
		require.True(t, ok)
		got.Vector[0] = 99

		again, _ := c.Get(key)
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("keys separate model and side", func(t *testing.T) {
		c := NewCache(4)
		c.Set(KeyFor("m", "text", false), &Embedding{Model: "m"})

		_, ok := c.Get(KeyFor("m", "text", true))
		assert.False(t, ok)
		_, ok = c.Get(KeyFor("other", "text", false))
		assert.False(t, ok)
		_, ok = c.Get(KeyFor("m", "text", false))
		assert.True(t, ok)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		c := NewCache(2)
		a, b := KeyFor("m", "a", false), KeyFor("m", "b", false)
		c.Set(a, &Embedding{})
		c.Set(b, &Embedding{})
		c.Get(a)
		c.Set(KeyFor("m", "c", false), &Embedding{})

		_, ok := c.Get(b)
		assert.False(t, ok)
		assert.Equal(t, 2, c.Size())

		c.Clear()
		assert.Equal(t, 0, c.Size())
	})

	t.Run("non-positive size uses default", func(t *testing.T) {
		c := NewCache(0)
		c.Set(KeyFor("m", "a", false), &Embedding{})
		assert.Equal(t, 1, c.Size())
	})
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

// embeddingServer answers OpenAI-style requests, returning data in
// reverse order to check index placement.
func embeddingServer(t *testing.T, calls *atomic.Int64, status func(n int64) int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if code := status(n); code != http.StatusOK {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(body.Input))
		for i := len(body.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float32{float32(i), float32(len(body.Input[i]))}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": body.Model, "data": data})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestHTTPProvider(t *testing.T, url string) *HTTPProvider {
	t.Helper()
	p, err := NewOpenAIProvider("test-key", NewCache(10))
	require.NoError(t, err)
	p.WithEndpoint(url).WithModel("test-model", 2)
	p.retry = RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return p
}

func TestHTTPProvider_Batch(t *testing.T) {
	var calls atomic.Int64
	srv := embeddingServer(t, &calls, func(int64) int { return http.StatusOK })
	p := newTestHTTPProvider(t, srv.URL)

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "bbb"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, []float32{0, 1}, resp.Embeddings[0].Vector)
	assert.Equal(t, []float32{1, 3}, resp.Embeddings[1].Vector)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, 2, p.Dimension())

	// Second lookup is served from the cache
	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "bbb"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestHTTPProvider_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := embeddingServer(t, &calls, func(n int64) int {
		if n < 3 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	})
	p := newTestHTTPProvider(t, srv.URL)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	require.NoError(t, err)
	assert.Len(t, emb.Vector, 2)
	assert.Equal(t, int64(3), calls.Load())
}

func TestHTTPProvider_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int64
	srv := embeddingServer(t, &calls, func(int64) int { return http.StatusUnauthorized })
	p := newTestHTTPProvider(t, srv.URL)

	_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int64(1), calls.Load(), "4xx must not be retried")
}

func TestNewHTTPProvider_MissingKey(t *testing.T) {
	t.Setenv(EnvJinaAPIKey, "")
	_, err := NewJinaProvider("", nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	t.Run("gives up after max retries", func(t *testing.T) {
		n := 0
		_, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			n++
			return 0, errors.New("transient")
		})
		assert.Error(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		n := 0
		_, err := retryWithBackoff(ctx, cfg, func() (int, error) {
			n++
			cancel()
			return 0, errors.New("transient")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, n)
	})

	t.Run("returns first success", func(t *testing.T) {
		n := 0
		v, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			n++
			if n == 2 {
				return 42, nil
			}
			return 0, errors.New("transient")
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})
}

func TestNew(t *testing.T) {
	_, err := New(Config{Provider: ProviderNone})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = New(Config{Provider: "word2vec"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)

	emb, err := New(Config{Provider: ProviderOpenAI, APIKey: "k", Model: "m", Dimension: 8})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, emb.Provider())
	assert.Equal(t, "m", emb.Model())
	assert.Equal(t, 8, emb.Dimension())
	require.NoError(t, emb.Close())
}

func TestNewLoader_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(Config{Provider: ProviderNone})(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectProvider(t *testing.T) {
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")
	assert.Equal(t, ProviderLocal, DetectProvider())

	t.Setenv(EnvOpenAIAPIKey, "k")
	assert.Equal(t, ProviderOpenAI, DetectProvider())

	t.Setenv(EnvJinaAPIKey, "k")
	assert.Equal(t, ProviderJina, DetectProvider())
}
