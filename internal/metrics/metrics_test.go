package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("test_op", "error"))
	Observe("test_op", time.Now(), errors.New("boom"))
	Observe("test_op", time.Now(), nil)

	assert.Equal(t, before+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("test_op", "error")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(OperationsTotal.WithLabelValues("test_op", "success")), 1.0)
}

func TestDegraded(t *testing.T) {
	c := SearchDegradedTotal.WithLabelValues("fts", "test")
	before := testutil.ToFloat64(c)
	Degraded("fts", "test")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestSetEmbeddingsEnabled(t *testing.T) {
	SetEmbeddingsEnabled(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(EmbeddingsEnabled))
	SetEmbeddingsEnabled(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(EmbeddingsEnabled))
}
