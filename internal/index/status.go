package index

import (
	"context"

	"github.com/dshills/artifact-index/internal/driver"
	"github.com/dshills/artifact-index/internal/schema"
)

// Status summarises the contents and health of the index
type Status struct {
	State             string `json:"state"`
	Backend           string `json:"backend"`
	Path              string `json:"path"`
	SchemaVersion     string `json:"schemaVersion"`
	Artifacts         int64  `json:"artifacts"`
	Links             int64  `json:"links"`
	Vectors           int64  `json:"vectors"`
	EmbeddingsEnabled bool   `json:"embeddingsEnabled"`
	EmbeddingModel    string `json:"embeddingModel,omitempty"`
	VectorDimension   int    `json:"vectorDimension"`
	FullTextHealthy   bool   `json:"fullTextHealthy"`
}

// Status reports row counts and engine health
func (ix *Index) Status(ctx context.Context) (*Status, error) {
	h, err := ix.ready()
	if err != nil {
		return nil, err
	}

	st := &Status{
		State:             StateReady.String(),
		Backend:           string(ix.client.Dialect()),
		Path:              ix.opts.Path,
		EmbeddingsEnabled: h.vec.Enabled(),
		EmbeddingModel:    h.vec.ModelName(),
		VectorDimension:   h.vec.Dimension(),
		FullTextHealthy:   h.fts.Healthy(ctx),
	}

	version, err := schema.CurrentVersion(ctx, ix.client, h.conn)
	if err != nil {
		return nil, &OpError{Op: "status", Err: err}
	}
	st.SchemaVersion = version.String()

	counts := []struct {
		table string
		dst   *int64
	}{
		{schema.TableIndex, &st.Artifacts},
		{schema.TableLinks, &st.Links},
	}
	for _, c := range counts {
		res, err := ix.client.Execute(ctx, h.conn.DB, driver.Statement{
			SQL:  `SELECT COUNT(*) FROM ` + ix.client.QuoteIdentifier(c.table),
			Kind: driver.OpCount,
		})
		if err != nil {
			return nil, &OpError{Op: "status", Err: err}
		}
		*c.dst = res.Count
	}

	if st.Vectors, err = h.vec.Count(ctx); err != nil {
		return nil, &OpError{Op: "status", Err: err}
	}
	return st, nil
}
