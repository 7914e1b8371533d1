// Package searcher implements hybrid artifact search combining semantic
// similarity and keyword matching.
//
// The searcher provides three search modes:
//   - Hybrid: keyword and vector search fused with Reciprocal Rank Fusion (default)
//   - Vector: semantic search using embeddings
//   - Keyword: full-text search only
//
// # Basic Usage
//
//	s, err := searcher.New(ix, searcher.Config{})
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query: "billing integration",
//	    Limit: 10,
//	    Mode:  searcher.SearchModeHybrid,
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s (score: %.4f)\n", r.Rank, r.Title, r.RelevanceScore)
//	}
//
// # Reciprocal Rank Fusion
//
// Each engine contributes 1/(k + rank) for every artifact it returns, with
// k = 60 by default. Artifacts found by both engines rise to the top.
// Without an embedding model the vector side is empty and hybrid search
// reduces to keyword ranking.
//
// # Caching
//
// Responses are cached in an LRU keyed by query, mode, limit and k, with a
// TTL. Call InvalidateCache after the index changes.
package searcher
