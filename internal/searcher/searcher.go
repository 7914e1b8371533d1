package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/artifact-index/internal/index"
	"github.com/dshills/artifact-index/internal/metrics"
	"github.com/dshills/artifact-index/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Vector + keyword with RRF
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeKeyword SearchMode = "keyword" // Keyword search only
)

const (
	DefaultLimit     = 10
	MaxLimit         = 100
	DefaultRRFK      = 60
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 5 * time.Minute
)

// ErrEmptyQuery is returned for blank queries
var ErrEmptyQuery = errors.New("query cannot be empty")

// Index is the part of the runtime index the searcher reads
type Index interface {
	TextSearch(ctx context.Context, query string, limit int) ([]string, error)
	VectorSearch(ctx context.Context, query string, limit int) ([]string, error)
	Get(ctx context.Context, artifactID string) (*index.Record, error)
}

// Config holds searcher defaults
type Config struct {
	DefaultLimit int
	CacheSize    int
	CacheTTL     time.Duration
	RRFK         float64
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query       string
	Limit       int
	Mode        SearchMode
	UseCache    bool    // Whether to use the response cache
	RRFConstant float64 // k value for Reciprocal Rank Fusion (default 60)
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results       []types.SearchResult
	TotalResults  int
	SearchMode    SearchMode
	Duration      time.Duration
	CacheHit      bool
	VectorResults int
	TextResults   int
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher fuses keyword and semantic search over the index
type Searcher struct {
	index  Index
	config Config

	cacheMu sync.Mutex
	cache   *lru.Cache[[32]byte, *cacheEntry]
}

// New creates a Searcher. Zero config fields take their defaults.
func New(ix Index, config Config) (*Searcher, error) {
	if config.DefaultLimit <= 0 || config.DefaultLimit > MaxLimit {
		config.DefaultLimit = DefaultLimit
	}
	if config.CacheSize <= 0 {
		config.CacheSize = DefaultCacheSize
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if config.RRFK <= 0 {
		config.RRFK = DefaultRRFK
	}

	cache, err := lru.New[[32]byte, *cacheEntry](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	return &Searcher{
		index:  ix,
		config: config,
		cache:  cache,
	}, nil
}

// Search performs a search based on the request parameters
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	var text, vector []string
	var err error
	switch req.Mode {
	case SearchModeHybrid:
		text, vector, err = s.both(ctx, req)
	case SearchModeVector:
		vector, err = s.index.VectorSearch(ctx, req.Query, req.Limit)
	case SearchModeKeyword:
		text, err = s.index.TextSearch(ctx, req.Query, req.Limit)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	ranked := applyRRF(text, vector, req.RRFConstant)
	results, err := s.fetchResults(ctx, ranked, req.Limit)
	if err != nil {
		return nil, err
	}

	response := &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		SearchMode:    req.Mode,
		Duration:      time.Since(startTime),
		VectorResults: len(vector),
		TextResults:   len(text),
	}

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}
	return response, nil
}

// both runs keyword and vector search concurrently. Each side fetches
// twice the limit so fusion has candidates to reorder.
func (s *Searcher) both(ctx context.Context, req SearchRequest) (text, vector []string, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		text, err = s.index.TextSearch(gctx, req.Query, req.Limit*2)
		return err
	})
	g.Go(func() error {
		var err error
		vector, err = s.index.VectorSearch(gctx, req.Query, req.Limit*2)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return text, vector, nil
}

// rankedResult is an artifact with its fused score and per-engine ranks
type rankedResult struct {
	artifactID string
	score      float64
	textRank   int
	vectorRank int
}

// applyRRF applies Reciprocal Rank Fusion to combine result lists
// RRF formula: RRF(d) = Σ 1/(k + rank(d))
func applyRRF(text, vector []string, k float64) []rankedResult {
	if k <= 0 {
		k = DefaultRRFK
	}

	byID := make(map[string]*rankedResult)
	get := func(id string) *rankedResult {
		r, ok := byID[id]
		if !ok {
			r = &rankedResult{artifactID: id}
			byID[id] = r
		}
		return r
	}

	for rank, id := range text {
		r := get(id)
		if r.textRank == 0 {
			r.textRank = rank + 1
			r.score += 1.0 / (k + float64(rank+1))
		}
	}
	for rank, id := range vector {
		r := get(id)
		if r.vectorRank == 0 {
			r.vectorRank = rank + 1
			r.score += 1.0 / (k + float64(rank+1))
		}
	}

	results := make([]rankedResult, 0, len(byID))
	for _, r := range byID {
		results = append(results, *r)
	}
	sortRankedResults(results)
	return results
}

// sortRankedResults sorts by score descending, ties by artifact id
func sortRankedResults(results []rankedResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].artifactID < results[j].artifactID
	})
}

// fetchResults attaches titles and file paths to the best ranked ids
func (s *Searcher) fetchResults(ctx context.Context, ranked []rankedResult, limit int) ([]types.SearchResult, error) {
	if limit > len(ranked) {
		limit = len(ranked)
	}

	results := make([]types.SearchResult, 0, limit)
	for _, rr := range ranked {
		if len(results) == limit {
			break
		}

		rec, err := s.index.Get(ctx, rr.artifactID)
		if errors.Is(err, index.ErrNotFound) {
			continue // Removed between search and fetch
		}
		if err != nil {
			return nil, err
		}

		result := types.SearchResult{
			ArtifactID:       rr.artifactID,
			Rank:             len(results) + 1,
			RelevanceScore:   rr.score,
			TextRank:         rr.textRank,
			VectorRank:       rr.vectorRank,
			MetadataFilePath: rec.MetadataFilePath,
		}
		if rec.Title != nil {
			result.Title = *rec.Title
		}
		results = append(results, result)
	}
	return results, nil
}

// validateRequest normalises a search request
func (s *Searcher) validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return ErrEmptyQuery
	}

	if req.Limit <= 0 {
		req.Limit = s.config.DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.Mode == "" {
		req.Mode = SearchModeHybrid
	}

	if req.RRFConstant <= 0 {
		req.RRFConstant = s.config.RRFK
	}

	return nil
}

// checkCache returns a copy of a live cached response, or nil
func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := computeQueryHash(req)

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, found := s.cache.Get(hash)
	if !found {
		metrics.SearchCacheTotal.WithLabelValues("miss").Inc()
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		s.cache.Remove(hash)
		metrics.SearchCacheTotal.WithLabelValues("miss").Inc()
		return nil
	}

	metrics.SearchCacheTotal.WithLabelValues("hit").Inc()
	return copySearchResponse(entry.response)
}

// storeInCache saves a copy of a response
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(s.config.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// copySearchResponse creates a deep copy of a SearchResponse. Results hold
// only values, so copying the slice is enough.
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = append([]types.SearchResult(nil), src.Results...)
	return &dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	key := fmt.Sprintf("%s|%s|%d|%g", req.Query, req.Mode, req.Limit, req.RRFConstant)
	return sha256.Sum256([]byte(key))
}

// InvalidateCache drops every cached response. Call it after the index
// changes.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// Limit returns the number of results a request without a limit gets
func (s *Searcher) Limit() int {
	return s.config.DefaultLimit
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cache.Len()
}
