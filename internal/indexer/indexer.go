package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/artifact-index/internal/index"
	"github.com/dshills/artifact-index/internal/logging"
	"github.com/dshills/artifact-index/internal/metadata"
	"github.com/dshills/artifact-index/internal/metrics"
	"github.com/dshills/artifact-index/pkg/types"
)

// ErrRebuildInProgress is returned when another rebuild holds the lock
var ErrRebuildInProgress = errors.New("rebuild already in progress")

// Store is the part of the runtime index the indexer writes to
type Store interface {
	SyncFromYaml(ctx context.Context, md *types.ArtifactMetadata, metadataFilePath string, title, description *string) error
	SyncLinks(ctx context.Context, sourceArtifactID, vaultID string, links []types.Link) error
	RemoveFromIndex(ctx context.Context, artifactID string) error
	Artifacts(ctx context.Context, vaultID string) ([]index.IndexedArtifact, error)
	LookupByPath(ctx context.Context, metadataFilePath string) (string, bool, error)
}

// Indexer rebuilds the index from metadata files
type Indexer struct {
	store  Store
	logger *zap.Logger
	lock   RebuildLock
}

// Config contains configuration for a rebuild
type Config struct {
	Workers int    // Number of concurrent parsers (default: runtime.NumCPU())
	VaultID string // Restrict pruning to one vault (default: every vault)
	NoPrune bool   // Keep index rows whose files are gone
}

// Statistics contains statistics about a rebuild
type Statistics struct {
	FilesFound       int
	FilesIndexed     int
	FilesFailed      int
	ArtifactsRemoved int
	LinksWritten     int
	Duration         time.Duration
	ErrorMessages    []string
}

// New creates a new Indexer instance
func New(store Store, logger *zap.Logger) *Indexer {
	return &Indexer{
		store:  store,
		logger: logging.OrNop(logger).Named("indexer"),
	}
}

// Running reports whether a rebuild is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// parsed is the outcome of parsing one discovered file
type parsed struct {
	path string
	doc  *metadata.Document
	err  error
}

// Rebuild syncs every metadata file under root into the index and prunes
// artifacts whose files no longer exist
func (idx *Indexer) Rebuild(ctx context.Context, root string, config *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrRebuildInProgress
	}
	defer idx.lock.Release()

	if config == nil {
		config = &Config{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault root: %w", err)
	}

	files, err := discoverFiles(root)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	stats.FilesFound = len(files)
	idx.logger.Info("rebuild started",
		zap.String("root", root),
		zap.Int("files", len(files)),
		zap.Int("workers", workers))

	results, err := parseFiles(ctx, files, workers)
	if err != nil {
		return nil, err
	}

	// Paths of failed files keep their rows: a broken file is not a
	// deleted artifact
	keep := make(map[string]struct{})
	seen := make(map[string]struct{})
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.err == nil {
			var links int
			links, r.err = idx.syncDocument(ctx, r.doc)
			if r.err == nil {
				seen[r.doc.Metadata.ArtifactID] = struct{}{}
				stats.FilesIndexed++
				stats.LinksWritten += links
				metrics.RebuildFilesTotal.WithLabelValues("indexed").Inc()
				continue
			}
			if errors.Is(r.err, index.ErrNotInitialized) {
				return nil, r.err
			}
		}
		keep[r.path] = struct{}{}
		stats.FilesFailed++
		stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", r.path, r.err))
		metrics.RebuildFilesTotal.WithLabelValues("failed").Inc()
		idx.logger.Warn("failed to index metadata file", zap.String("path", r.path), zap.Error(r.err))
	}

	if !config.NoPrune {
		removed, err := idx.prune(ctx, root, config.VaultID, seen, keep)
		stats.ArtifactsRemoved = removed
		if err != nil {
			return nil, fmt.Errorf("failed to prune index: %w", err)
		}
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("rebuild finished",
		zap.Int("indexed", stats.FilesIndexed),
		zap.Int("failed", stats.FilesFailed),
		zap.Int("removed", stats.ArtifactsRemoved),
		zap.Duration("took", stats.Duration))
	return stats, nil
}

// discoverFiles finds all metadata files under root
func discoverFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Skip hidden directories such as .git
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if metadata.IsMetadataFile(path) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// parseFiles parses files concurrently. Results keep the discovery order
// so syncs are deterministic.
func parseFiles(ctx context.Context, files []string, workers int) ([]parsed, error) {
	results := make([]parsed, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := metadata.ParseFile(path)
			results[i] = parsed{path: path, doc: doc, err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// syncDocument writes one parsed file and its links. It returns the number
// of links written.
func (idx *Indexer) syncDocument(ctx context.Context, doc *metadata.Document) (int, error) {
	md := &doc.Metadata
	if err := idx.store.SyncFromYaml(ctx, md, doc.Path, doc.Title, doc.Description); err != nil {
		return 0, err
	}
	links := metadata.DeriveLinks(md)
	if err := idx.store.SyncLinks(ctx, md.ArtifactID, md.VaultID, links); err != nil {
		return 0, err
	}
	return len(links), nil
}

// prune removes indexed artifacts under root that were not seen
func (idx *Indexer) prune(ctx context.Context, root, vaultID string, seen, keep map[string]struct{}) (int, error) {
	existing, err := idx.store.Artifacts(ctx, vaultID)
	if err != nil {
		return 0, err
	}

	removed := 0
	done := make(map[string]struct{})
	for _, a := range existing {
		if _, ok := seen[a.ArtifactID]; ok {
			continue
		}
		if _, ok := done[a.ArtifactID]; ok {
			continue
		}
		if _, ok := keep[a.MetadataFilePath]; ok {
			continue
		}
		if !within(root, a.MetadataFilePath) {
			continue
		}
		if err := idx.store.RemoveFromIndex(ctx, a.ArtifactID); err != nil {
			return removed, err
		}
		done[a.ArtifactID] = struct{}{}
		removed++
		metrics.RebuildFilesTotal.WithLabelValues("removed").Inc()
		idx.logger.Debug("pruned artifact", zap.String("artifact_id", a.ArtifactID), zap.String("path", a.MetadataFilePath))
	}
	return removed, nil
}

// within reports whether path lies inside root
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// SyncFile parses and syncs a single metadata file
func (idx *Indexer) SyncFile(ctx context.Context, path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	doc, err := metadata.ParseFile(path)
	if err != nil {
		return err
	}

	// A file that now carries a different artifact id replaces the old one
	if prev, ok, err := idx.store.LookupByPath(ctx, path); err == nil && ok && prev != doc.Metadata.ArtifactID {
		if err := idx.store.RemoveFromIndex(ctx, prev); err != nil {
			return err
		}
	}

	_, err = idx.syncDocument(ctx, doc)
	return err
}

// RemoveFile removes the artifact synced from path, if any. It returns
// the removed artifact id.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) (string, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	artifactID, ok, err := idx.store.LookupByPath(ctx, path)
	if err != nil || !ok {
		return "", err
	}
	return artifactID, idx.store.RemoveFromIndex(ctx, artifactID)
}
