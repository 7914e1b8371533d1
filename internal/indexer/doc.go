// Package indexer rebuilds the runtime index from a vault of metadata files.
//
// The canonical store is a directory tree of YAML metadata files. The
// indexer walks it, parses files concurrently, and syncs each artifact and
// its derived links into the index. Artifacts whose files are gone are
// removed, so a rebuild leaves the index matching the store exactly.
//
// # Basic Usage
//
//	idx := indexer.New(ix, logger)
//
//	stats, err := idx.Rebuild(ctx, "/path/to/vault", &indexer.Config{Workers: 4})
//	if errors.Is(err, indexer.ErrRebuildInProgress) {
//	    // another rebuild holds the lock
//	}
//
//	fmt.Printf("Indexed %d files in %v\n", stats.FilesIndexed, stats.Duration)
//
// # Pipeline
//
//  1. Discovery: find *.yaml and *.yml files, skipping hidden directories
//  2. Parse: decode and validate files on a bounded worker pool
//  3. Sync: upsert rows and links one artifact at a time
//  4. Prune: remove indexed artifacts under the root with no file left
//
// Syncs run serially because every write goes through the single database
// connection. Embedding work inside a sync is bounded separately by the
// vector engine.
//
// # Error Handling
//
// Only fatal errors (cancellation, an index that is not ready) are
// returned. A file that fails to parse or sync is counted in
// Statistics.FilesFailed and described in Statistics.ErrorMessages; the
// rebuild carries on with the other files. Failed files are not pruned.
//
// # Single Files
//
// SyncFile and RemoveFile apply one file change and are what the vault
// watcher calls.
package indexer
