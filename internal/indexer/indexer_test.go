package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/artifact-index/internal/index"
	"github.com/dshills/artifact-index/pkg/types"
)

func setupTestIndex(t *testing.T) *index.Index {
	t.Helper()
	ix, err := index.New(index.Options{
		Path:   filepath.Join(t.TempDir(), "index.db"),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	require.NoError(t, ix.Initialize(context.Background()))
	t.Cleanup(func() { _ = ix.Close(context.Background()) })
	return ix
}

func writeDoc(t *testing.T, dir, name, artifactID, title string, extra string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := fmt.Sprintf("id: md-%s\nartifactId: %s\nvaultId: main\ntype: design\ntitle: %s\ndescription: about %s\n%s",
		artifactID, artifactID, title, title, extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRebuild_IndexesVault(t *testing.T) {
	ix := setupTestIndex(t)
	vault := t.TempDir()
	ctx := context.Background()

	writeDoc(t, vault, "payment.yaml", "pay", "Payment Gateway", "links: [auth, https://example.com]\n")
	writeDoc(t, vault, "nested/auth.yml", "auth", "User Authentication", "relatedCodePaths: [internal/auth.go]\n")
	writeDoc(t, vault, ".git/ignored.yaml", "ghost", "Ghost", "")
	require.NoError(t, os.WriteFile(filepath.Join(vault, "README.md"), []byte("# vault"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(vault, "broken.yaml"), []byte("id: [oops"), 0o644))

	idx := New(ix, zaptest.NewLogger(t))
	stats, err := idx.Rebuild(ctx, vault, &Config{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.FilesFound)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 3, stats.LinksWritten)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "broken.yaml")

	paths, err := ix.QueryIndex(ctx, types.Filter{Type: "design"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(vault, "payment.yaml"), filepath.Join(vault, "nested/auth.yml")}, paths)

	ids, err := ix.TextSearch(ctx, "payment", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"pay"}, ids)

	back, err := ix.Backlinks(ctx, "auth")
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, "pay", back[0].SourceArtifactID)
}

func TestRebuild_PrunesDeletedArtifacts(t *testing.T) {
	ix := setupTestIndex(t)
	vault := t.TempDir()
	ctx := context.Background()
	idx := New(ix, nil)

	a := writeDoc(t, vault, "a.yaml", "a", "Alpha", "")
	writeDoc(t, vault, "b.yaml", "b", "Beta", "")

	// An artifact from another vault root must survive
	require.NoError(t, ix.SyncFromYaml(ctx, &types.ArtifactMetadata{ID: "md-x", ArtifactID: "x", VaultID: "main"},
		"/elsewhere/x.yaml", nil, nil))

	_, err := idx.Rebuild(ctx, vault, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(a))
	stats, err := idx.Rebuild(ctx, vault, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ArtifactsRemoved)

	all, err := ix.Artifacts(ctx, "")
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, art := range all {
		ids = append(ids, art.ArtifactID)
	}
	assert.Equal(t, []string{"b", "x"}, ids)
}

func TestRebuild_BrokenFileKeepsRow(t *testing.T) {
	ix := setupTestIndex(t)
	vault := t.TempDir()
	ctx := context.Background()
	idx := New(ix, nil)

	path := writeDoc(t, vault, "a.yaml", "a", "Alpha", "")
	_, err := idx.Rebuild(ctx, vault, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("id: [broken"), 0o644))
	stats, err := idx.Rebuild(ctx, vault, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 0, stats.ArtifactsRemoved)

	_, ok, err := ix.LookupByPath(ctx, path)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRebuild_NoPrune(t *testing.T) {
	ix := setupTestIndex(t)
	vault := t.TempDir()
	ctx := context.Background()
	idx := New(ix, nil)

	a := writeDoc(t, vault, "a.yaml", "a", "Alpha", "")
	_, err := idx.Rebuild(ctx, vault, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(a))

	stats, err := idx.Rebuild(ctx, vault, &Config{NoPrune: true})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ArtifactsRemoved)
}

func TestRebuild_NotInitialized(t *testing.T) {
	ix, err := index.New(index.Options{})
	require.NoError(t, err)
	vault := t.TempDir()
	writeDoc(t, vault, "a.yaml", "a", "Alpha", "")

	_, err = New(ix, nil).Rebuild(context.Background(), vault, nil)
	assert.ErrorIs(t, err, index.ErrNotInitialized)
}

func TestRebuild_Cancelled(t *testing.T) {
	ix := setupTestIndex(t)
	vault := t.TempDir()
	writeDoc(t, vault, "a.yaml", "a", "Alpha", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(ix, nil).Rebuild(ctx, vault, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRebuild_MissingRoot(t *testing.T) {
	ix := setupTestIndex(t)
	_, err := New(ix, nil).Rebuild(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

// blockingStore parks the first sync until released
type blockingStore struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) SyncFromYaml(ctx context.Context, md *types.ArtifactMetadata, path string, title, description *string) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return nil
}

func (s *blockingStore) SyncLinks(context.Context, string, string, []types.Link) error { return nil }
func (s *blockingStore) RemoveFromIndex(context.Context, string) error                 { return nil }
func (s *blockingStore) Artifacts(context.Context, string) ([]index.IndexedArtifact, error) {
	return nil, nil
}
func (s *blockingStore) LookupByPath(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func TestRebuild_ConcurrentRefused(t *testing.T) {
	store := &blockingStore{started: make(chan struct{}), release: make(chan struct{})}
	vault := t.TempDir()
	writeDoc(t, vault, "a.yaml", "a", "Alpha", "")
	idx := New(store, nil)

	done := make(chan error, 1)
	go func() {
		_, err := idx.Rebuild(context.Background(), vault, nil)
		done <- err
	}()

	<-store.started
	assert.True(t, idx.Running())
	_, err := idx.Rebuild(context.Background(), vault, nil)
	assert.ErrorIs(t, err, ErrRebuildInProgress)

	close(store.release)
	require.NoError(t, <-done)
	assert.False(t, idx.Running())
}

func TestSyncFileAndRemoveFile(t *testing.T) {
	ix := setupTestIndex(t)
	vault := t.TempDir()
	ctx := context.Background()
	idx := New(ix, nil)

	path := writeDoc(t, vault, "a.yaml", "a", "Alpha", "")
	require.NoError(t, idx.SyncFile(ctx, path))

	// Same file, new artifact id: the old artifact goes away
	writeDoc(t, vault, "a.yaml", "a2", "Alpha two", "")
	require.NoError(t, idx.SyncFile(ctx, path))
	all, err := ix.Artifacts(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a2", all[0].ArtifactID)

	removed, err := idx.RemoveFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "a2", removed)

	removed, err = idx.RemoveFile(ctx, path)
	require.NoError(t, err)
	assert.Empty(t, removed)

	assert.Error(t, idx.SyncFile(ctx, filepath.Join(vault, "missing.yaml")))
}

func TestRebuildLock(t *testing.T) {
	var l RebuildLock
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	assert.True(t, l.Held())
	l.Release()
	assert.True(t, l.TryAcquire())
}

func TestWithin(t *testing.T) {
	assert.True(t, within("/vault", "/vault/a.yaml"))
	assert.True(t, within("/vault", "/vault/x/y.yaml"))
	assert.False(t, within("/vault", "/vault2/a.yaml"))
	assert.False(t, within("/vault", "/other/a.yaml"))
}
