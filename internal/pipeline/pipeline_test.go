package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/codesearch/semindex/internal/chunk"
	"github.com/codesearch/semindex/internal/scanner"
	"github.com/codesearch/semindex/internal/state"
	"github.com/codesearch/semindex/internal/vectordb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns a fixed-dimension vector derived from text length so
// results are deterministic without a real embedding backend.
type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dims)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                     { return f.dims }
func (f *fakeEmbedder) ModelName() string                   { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool  { return true }
func (f *fakeEmbedder) Close() error                        { return nil }
func (f *fakeEmbedder) SetBatchIndex(idx int)                {}
func (f *fakeEmbedder) SetFinalBatch(isFinal bool)           {}

func newTestPipeline(t *testing.T, root string) *Config {
	t.Helper()
	sc, err := scanner.New()
	require.NoError(t, err)

	return &Config{
		Root:     root,
		DataDir:  t.TempDir(),
		Scanner:  sc,
		Chunker:  chunk.NewSizeSplitter(),
		Embedder: &fakeEmbedder{dims: 4},
		VectorDB: vectordb.NewHNSWBackend(t.TempDir()),
		State:    state.New(),
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestIndexCodebaseIndexesChunks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package main\n\nfunc main() {}\n")
	writeFile(t, dir, "b.go", "package main\n\nfunc helper() {}\n")

	cfg := newTestPipeline(t, dir)
	result, err := IndexCodebase(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, result.Status)
	assert.Equal(t, 2, result.FilesScanned)
	assert.Greater(t, result.ChunksIndexed, 0)
}

func TestIndexCodebaseRejectsConcurrentRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package main\n")

	cfg := newTestPipeline(t, dir)
	require.NoError(t, cfg.State.Begin(dir))

	_, err := IndexCodebase(context.Background(), cfg)
	require.Error(t, err)
}

func TestIndexCodebaseRespectsChunkCeiling(t *testing.T) {
	dir := t.TempDir()
	// Long enough to split into multiple chunks under the default 2500-char
	// sliding window, so the ceiling has a second chunk to reject.
	var content string
	for i := 0; i < 200; i++ {
		content += "func placeholder() { return }\n"
	}
	writeFile(t, dir, "a.go", content)

	cfg := newTestPipeline(t, dir)
	cfg.ChunkCeiling = 1
	cfg.BatchSize = 1

	result, err := IndexCodebase(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusLimitReached, result.Status)
	assert.Equal(t, 1, result.ChunksIndexed)
}

func TestCollectionNameIsStableForSameRoot(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, CollectionName(dir), CollectionName(dir))
}

func TestCollectionNameDiffersAcrossRoots(t *testing.T) {
	assert.NotEqual(t, CollectionName(t.TempDir()), CollectionName(t.TempDir()))
}
