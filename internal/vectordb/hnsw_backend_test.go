package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChunk(id, path string, vec []float32) Chunk {
	return Chunk{
		ID:            id,
		Vector:        vec,
		Content:       "func Foo() {}",
		RelativePath:  path,
		StartLine:     1,
		EndLine:       3,
		FileExtension: ".go",
	}
}

func TestHNSWBackendCreateInsertSearch(t *testing.T) {
	ctx := context.Background()
	backend := NewHNSWBackend(t.TempDir())

	require.NoError(t, backend.CreateCollection(ctx, "code_chunks_abc", 3))
	require.NoError(t, backend.Insert(ctx, "code_chunks_abc", []Chunk{
		sampleChunk("c1", "a.go", []float32{1, 0, 0}),
		sampleChunk("c2", "b.go", []float32{0, 1, 0}),
	}))

	results, err := backend.Search(ctx, "code_chunks_abc", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)
	assert.GreaterOrEqual(t, results[0].Score, float32(0))
}

func TestHNSWBackendDeleteRemovesChunk(t *testing.T) {
	ctx := context.Background()
	backend := NewHNSWBackend(t.TempDir())

	require.NoError(t, backend.CreateCollection(ctx, "col", 3))
	require.NoError(t, backend.Insert(ctx, "col", []Chunk{sampleChunk("c1", "a.go", []float32{1, 0, 0})}))
	require.NoError(t, backend.Delete(ctx, "col", []string{"c1"}))

	results, err := backend.Search(ctx, "col", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWBackendDeleteByFilterMatchesPath(t *testing.T) {
	ctx := context.Background()
	backend := NewHNSWBackend(t.TempDir())

	require.NoError(t, backend.CreateCollection(ctx, "col", 3))
	require.NoError(t, backend.Insert(ctx, "col", []Chunk{
		sampleChunk("c1", "a.go", []float32{1, 0, 0}),
		sampleChunk("c2", "b.go", []float32{0, 1, 0}),
	}))

	require.NoError(t, backend.DeleteByFilter(ctx, "col", Filter{RelativePath: "a.go"}))

	remaining, err := backend.Query(ctx, "col", Filter{}, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "b.go", remaining[0].RelativePath)
}

func TestHNSWBackendQueryByExtension(t *testing.T) {
	ctx := context.Background()
	backend := NewHNSWBackend(t.TempDir())

	require.NoError(t, backend.CreateCollection(ctx, "col", 2))
	require.NoError(t, backend.Insert(ctx, "col", []Chunk{
		{ID: "c1", Vector: []float32{1, 0}, RelativePath: "a.go", FileExtension: ".go"},
		{ID: "c2", Vector: []float32{0, 1}, RelativePath: "a.md", FileExtension: ".md"},
	}))

	results, err := backend.Query(ctx, "col", Filter{FileExtension: ".md"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].ID)
}

func TestHNSWBackendPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend := NewHNSWBackend(dir)
	require.NoError(t, backend.CreateCollection(ctx, "col", 3))
	require.NoError(t, backend.Insert(ctx, "col", []Chunk{sampleChunk("c1", "a.go", []float32{1, 0, 0})}))
	require.NoError(t, backend.Close())

	reopened := NewHNSWBackend(dir)
	require.NoError(t, reopened.LoadCollection(ctx, "col"))

	results, err := reopened.Search(ctx, "col", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)
}

func TestHNSWBackendLoadMissingCollectionErrors(t *testing.T) {
	ctx := context.Background()
	backend := NewHNSWBackend(t.TempDir())
	err := backend.LoadCollection(ctx, "nope")
	assert.Error(t, err)
}

func TestHNSWBackendHasAndListCollections(t *testing.T) {
	ctx := context.Background()
	backend := NewHNSWBackend(t.TempDir())

	has, err := backend.HasCollection(ctx, "col")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, backend.CreateCollection(ctx, "col", 3))
	has, err = backend.HasCollection(ctx, "col")
	require.NoError(t, err)
	assert.True(t, has)

	names, err := backend.ListCollections(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "col")
}

func TestHNSWBackendDropCollection(t *testing.T) {
	ctx := context.Background()
	backend := NewHNSWBackend(t.TempDir())
	require.NoError(t, backend.CreateCollection(ctx, "col", 3))
	require.NoError(t, backend.DropCollection(ctx, "col"))

	has, err := backend.HasCollection(ctx, "col")
	require.NoError(t, err)
	assert.False(t, has)
}
