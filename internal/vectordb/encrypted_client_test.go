package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptedClientRoundTripsContentThroughSearch(t *testing.T) {
	inner := NewHNSWBackend(t.TempDir())
	enc := NewEncryptedClient(inner, "a test passphrase")

	ctx := context.Background()
	require.NoError(t, enc.CreateCollection(ctx, "col", 3))
	require.NoError(t, enc.Insert(ctx, "col", []Chunk{
		{ID: "1", Vector: []float32{1, 0, 0}, Content: "func main() {}", RelativePath: "a.go"},
	}))

	results, err := enc.Search(ctx, "col", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "func main() {}", results[0].Content)
}

func TestEncryptedClientStoresCiphertextNotPlaintext(t *testing.T) {
	inner := NewHNSWBackend(t.TempDir())
	enc := NewEncryptedClient(inner, "a test passphrase")

	ctx := context.Background()
	require.NoError(t, enc.CreateCollection(ctx, "col", 3))
	require.NoError(t, enc.Insert(ctx, "col", []Chunk{
		{ID: "1", Vector: []float32{1, 0, 0}, Content: "secret source code", RelativePath: "a.go"},
	}))

	raw, err := inner.Query(ctx, "col", Filter{RelativePath: "a.go"}, 10)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.NotEqual(t, "secret source code", raw[0].Content)
}

func TestEncryptedClientQueryDecrypts(t *testing.T) {
	inner := NewHNSWBackend(t.TempDir())
	enc := NewEncryptedClient(inner, "passphrase")

	ctx := context.Background()
	require.NoError(t, enc.CreateCollection(ctx, "col", 2))
	require.NoError(t, enc.Insert(ctx, "col", []Chunk{
		{ID: "1", Vector: []float32{0, 1}, Content: "hello world", RelativePath: "b.go", FileExtension: ".go"},
	}))

	chunks, err := enc.Query(ctx, "col", Filter{FileExtension: ".go"}, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Content)
}
