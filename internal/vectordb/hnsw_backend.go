package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	indexerrors "github.com/codesearch/semindex/internal/errors"
	"github.com/codesearch/semindex/internal/store"
)

// collection pairs a vector graph with the chunk payloads the graph's
// bare string IDs point at. store.HNSWStore only knows about IDs and
// vectors; everything else the wire schema carries lives here.
type collection struct {
	mu     sync.RWMutex
	vector *store.HNSWStore
	chunks map[string]Chunk
}

// HNSWBackend is the in-process Client implementation: every collection is
// an independent HNSW graph plus an in-memory chunk table, both persisted
// under dataDir/<collection>/. It has no external quota, so it never
// raises CollectionLimitExceeded.
type HNSWBackend struct {
	mu          sync.RWMutex
	dataDir     string
	collections map[string]*collection
}

var _ Client = (*HNSWBackend)(nil)

// NewHNSWBackend creates a backend rooted at dataDir. Existing collection
// subdirectories are not loaded eagerly; LoadCollection reads them lazily.
func NewHNSWBackend(dataDir string) *HNSWBackend {
	return &HNSWBackend{
		dataDir:     dataDir,
		collections: make(map[string]*collection),
	}
}

func (b *HNSWBackend) collectionDir(name string) string {
	return filepath.Join(b.dataDir, name)
}

func (b *HNSWBackend) CreateCollection(ctx context.Context, name string, dimensions int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.collections[name]; exists {
		return nil
	}

	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dimensions))
	if err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeInternal, err)
	}
	b.collections[name] = &collection{vector: vs, chunks: make(map[string]Chunk)}
	return nil
}

func (b *HNSWBackend) DropCollection(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.collections, name)
	return os.RemoveAll(b.collectionDir(name))
}

func (b *HNSWBackend) HasCollection(ctx context.Context, name string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, exists := b.collections[name]
	if exists {
		return true, nil
	}
	_, err := os.Stat(b.collectionDir(name))
	return err == nil, nil
}

func (b *HNSWBackend) ListCollections(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.collections))
	for name := range b.collections {
		names = append(names, name)
	}
	return names, nil
}

// CreateIndex is a no-op: store.HNSWStore builds its graph incrementally as
// vectors are added, there is no separate build step to trigger.
func (b *HNSWBackend) CreateIndex(ctx context.Context, name string) error {
	return nil
}

func (b *HNSWBackend) LoadCollection(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.collections[name]; exists {
		return nil
	}

	dir := b.collectionDir(name)
	dims, err := store.ReadHNSWStoreDimensions(filepath.Join(dir, "graph.bin"))
	if err != nil {
		return indexerrors.New(indexerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("collection %q metadata unreadable", name), err)
	}
	if dims == 0 {
		return indexerrors.New(indexerrors.ErrCodeFileNotFound,
			fmt.Sprintf("collection %q not found on disk", name), nil)
	}

	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeInternal, err)
	}
	if err := vs.Load(filepath.Join(dir, "graph.bin")); err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeCorruptIndex, err)
	}

	chunks, err := loadChunkTable(filepath.Join(dir, "chunks.json"))
	if err != nil {
		return err
	}

	b.collections[name] = &collection{vector: vs, chunks: chunks}
	return nil
}

func (b *HNSWBackend) get(name string) (*collection, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[name]
	if !ok {
		return nil, indexerrors.New(indexerrors.ErrCodeFileNotFound,
			fmt.Sprintf("collection %q not loaded", name), nil)
	}
	return c, nil
}

func (b *HNSWBackend) Insert(ctx context.Context, name string, chunks []Chunk) error {
	c, err := b.get(name)
	if err != nil {
		return err
	}

	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
		vectors[i] = ch.Vector
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.vector.Add(ctx, ids, vectors); err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeInternal, err)
	}
	for _, ch := range chunks {
		c.chunks[ch.ID] = ch
	}
	return b.persist(name, c)
}

func (b *HNSWBackend) Delete(ctx context.Context, name string, ids []string) error {
	c, err := b.get(name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.vector.Delete(ctx, ids); err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeInternal, err)
	}
	for _, id := range ids {
		delete(c.chunks, id)
	}
	return b.persist(name, c)
}

func (b *HNSWBackend) DeleteByFilter(ctx context.Context, name string, filter Filter) error {
	c, err := b.get(name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	var toDelete []string
	for id, chunk := range c.chunks {
		if matches(filter, chunk) {
			toDelete = append(toDelete, id)
		}
	}
	c.mu.Unlock()

	if len(toDelete) == 0 {
		return nil
	}
	return b.Delete(ctx, name, toDelete)
}

func (b *HNSWBackend) Search(ctx context.Context, name string, vector []float32, topK int) ([]SearchResult, error) {
	c, err := b.get(name)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	raw, err := c.vector.Search(ctx, vector, topK)
	if err != nil {
		return nil, indexerrors.Wrap(indexerrors.ErrCodeSearchFailed, err)
	}

	results := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		chunk, ok := c.chunks[r.ID]
		if !ok {
			continue
		}
		results = append(results, SearchResult{Chunk: chunk, Score: r.Score})
	}
	return results, nil
}

func (b *HNSWBackend) Query(ctx context.Context, name string, filter Filter, limit int) ([]Chunk, error) {
	c, err := b.get(name)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var results []Chunk
	for _, chunk := range c.chunks {
		if !matches(filter, chunk) {
			continue
		}
		results = append(results, chunk)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (b *HNSWBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, c := range b.collections {
		if err := b.persist(name, c); err != nil {
			return err
		}
		if err := c.vector.Close(); err != nil {
			return err
		}
	}
	return nil
}

// persist saves both the graph and the chunk table. Caller must hold c.mu.
func (b *HNSWBackend) persist(name string, c *collection) error {
	dir := b.collectionDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeFilePermission, err)
	}
	if err := c.vector.Save(filepath.Join(dir, "graph.bin")); err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeFilePermission, err)
	}
	return saveChunkTable(filepath.Join(dir, "chunks.json"), c.chunks)
}

func saveChunkTable(path string, chunks map[string]Chunk) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeInternal, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeFilePermission, err)
	}
	return os.Rename(tmp, path)
}

func loadChunkTable(path string) (map[string]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]Chunk), nil
		}
		return nil, indexerrors.Wrap(indexerrors.ErrCodeFilePermission, err)
	}
	var chunks map[string]Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, indexerrors.Wrap(indexerrors.ErrCodeFileCorrupt, err)
	}
	return chunks, nil
}
