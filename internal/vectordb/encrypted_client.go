package vectordb

import (
	"context"

	indexcrypto "github.com/codesearch/semindex/internal/crypto"
)

// EncryptedClient wraps a Client and transparently AES-256-CBC encrypts
// chunk content before it reaches the inner backend, decrypting it back out
// on Search and Query. Every other field (vector, path, line range,
// metadata) passes through unencrypted since a backend needs the vector to
// search and the path/extension to filter; only the source text itself is
// sensitive enough to warrant encryption at rest.
type EncryptedClient struct {
	inner Client
	key   [indexcrypto.KeySize]byte
}

var _ Client = (*EncryptedClient)(nil)

// NewEncryptedClient wraps inner so chunk content is encrypted at rest using
// a key derived from passphrase.
func NewEncryptedClient(inner Client, passphrase string) *EncryptedClient {
	return &EncryptedClient{inner: inner, key: indexcrypto.DeriveKey(passphrase)}
}

func (e *EncryptedClient) CreateCollection(ctx context.Context, name string, dimensions int) error {
	return e.inner.CreateCollection(ctx, name, dimensions)
}

func (e *EncryptedClient) DropCollection(ctx context.Context, name string) error {
	return e.inner.DropCollection(ctx, name)
}

func (e *EncryptedClient) HasCollection(ctx context.Context, name string) (bool, error) {
	return e.inner.HasCollection(ctx, name)
}

func (e *EncryptedClient) ListCollections(ctx context.Context) ([]string, error) {
	return e.inner.ListCollections(ctx)
}

func (e *EncryptedClient) CreateIndex(ctx context.Context, name string) error {
	return e.inner.CreateIndex(ctx, name)
}

func (e *EncryptedClient) LoadCollection(ctx context.Context, name string) error {
	return e.inner.LoadCollection(ctx, name)
}

func (e *EncryptedClient) Insert(ctx context.Context, collection string, chunks []Chunk) error {
	encrypted := make([]Chunk, len(chunks))
	for i, c := range chunks {
		ciphertext, err := indexcrypto.Encrypt(e.key, c.Content)
		if err != nil {
			return err
		}
		c.Content = ciphertext
		encrypted[i] = c
	}
	return e.inner.Insert(ctx, collection, encrypted)
}

func (e *EncryptedClient) Delete(ctx context.Context, collection string, ids []string) error {
	return e.inner.Delete(ctx, collection, ids)
}

func (e *EncryptedClient) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	return e.inner.DeleteByFilter(ctx, collection, filter)
}

func (e *EncryptedClient) Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error) {
	results, err := e.inner.Search(ctx, collection, vector, topK)
	if err != nil {
		return nil, err
	}
	for i, r := range results {
		plain, err := indexcrypto.Decrypt(e.key, r.Content)
		if err != nil {
			return nil, err
		}
		results[i].Content = plain
	}
	return results, nil
}

func (e *EncryptedClient) Query(ctx context.Context, collection string, filter Filter, limit int) ([]Chunk, error) {
	chunks, err := e.inner.Query(ctx, collection, filter, limit)
	if err != nil {
		return nil, err
	}
	for i, c := range chunks {
		plain, err := indexcrypto.Decrypt(e.key, c.Content)
		if err != nil {
			return nil, err
		}
		chunks[i].Content = plain
	}
	return chunks, nil
}

func (e *EncryptedClient) Close() error {
	return e.inner.Close()
}
