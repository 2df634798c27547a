package embed

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultEmbeddingConcurrency caps how many embedding batch requests a
// process issues at once against a remote HTTPS provider, independent of
// how many indexing workers are feeding it. Providers like OpenAI rate-limit
// per account, not per connection, so an unbounded worker pool would just
// trade HTTP 429s for wasted retries.
const DefaultEmbeddingConcurrency = 5

// BoundedEmbedder wraps an Embedder with a process-wide semaphore so that at
// most N EmbedBatch calls are in flight at once, regardless of how many
// goroutines call it concurrently.
type BoundedEmbedder struct {
	inner Embedder
	sem   *semaphore.Weighted
}

var _ Embedder = (*BoundedEmbedder)(nil)

// NewBoundedEmbedder wraps inner with a concurrency cap. weight <= 0 uses
// DefaultEmbeddingConcurrency.
func NewBoundedEmbedder(inner Embedder, weight int64) *BoundedEmbedder {
	if weight <= 0 {
		weight = DefaultEmbeddingConcurrency
	}
	return &BoundedEmbedder{inner: inner, sem: semaphore.NewWeighted(weight)}
}

// Embed acquires a concurrency slot before delegating to the wrapped
// embedder.
func (b *BoundedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.sem.Release(1)
	return b.inner.Embed(ctx, text)
}

// EmbedBatch acquires a concurrency slot before delegating to the wrapped
// embedder.
func (b *BoundedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.sem.Release(1)
	return b.inner.EmbedBatch(ctx, texts)
}

func (b *BoundedEmbedder) Dimensions() int                    { return b.inner.Dimensions() }
func (b *BoundedEmbedder) ModelName() string                  { return b.inner.ModelName() }
func (b *BoundedEmbedder) Available(ctx context.Context) bool { return b.inner.Available(ctx) }
func (b *BoundedEmbedder) Close() error                       { return b.inner.Close() }
func (b *BoundedEmbedder) SetBatchIndex(idx int)              { b.inner.SetBatchIndex(idx) }
func (b *BoundedEmbedder) SetFinalBatch(isFinal bool)         { b.inner.SetFinalBatch(isFinal) }
