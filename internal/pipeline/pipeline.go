// Package pipeline orchestrates the indexing engine's C6 (full index) and
// C7 (incremental sync) operations: scanning, chunking, embedding, and
// upserting into a vector database, in bounded batches with retry and a
// global chunk ceiling.
package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/codesearch/semindex/internal/chunk"
	"github.com/codesearch/semindex/internal/embed"
	indexerrors "github.com/codesearch/semindex/internal/errors"
	"github.com/codesearch/semindex/internal/scanner"
	"github.com/codesearch/semindex/internal/state"
	"github.com/codesearch/semindex/internal/vectordb"
)

// Status values a Result can report.
const (
	StatusComplete     = "complete"
	StatusLimitReached = "limit_reached"
	StatusCancelled    = "cancelled"
)

// Defaults matching the engine's bounded-batch orchestration.
const (
	DefaultBatchSize    = 64
	DefaultChunkCeiling = 450000
)

// Config wires together the components one indexing run needs. Callers
// construct the concrete Scanner/Chunker/Embedder/vectordb.Client and pass
// them in; this package owns only the orchestration between them.
type Config struct {
	Root         string
	DataDir      string
	Scanner      *scanner.Scanner
	Chunker      chunk.Chunker
	Embedder     embed.Embedder
	VectorDB     vectordb.Client
	State        *state.IndexingState
	BatchSize    int
	ChunkCeiling int
	ScanOptions  *scanner.ScanOptions
	ProgressFunc func(filesScanned, chunksIndexed int)
}

func (c *Config) withDefaults() *Config {
	cfg := *c
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ChunkCeiling <= 0 {
		cfg.ChunkCeiling = DefaultChunkCeiling
	}
	return &cfg
}

// Result summarizes one run of IndexCodebase or Sync.
type Result struct {
	Status        string
	FilesScanned  int
	ChunksIndexed int
	Added         int
	Removed       int
	Modified      int
}

// CollectionName derives the vector DB collection name for a codebase root:
// code_chunks_ followed by the first 8 hex characters of md5(absolute path).
func CollectionName(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	sum := md5.Sum([]byte(abs))
	return "code_chunks_" + hex.EncodeToString(sum[:])[:8]
}

// IndexCodebase performs a full scan-chunk-embed-insert pass over cfg.Root,
// creating the vector DB collection fresh. Chunks beyond ChunkCeiling are
// dropped and the run reports StatusLimitReached rather than failing
// outright; an embedding or vector DB batch that exhausts its retries
// aborts the run, leaving whatever was already inserted in place rather
// than rolling it back.
func IndexCodebase(ctx context.Context, c *Config) (*Result, error) {
	cfg := c.withDefaults()

	if err := cfg.State.Begin(cfg.Root); err != nil {
		return nil, err
	}

	result, err := runIndex(ctx, cfg)
	if err != nil || result.Status == StatusCancelled {
		cfg.State.Fail(cfg.Root)
		return result, err
	}
	cfg.State.Succeed(cfg.Root)
	return result, nil
}

func runIndex(ctx context.Context, cfg *Config) (*Result, error) {
	collection := CollectionName(cfg.Root)
	dims := cfg.Embedder.Dimensions()
	if err := cfg.VectorDB.CreateCollection(ctx, collection, dims); err != nil {
		return nil, err
	}

	scanOpts := cfg.ScanOptions
	if scanOpts == nil {
		scanOpts = &scanner.ScanOptions{RootDir: cfg.Root, RespectGitignore: true}
	}
	results, err := cfg.Scanner.Scan(ctx, scanOpts)
	if err != nil {
		return nil, indexerrors.Wrap(indexerrors.ErrCodeInternal, err)
	}

	result := &Result{Status: StatusComplete}
	var batch []chunk.Chunk
	var flushErr error

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := embedAndInsert(ctx, cfg, collection, batch); err != nil {
			return err
		}
		result.ChunksIndexed += len(batch)
		batch = batch[:0]
		if cfg.ProgressFunc != nil {
			cfg.ProgressFunc(result.FilesScanned, result.ChunksIndexed)
		}
		return nil
	}

scanLoop:
	for sr := range results {
		select {
		case <-ctx.Done():
			result.Status = StatusCancelled
			break scanLoop
		default:
		}

		if sr.Error != nil {
			continue
		}
		result.FilesScanned++

		chunks, err := chunkFile(ctx, cfg.Chunker, sr.File)
		if err != nil {
			continue // parse failures are demoted to a warning by the chunker's own fallback
		}

		for _, ch := range chunks {
			if result.ChunksIndexed+len(batch) >= cfg.ChunkCeiling {
				result.Status = StatusLimitReached
				break scanLoop
			}
			batch = append(batch, toVectorChunk(ch))
			if len(batch) >= cfg.BatchSize {
				if err := flush(); err != nil {
					flushErr = err
					break scanLoop
				}
			}
		}
	}

	if flushErr == nil {
		flushErr = flush()
	}
	if flushErr != nil {
		return result, flushErr
	}

	if err := cfg.VectorDB.CreateIndex(ctx, collection); err != nil {
		return result, err
	}
	return result, nil
}

func chunkFile(ctx context.Context, chunker chunk.Chunker, file *scanner.FileInfo) ([]*chunk.Chunk, error) {
	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return nil, indexerrors.Wrap(indexerrors.ErrCodeFileNotFound, err)
	}
	return chunker.Chunk(ctx, &chunk.FileInput{
		Path:     file.Path,
		Content:  content,
		Language: file.Language,
	})
}

func toVectorChunk(c *chunk.Chunk) chunk.Chunk {
	return *c
}

// embedAndInsert embeds one batch's content and inserts it into the vector
// DB. Embedding is retried per indexerrors.DefaultRetryConfig (up to 3
// retries after the first attempt, 1s/2s/4s backoff). The insert step uses the same backoff, except for
// CollectionLimitExceeded, which is a permanent backend signal and is
// returned on first occurrence without consuming a retry.
func embedAndInsert(ctx context.Context, cfg *Config, collection string, batch []chunk.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := indexerrors.RetryWithResult(ctx, indexerrors.DefaultRetryConfig(), func() ([][]float32, error) {
		return cfg.Embedder.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeEmbeddingFailed, err)
	}

	for i := range batch {
		batch[i].Vector = vectors[i]
	}

	if err := retryUnlessPermanent(ctx, func() error {
		return cfg.VectorDB.Insert(ctx, collection, batch)
	}, vectordb.IsCollectionLimitExceeded); err != nil {
		if vectordb.IsCollectionLimitExceeded(err) {
			return err
		}
		return indexerrors.Wrap(indexerrors.ErrCodeIndexFailed, err)
	}
	return nil
}

// retryUnlessPermanent mirrors indexerrors.Retry's exponential backoff
// (up to 3 retries after the first attempt, 1s/2s/4s) but returns
// immediately, without sleeping or consuming a further attempt, the first time permanent(err) is true. Used
// for the vector DB insert step, where CollectionLimitExceeded must never
// be retried.
func retryUnlessPermanent(ctx context.Context, fn func() error, permanent func(error) bool) error {
	cfg := indexerrors.DefaultRetryConfig()
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		if permanent(err) {
			return err
		}
		lastErr = err

		if attempt >= cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}
