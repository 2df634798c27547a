package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/codesearch/semindex/internal/chunk"
	indexerrors "github.com/codesearch/semindex/internal/errors"
	"github.com/codesearch/semindex/internal/scanner"
	"github.com/codesearch/semindex/internal/snapshot"
	"github.com/codesearch/semindex/internal/vectordb"
)

// SyncConfig extends Config with the prior snapshot to diff against and the
// path the new snapshot should be persisted to.
type SyncConfig struct {
	Config
	PreviousSnapshot *snapshot.Snapshot
	SnapshotPath     string
	IgnorePatterns   []string
}

// Sync performs an incremental update of an already-indexed codebase: it
// rescans the root, diffs the resulting file set against PreviousSnapshot
// via the merkle-hash comparison, removes chunks for deleted files,
// re-chunks and re-embeds added or modified files, and persists the new
// snapshot only after the vector DB writes succeed. A nil PreviousSnapshot
// is treated as "nothing indexed yet" and every discovered file is
// reported as added.
func Sync(ctx context.Context, c *SyncConfig) (*Result, error) {
	cfg := c.Config.withDefaults()

	if err := cfg.State.Begin(cfg.Root); err != nil {
		return nil, err
	}

	result, err := runSync(ctx, cfg, c)
	if err != nil || result.Status == StatusCancelled {
		cfg.State.Fail(cfg.Root)
		return result, err
	}
	cfg.State.Succeed(cfg.Root)
	return result, nil
}

func runSync(ctx context.Context, cfg *Config, c *SyncConfig) (*Result, error) {
	collection := CollectionName(cfg.Root)

	contents, err := readTree(ctx, cfg)
	if err != nil {
		return nil, indexerrors.Wrap(indexerrors.ErrCodeInternal, err)
	}

	current := snapshot.New(cfg.Root, contents, c.IgnorePatterns)
	diff := current.CompareWith(c.PreviousSnapshot)

	result := &Result{
		Status:   StatusComplete,
		Added:    len(diff.Added),
		Removed:  len(diff.Removed),
		Modified: len(diff.Modified),
	}

	if diff.IsEmpty() {
		if c.SnapshotPath != "" {
			if err := current.Save(c.SnapshotPath); err != nil {
				return result, err
			}
		}
		return result, nil
	}

	for _, path := range diff.Removed {
		if err := removePath(ctx, cfg, collection, path); err != nil {
			return result, err
		}
	}

	changed := append(append([]string{}, diff.Added...), diff.Modified...)
	var batch []chunk.Chunk
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := embedAndInsert(ctx, cfg, collection, batch); err != nil {
			return err
		}
		result.ChunksIndexed += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, path := range changed {
		select {
		case <-ctx.Done():
			result.Status = StatusCancelled
			return result, nil
		default:
		}

		// Modified files must drop their stale chunks before the fresh ones
		// are inserted, since chunk IDs are content-addressed and a shrunk
		// file would otherwise leave orphaned vectors behind.
		if err := removePath(ctx, cfg, collection, path); err != nil {
			return result, err
		}

		chunks, err := chunkPath(ctx, cfg, path)
		if err != nil {
			continue
		}
		for _, ch := range chunks {
			batch = append(batch, toVectorChunk(ch))
			if len(batch) >= cfg.BatchSize {
				if err := flush(); err != nil {
					return result, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	if c.SnapshotPath != "" {
		if err := current.Save(c.SnapshotPath); err != nil {
			return result, err
		}
	}
	return result, nil
}

func removePath(ctx context.Context, cfg *Config, collection, relPath string) error {
	return cfg.VectorDB.DeleteByFilter(ctx, collection, vectordb.Filter{RelativePath: relPath})
}

func chunkPath(ctx context.Context, cfg *Config, relPath string) ([]*chunk.Chunk, error) {
	absPath := filepath.Join(cfg.Root, relPath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, indexerrors.Wrap(indexerrors.ErrCodeFileNotFound, err)
	}
	return cfg.Chunker.Chunk(ctx, &chunk.FileInput{
		Path:     relPath,
		Content:  content,
		Language: scanner.DetectLanguage(relPath),
	})
}

// readTree reads every file the scanner discovers under cfg.Root into
// memory, keyed by path relative to root, for snapshot construction. Using
// the scanner (rather than a bare filepath.Walk) means the snapshot honors
// the same .gitignore and exclusion rules the initial index was built
// with, so a sync never reports a change for a file the index never
// tracked in the first place.
func readTree(ctx context.Context, cfg *Config) (map[string][]byte, error) {
	scanOpts := cfg.ScanOptions
	if scanOpts == nil {
		scanOpts = &scanner.ScanOptions{RootDir: cfg.Root, RespectGitignore: true}
	}
	results, err := cfg.Scanner.Scan(ctx, scanOpts)
	if err != nil {
		return nil, err
	}

	contents := make(map[string][]byte)
	for sr := range results {
		if sr.Error != nil {
			continue
		}
		data, err := os.ReadFile(sr.File.AbsPath)
		if err != nil {
			continue
		}
		contents[sr.File.Path] = data
	}
	return contents, nil
}
