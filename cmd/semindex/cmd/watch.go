package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesearch/semindex/internal/chunk"
	"github.com/codesearch/semindex/internal/config"
	"github.com/codesearch/semindex/internal/embed"
	"github.com/codesearch/semindex/internal/logging"
	"github.com/codesearch/semindex/internal/pipeline"
	"github.com/codesearch/semindex/internal/scanner"
	"github.com/codesearch/semindex/internal/snapshot"
	"github.com/codesearch/semindex/internal/state"
	"github.com/codesearch/semindex/internal/watcher"
)

// newWatchCmd builds the continuous-sync command: it runs an initial sync,
// then keeps the vector index up to date as files change by draining a
// debounced watcher queue through the same pipeline.Sync path "sync" uses
// for its one-shot runs.
func newWatchCmd() *cobra.Command {
	var vectorAddr string

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Keep the semantic vector index in sync as files change",
		Long: `Run an initial sync, then watch the directory for changes and
incrementally re-sync the vector index whenever files are added,
modified, or removed.

Changed paths are coalesced by a debouncer and drained on a fixed
interval, so a burst of saves during a rebuild or git checkout triggers
one re-sync instead of one per file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runWatch(ctx, cmd, path, vectorAddr)
		},
	}

	cmd.Flags().StringVar(&vectorAddr, "vector-addr", "", "Base URL of a remote vector database (defaults to the local HNSW store)")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, path, vectorAddr string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	logCfg.FilePath = logging.WatchLogPath()
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	root, err := config.FindProjectRoot(absPath)
	if err != nil {
		root = absPath
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	dataDir := filepath.Join(root, ".semindex")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	sc, err := scanner.New()
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	var chunker chunk.Chunker
	if cfg.Indexing.Splitter == "ast" {
		chunker = chunk.NewCodeChunker()
	} else {
		chunker = chunk.NewSizeSplitter()
	}

	embedCtx, embedCancel := context.WithTimeout(ctx, 15*time.Second)
	provider := embed.ParseProvider(cfg.Embeddings.Provider)
	embedder, err := embed.NewEmbedder(embedCtx, provider, cfg.Embeddings.Model)
	embedCancel()
	if err != nil {
		return fmt.Errorf("embedder initialization failed: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	vdb, err := newVectorClient(cfg, dataDir, vectorAddr)
	if err != nil {
		return err
	}
	defer func() { _ = vdb.Close() }()

	snapshotPath := filepath.Join(dataDir, "snapshot.json")
	idxState := state.New()
	collection := pipeline.CollectionName(root)
	var collectionReady bool

	runOnce := func(ctx context.Context) (*pipeline.Result, error) {
		previous, _ := snapshot.Load(snapshotPath)
		if !collectionReady {
			if previous == nil {
				if err := vdb.CreateCollection(ctx, collection, embedder.Dimensions()); err != nil {
					return nil, err
				}
			} else if err := vdb.LoadCollection(ctx, collection); err != nil {
				return nil, err
			}
			collectionReady = true
		}
		return pipeline.Sync(ctx, &pipeline.SyncConfig{
			Config: pipeline.Config{
				Root:         root,
				DataDir:      dataDir,
				Scanner:      sc,
				Chunker:      chunker,
				Embedder:     embedder,
				VectorDB:     vdb,
				State:        idxState,
				BatchSize:    cfg.Indexing.BatchSize,
				ChunkCeiling: cfg.Indexing.ChunkCeiling,
			},
			PreviousSnapshot: previous,
			SnapshotPath:     snapshotPath,
			IgnorePatterns:   cfg.Indexing.IgnorePatterns,
		})
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "running initial sync of %s...\n", root)
	if result, err := runOnce(ctx); err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	} else {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files scanned, %d chunks indexed\n", result.Status, result.FilesScanned, result.ChunksIndexed)
	}

	opts := watcher.DefaultOptions().WithDefaults()
	opts.IgnorePatterns = cfg.Indexing.IgnorePatterns
	hw, err := watcher.NewHybridWatcher(opts)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := hw.Start(ctx, root); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = hw.Stop() }()

	queue := watcher.NewFileChangeQueue()

	interval := 3 * time.Second
	if cfg.Indexing.QueueProcessInterval != "" {
		if d, err := time.ParseDuration(cfg.Indexing.QueueProcessInterval); err == nil && d > 0 {
			interval = d
		}
	}

	drainer := watcher.NewDrainer(queue, interval, func(ctx context.Context, paths []string) {
		result, err := runOnce(ctx)
		if err != nil {
			slog.Error("watch_sync_failed", slog.String("error", err.Error()), slog.Int("paths", len(paths)))
			return
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "re-synced %d changed paths: %s (+%d added, %d modified, %d removed)\n",
			len(paths), result.Status, result.Added, result.Modified, result.Removed)
	})
	drainer.Start(ctx)
	defer drainer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case events, ok := <-hw.Events():
			if !ok {
				return nil
			}
			queue.Enqueue(events)
		case werr, ok := <-hw.Errors():
			if !ok {
				continue
			}
			slog.Warn("watcher_error", slog.String("error", werr.Error()))
		}
	}
}
