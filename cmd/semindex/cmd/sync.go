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
	"github.com/codesearch/semindex/internal/scanner"
	"github.com/codesearch/semindex/internal/snapshot"
	"github.com/codesearch/semindex/internal/state"
	"github.com/codesearch/semindex/internal/vectordb"

	"github.com/codesearch/semindex/internal/pipeline"
)

// newSyncCmd builds the semantic vector sync command. It drives the
// scan/chunk/embed/upsert pipeline directly against a pluggable
// vectordb.Client, so the same collection can live in the embedded HNSW
// store or a remote vector database reachable over HTTP.
func newSyncCmd() *cobra.Command {
	var (
		full       bool
		vectorAddr string
	)

	cmd := &cobra.Command{
		Use:   "sync [path]",
		Short: "Sync a directory into the semantic vector index",
		Long: `Scan, chunk, embed and upsert a directory's source files into the
vector index used for semantic code search.

A plain "sync" diffs the codebase against the last saved merkle snapshot
and only re-embeds what changed. Pass --full to drop the snapshot and
rebuild the collection from scratch.

By default chunks are stored in the local HNSW-backed vector store under
the project's data directory. Pass --vector-addr to upsert into a remote
vector database reachable over HTTP instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runSync(ctx, cmd, path, full, vectorAddr)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Discard any existing snapshot and rebuild the collection from scratch")
	cmd.Flags().StringVar(&vectorAddr, "vector-addr", "", "Base URL of a remote vector database (defaults to the local HNSW store)")

	return cmd
}

func runSync(ctx context.Context, cmd *cobra.Command, path string, full bool, vectorAddr string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", absPath)
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
	var previous *snapshot.Snapshot
	if !full {
		if prev, err := snapshot.Load(snapshotPath); err == nil {
			previous = prev
		}
	} else {
		_ = os.Remove(snapshotPath)
	}

	syncCfg := &pipeline.SyncConfig{
		Config: pipeline.Config{
			Root:         root,
			DataDir:      dataDir,
			Scanner:      sc,
			Chunker:      chunker,
			Embedder:     embedder,
			VectorDB:     vdb,
			State:        state.New(),
			BatchSize:    cfg.Indexing.BatchSize,
			ChunkCeiling: cfg.Indexing.ChunkCeiling,
			ProgressFunc: func(filesScanned, chunksIndexed int) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\rscanned %d files, indexed %d chunks", filesScanned, chunksIndexed)
			},
		},
		PreviousSnapshot: previous,
		SnapshotPath:     snapshotPath,
		IgnorePatterns:   cfg.Indexing.IgnorePatterns,
	}

	collection := pipeline.CollectionName(root)
	if previous == nil {
		if exists, err := vdb.HasCollection(ctx, collection); err == nil && exists {
			_ = vdb.DropCollection(ctx, collection)
		}
		if err := vdb.CreateCollection(ctx, collection, embedder.Dimensions()); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	} else if err := vdb.LoadCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to load existing collection: %w", err)
	}

	result, err := pipeline.Sync(ctx, syncCfg)
	if result != nil {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n%s: %d files scanned, %d chunks indexed (+%d added, %d modified, %d removed)\n",
			result.Status, result.FilesScanned, result.ChunksIndexed, result.Added, result.Modified, result.Removed)
	}
	return err
}

// newVectorClient builds the vectordb.Client a sync or watch run should
// write to: a remote HTTP backend when vectorAddr is set, otherwise the
// local HNSW store under dataDir. When content encryption is enabled the
// result is wrapped so chunk text never reaches the backend in plaintext.
func newVectorClient(cfg *config.Config, dataDir, vectorAddr string) (vectordb.Client, error) {
	var client vectordb.Client
	if vectorAddr != "" {
		client = vectordb.NewHTTPBackend(vectorAddr, cfg.Embeddings.OpenAIAPIKey)
	} else {
		client = vectordb.NewHNSWBackend(dataDir)
	}

	if cfg.Indexing.EnableEncryption {
		passphrase := os.Getenv("CONTEXT_ENCRYPTION_KEY")
		if passphrase == "" {
			return nil, fmt.Errorf("indexing.enable_encryption is set but CONTEXT_ENCRYPTION_KEY is empty")
		}
		client = vectordb.NewEncryptedClient(client, passphrase)
	}
	return client, nil
}
