package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_IndexingDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "size", cfg.Indexing.Splitter)
	assert.Equal(t, 450000, cfg.Indexing.ChunkCeiling)
	assert.Equal(t, 64, cfg.Indexing.BatchSize)
	assert.Equal(t, "3s", cfg.Indexing.QueueProcessInterval)
	assert.False(t, cfg.Indexing.EnableEncryption)
	assert.Equal(t, 5, cfg.Embeddings.Concurrency)
}

func TestLoad_YamlOverridesIndexing(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
version: 1
indexing:
  splitter: ast
  chunk_ceiling: 1000
  queue_process_interval: 10s
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".semindex.yaml"), []byte(configContent), 0o644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "ast", cfg.Indexing.Splitter)
	assert.Equal(t, 1000, cfg.Indexing.ChunkCeiling)
	assert.Equal(t, "10s", cfg.Indexing.QueueProcessInterval)
}

func TestValidate_RejectsUnknownSplitter(t *testing.T) {
	cfg := NewConfig()
	cfg.Indexing.Splitter = "regex"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "splitter")
}

func TestValidate_AcceptsNewEmbeddingProviders(t *testing.T) {
	for _, p := range []string{"openai", "azure", "local"} {
		cfg := NewConfig()
		cfg.Embeddings.Provider = p
		assert.NoError(t, cfg.Validate(), "provider %s should be valid", p)
	}
}

func TestLoad_EnvVarOverridesOpenAIAPIKey(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("SEMINDEX_OPENAI_API_KEY", "sk-test-123")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.Embeddings.OpenAIAPIKey)
}

func TestLoad_EnvVarOverridesChunkCeiling(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("SEMINDEX_CHUNK_CEILING", "777")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 777, cfg.Indexing.ChunkCeiling)
}

func TestLoad_EnvVarSettingEncryptionKeyEnablesEncryption(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONTEXT_ENCRYPTION_KEY", "a-passphrase")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.True(t, cfg.Indexing.EnableEncryption)
}

func TestMergeNewDefaults_AddsIndexingFields(t *testing.T) {
	cfg := &Config{}
	added := cfg.MergeNewDefaults()
	assert.Contains(t, added, "indexing.splitter")
	assert.Contains(t, added, "indexing.chunk_ceiling")
	assert.Equal(t, "size", cfg.Indexing.Splitter)
}
