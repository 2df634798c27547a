package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerkleRootDeterministic(t *testing.T) {
	hashes := map[string]string{
		"a.go": "aaa",
		"b.go": "bbb",
		"c.go": "ccc",
	}
	root1 := MerkleRootOf(hashes)
	root2 := MerkleRootOf(hashes)
	assert.Equal(t, root1, root2, "same file set must produce the same root")
}

func TestMerkleRootChangesWithContent(t *testing.T) {
	base := map[string]string{"a.go": "aaa", "b.go": "bbb"}
	changed := map[string]string{"a.go": "aaa", "b.go": "zzz"}
	assert.NotEqual(t, MerkleRootOf(base), MerkleRootOf(changed))
}

func TestMerkleRootOddLeafCount(t *testing.T) {
	// Exercises the duplicate-last-node path at three levels: 3, 5, and 7 leaves.
	for _, n := range []int{3, 5, 7} {
		hashes := make(map[string]string, n)
		for i := 0; i < n; i++ {
			hashes[string(rune('a'+i))+".go"] = string(rune('a' + i))
		}
		root := MerkleRootOf(hashes)
		assert.Len(t, root, 64, "sha256 hex digest should be 64 chars")
	}
}

func TestMerkleRootEmpty(t *testing.T) {
	root := MerkleRootOf(map[string]string{})
	assert.Len(t, root, 64)
}

func TestNewBuildsSnapshot(t *testing.T) {
	contents := map[string][]byte{
		"main.go": []byte("package main"),
		"util.go": []byte("package main\nfunc Util() {}"),
	}
	s := New("/repo", contents, []string{"*.log"})

	require.Len(t, s.FileHashes, 2)
	assert.NotEmpty(t, s.MerkleRoot)
	assert.Equal(t, "/repo", s.Root)
	assert.Equal(t, []string{"*.log"}, s.IgnorePatterns)
}

func TestCompareWithDetectsAddedRemovedModified(t *testing.T) {
	previous := New("/repo", map[string][]byte{
		"a.go": []byte("one"),
		"b.go": []byte("two"),
	}, nil)

	current := New("/repo", map[string][]byte{
		"a.go": []byte("one-changed"),
		"c.go": []byte("three"),
	}, nil)

	diff := current.CompareWith(previous)
	assert.Equal(t, []string{"c.go"}, diff.Added)
	assert.Equal(t, []string{"b.go"}, diff.Removed)
	assert.Equal(t, []string{"a.go"}, diff.Modified)
}

func TestCompareWithNilPreviousReportsAllAdded(t *testing.T) {
	current := New("/repo", map[string][]byte{"a.go": []byte("x")}, nil)
	diff := current.CompareWith(nil)
	assert.Equal(t, []string{"a.go"}, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Empty(t, diff.Modified)
}

func TestUpdateFileHashesAddsRemovesAndRecomputesRoot(t *testing.T) {
	s := New("/repo", map[string][]byte{"a.go": []byte("one")}, nil)
	originalRoot := s.MerkleRoot

	s.UpdateFileHashes(map[string][]byte{
		"a.go": nil, // deletion
		"b.go": []byte("two"),
	})

	assert.NotEqual(t, originalRoot, s.MerkleRoot)
	_, hasA := s.FileHashes["a.go"]
	assert.False(t, hasA)
	_, hasB := s.FileHashes["b.go"]
	assert.True(t, hasB)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	s := New("/repo", map[string][]byte{"a.go": []byte("one")}, []string{"vendor/"})
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, s.MerkleRoot, loaded.MerkleRoot)
	assert.Equal(t, s.FileHashes, loaded.FileHashes)
	assert.Equal(t, s.IgnorePatterns, loaded.IgnorePatterns)
}

func TestLoadMissingFileReturnsNilNil(t *testing.T) {
	dir := t.TempDir()
	loaded, err := Load(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadCorruptFileRenamesAsideAndReturnsNil(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	_, statErr := os.Stat(path + ".bak")
	assert.NoError(t, statErr, "corrupt snapshot should be renamed aside with .bak")
	_, statErr = os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "original corrupt path should no longer exist")
}
