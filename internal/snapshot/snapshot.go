// Package snapshot builds and persists the Merkle-tree view of a codebase
// used to detect incremental changes between sync runs. A Snapshot is a
// pure function of the set of (path, content) pairs it was built from: the
// same file set always produces the same merkle root, which is what lets
// the sync engine treat root equality as a cheap "nothing changed" check.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	indexerrors "github.com/codesearch/semindex/internal/errors"
)

// Snapshot is the persisted, content-addressed view of one codebase root at
// a point in time.
type Snapshot struct {
	Root           string            `json:"root"`
	FileHashes     map[string]string `json:"fileHashes"` // relative path -> sha256(content) hex
	MerkleRoot     string            `json:"merkleRoot"`
	IgnorePatterns []string          `json:"ignorePatterns"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Diff is the result of comparing two snapshots: the three disjoint sets of
// relative paths that changed between them.
type Diff struct {
	Added    []string
	Removed  []string
	Modified []string
}

// IsEmpty reports whether the diff carries no changes at all.
func (d Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// New builds a Snapshot from a relative-path -> raw-content map. Content
// hashes and the merkle root are computed here; callers read files and pass
// the bytes in so this package stays free of filesystem concerns.
func New(root string, contents map[string][]byte, ignorePatterns []string) *Snapshot {
	hashes := make(map[string]string, len(contents))
	for path, content := range contents {
		hashes[path] = hashFileContent(content)
	}
	now := timeNow()
	return &Snapshot{
		Root:           root,
		FileHashes:     hashes,
		MerkleRoot:     MerkleRootOf(hashes),
		IgnorePatterns: append([]string(nil), ignorePatterns...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// hashFileContent returns the leaf content hash, sha256(content) hex-encoded.
func hashFileContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// leafHash combines a relative path with its content hash into the Merkle
// leaf value: sha256(path + "\0" + sha256(content)).
func leafHash(path, contentHash string) []byte {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(contentHash))
	return h.Sum(nil)
}

// MerkleRootOf computes the merkle root over a relative-path -> content-hash
// map. Leaves are sorted by path first so the root is deterministic
// regardless of map iteration order. An odd node count at any level
// duplicates the final node rather than promoting it unpaired, so the tree
// shape itself is a pure function of the leaf count.
func MerkleRootOf(fileHashes map[string]string) string {
	if len(fileHashes) == 0 {
		return hex.EncodeToString(sha256.New().Sum(nil))
	}

	paths := make([]string, 0, len(fileHashes))
	for path := range fileHashes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	level := make([][]byte, 0, len(paths))
	for _, path := range paths {
		level = append(level, leafHash(path, fileHashes[path]))
	}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			h := sha256.New()
			h.Write(level[i])
			h.Write(level[i+1])
			next = append(next, h.Sum(nil))
		}
		level = next
	}
	return hex.EncodeToString(level[0])
}

// CompareWith diffs s against previous and returns the added, removed, and
// modified relative paths. A nil previous is treated as an empty snapshot,
// so every path in s is reported as added.
func (s *Snapshot) CompareWith(previous *Snapshot) Diff {
	var prevHashes map[string]string
	if previous != nil {
		prevHashes = previous.FileHashes
	}

	var diff Diff
	for path, hash := range s.FileHashes {
		prevHash, existed := prevHashes[path]
		if !existed {
			diff.Added = append(diff.Added, path)
		} else if prevHash != hash {
			diff.Modified = append(diff.Modified, path)
		}
	}
	for path := range prevHashes {
		if _, stillPresent := s.FileHashes[path]; !stillPresent {
			diff.Removed = append(diff.Removed, path)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Modified)
	return diff
}

// UpdateFileHashes recomputes the hash entries for the given relative paths
// from fresh content, recomputes the merkle root, and bumps UpdatedAt. Paths
// whose content is not present in updates are left untouched; pass a nil
// byte slice for a path to remove it from the snapshot entirely (the
// caller's deletion case).
func (s *Snapshot) UpdateFileHashes(updates map[string][]byte) {
	for path, content := range updates {
		if content == nil {
			delete(s.FileHashes, path)
			continue
		}
		s.FileHashes[path] = hashFileContent(content)
	}
	s.MerkleRoot = MerkleRootOf(s.FileHashes)
	s.UpdatedAt = timeNow()
}

// Serialize marshals the snapshot to indented JSON for on-disk storage.
func (s *Snapshot) Serialize() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Deserialize parses a previously serialized snapshot.
func Deserialize(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, indexerrors.New(indexerrors.ErrCodeSnapshotCorruption,
			"snapshot file is not valid JSON", err)
	}
	return &s, nil
}

// Save persists the snapshot to path, writing to a temp file in the same
// directory and renaming into place so a crash mid-write never leaves a
// half-written snapshot visible to readers.
func (s *Snapshot) Save(path string) error {
	data, err := s.Serialize()
	if err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeInternal, err)
	}

	dir := filepath.Dir(path)
	tmp := path + ".tmp"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeFilePermission, err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeFilePermission, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeFilePermission, err)
	}
	return nil
}

// Load reads and parses a snapshot from path. A snapshot that fails to
// parse is treated as corrupt: the bad file is moved aside with a .bak
// suffix (overwriting any previous .bak) and Load returns
// (nil, nil) so the caller falls back to a full rescan rather than
// aborting. A missing file is not an error: it also returns (nil, nil),
// covering the "no prior snapshot" first-run case.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, indexerrors.Wrap(indexerrors.ErrCodeFilePermission, err)
	}

	s, err := Deserialize(data)
	if err != nil {
		bakPath := path + ".bak"
		_ = os.Rename(path, bakPath)
		return nil, nil
	}
	return s, nil
}

// timeNow exists so tests can be written against deterministic clocks later
// without touching every call site; for now it is a thin wrapper over the
// real clock.
func timeNow() time.Time {
	return time.Now()
}
