// Package state tracks the process-wide indexing status of each codebase
// root the engine has touched. It is one of exactly two process-wide
// mutables in this module (the other is the embedding-concurrency
// semaphore in internal/embed); both are guarded by a single lock and
// neither leaks into the rest of the package surface.
package state

import (
	"sync"

	indexerrors "github.com/codesearch/semindex/internal/errors"
)

// Phase is the lifecycle phase of a codebase root.
type Phase string

const (
	// Idle means no indexing or sync operation is in flight for the root.
	Idle Phase = "idle"
	// Indexing means a full index or incremental sync is currently running.
	Indexing Phase = "indexing"
	// Indexed means the most recent index or sync completed successfully.
	Indexed Phase = "indexed"
)

// IndexingState is the process-wide mapping codebaseRoot -> phase.
// Exactly one phase is recorded per root at any instant. Transitions are:
// idle -> indexing (on start), indexing -> indexed (on success),
// indexing -> idle (on failure or cancellation).
type IndexingState struct {
	mu    sync.Mutex
	phase map[string]Phase
}

// New creates an empty IndexingState.
func New() *IndexingState {
	return &IndexingState{phase: make(map[string]Phase)}
}

// Get returns the current phase for root, defaulting to Idle.
func (s *IndexingState) Get(root string) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.phase[root]; ok {
		return p
	}
	return Idle
}

// Begin transitions root from Idle to Indexing. It returns AlreadyIndexing
// if root is already in the Indexing phase; Indexed or Idle roots may
// always begin a new operation.
func (s *IndexingState) Begin(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase[root] == Indexing {
		return indexerrors.New(indexerrors.ErrCodeAlreadyIndexing,
			"indexing already in progress for "+root, nil)
	}
	s.phase[root] = Indexing
	return nil
}

// Succeed transitions root from Indexing to Indexed.
func (s *IndexingState) Succeed(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase[root] = Indexed
}

// Fail transitions root from Indexing back to Idle. Used on both
// unrecoverable failure and user-initiated cancellation; in either case no
// snapshot is persisted, so the next attempt performs a full rescan.
func (s *IndexingState) Fail(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase[root] = Idle
}

// Snapshot returns the indexed and indexing root lists, mirroring the
// "codebase snapshot of state" external interface (spec.md section 6):
// { indexedCodebases: [...], indexingCodebases: [...] }.
func (s *IndexingState) Snapshot() (indexed, indexing []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for root, p := range s.phase {
		switch p {
		case Indexed:
			indexed = append(indexed, root)
		case Indexing:
			indexing = append(indexing, root)
		}
	}
	return indexed, indexing
}
