package errors

// Error codes for the indexing and synchronization engine (6XX).
// These extend the ERR_XXX taxonomy with the kinds the indexing pipeline,
// sync engine, and watcher distinguish explicitly.
const (
	// ErrCodeAlreadyIndexing indicates a request arrived for a root that is
	// already transitioning through IndexingState.
	ErrCodeAlreadyIndexing = "ERR_601_ALREADY_INDEXING"

	// ErrCodeCollectionLimitExceeded is the code attached to the
	// distinguished, never-retried, never-wrapped quota signal. Callers must
	// not compare on this code alone for the canonical message match — see
	// CollectionLimitExceededMessage.
	ErrCodeCollectionLimitExceeded = "ERR_602_COLLECTION_LIMIT_EXCEEDED"

	// ErrCodeParseFailure indicates the AST splitter failed to parse a file;
	// demoted to a warning, the file is re-chunked by the size splitter.
	ErrCodeParseFailure = "ERR_603_PARSE_FAILURE"

	// ErrCodeSnapshotCorruption indicates a malformed snapshot file, renamed
	// aside with a .bak suffix and treated as missing.
	ErrCodeSnapshotCorruption = "ERR_604_SNAPSHOT_CORRUPTION"

	// ErrCodeCancelled indicates a user-initiated cancellation; partial work
	// accumulated so far is not reported as a failure.
	ErrCodeCancelled = "ERR_605_CANCELLED"
)

// CollectionLimitExceededMessage is the canonical, byte-exact message for
// the vector DB's "too many collections" signal. It is never wrapped with
// %w and never routed through a retry loop: callers compare err.Error()
// against this constant directly rather than using errors.Is, matching the
// distinguished-signal contract the indexing pipeline and search/clear
// paths all rely on.
const CollectionLimitExceededMessage = "exceeded the limit number of collections"

func init() {
	categoryOverrides[ErrCodeAlreadyIndexing] = CategoryValidation
	categoryOverrides[ErrCodeCollectionLimitExceeded] = CategoryNetwork
	categoryOverrides[ErrCodeParseFailure] = CategoryIO
	categoryOverrides[ErrCodeSnapshotCorruption] = CategoryIO
	categoryOverrides[ErrCodeCancelled] = CategoryInternal

	severityOverrides[ErrCodeAlreadyIndexing] = SeverityWarning
	severityOverrides[ErrCodeCollectionLimitExceeded] = SeverityFatal
	severityOverrides[ErrCodeParseFailure] = SeverityWarning
	severityOverrides[ErrCodeSnapshotCorruption] = SeverityWarning
	severityOverrides[ErrCodeCancelled] = SeverityInfo
}
