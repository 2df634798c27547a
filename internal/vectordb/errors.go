package vectordb

import indexerrors "github.com/codesearch/semindex/internal/errors"

// CollectionLimitExceededError is the distinguished, never-retried,
// never-wrapped signal a backend raises when it is out of room for new
// collections. Callers are expected to compare against
// indexerrors.CollectionLimitExceededMessage by exact string, not
// errors.Is, so this type deliberately does not participate in Unwrap.
type CollectionLimitExceededError struct {
	Collection string
}

func (e *CollectionLimitExceededError) Error() string {
	return indexerrors.CollectionLimitExceededMessage
}

// IsCollectionLimitExceeded reports whether err is the distinguished quota
// signal, matching on the exact canonical message rather than type
// assertion or errors.Is, per the no-wrap contract backends must honor.
func IsCollectionLimitExceeded(err error) bool {
	if err == nil {
		return false
	}
	return err.Error() == indexerrors.CollectionLimitExceededMessage
}
