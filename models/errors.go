package models

import (
	"errors"
	"fmt"
)

// Domain errors represent business failures of the retrieval subsystem.
// Infrastructure failures are wrapped as ErrStorage.
var (
	// ErrNodeNotFound indicates the referenced node does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDocumentNotFound indicates the referenced document does not exist
	// in the given node.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrUnsupportedFormat indicates no text extractor accepts the upload's
	// MIME type or extension.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrInvalidName indicates a node name that is empty after trimming.
	ErrInvalidName = errors.New("invalid node name")

	// ErrDuplicateName indicates a node with the same name already exists.
	ErrDuplicateName = errors.New("node name already exists")

	// ErrInvalidParameters indicates query parameters outside their valid
	// ranges (empty query, returnK > topK, alpha outside [0,1]).
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrInvalidConfig indicates an unusable chunking configuration
	// (window <= 0 or overlap >= window).
	ErrInvalidConfig = errors.New("invalid chunking config")

	// ErrStorage indicates the persistence layer failed.
	ErrStorage = errors.New("storage error")
)

// EmbeddingProviderError wraps a failure of the external embedding provider.
// Transient failures (timeouts, rate limits, open breaker) are safe to retry
// with backoff; permanent ones abort ingestion.
type EmbeddingProviderError struct {
	Transient bool
	Err       error
}

func (e *EmbeddingProviderError) Error() string {
	if e.Transient {
		return fmt.Sprintf("embedding provider error (transient): %v", e.Err)
	}
	return fmt.Sprintf("embedding provider error: %v", e.Err)
}

func (e *EmbeddingProviderError) Unwrap() error { return e.Err }

// IsTransientEmbeddingError reports whether err is a retryable provider
// failure.
func IsTransientEmbeddingError(err error) bool {
	var pe *EmbeddingProviderError
	return errors.As(err, &pe) && pe.Transient
}
