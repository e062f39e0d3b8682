package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmbedderRequired is returned when no embedder is supplied.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrSameDirectory is returned when the rebuild target is the source corpus.
	ErrSameDirectory = errors.New("target directory must differ from source")

	// ErrTargetNotEmpty is returned when the target directory already holds documents.
	ErrTargetNotEmpty = errors.New("target corpus is not empty")
)
