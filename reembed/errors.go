package reembed

import "errors"

var (
	// ErrCaseRepositoryRequired is returned when no case repository is given.
	ErrCaseRepositoryRequired = errors.New("reembed: case repository is required")

	// ErrVectorIndexRequired is returned when no vector index is given.
	ErrVectorIndexRequired = errors.New("reembed: vector index is required")

	// ErrEmbedderRequired is returned when no embedder is given.
	ErrEmbedderRequired = errors.New("reembed: embedder is required")
)
