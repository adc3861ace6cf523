package ingestion

import "errors"

var (
	// ErrCaseRepositoryRequired is returned when a case repository is not provided.
	ErrCaseRepositoryRequired = errors.New("case repository required")

	// ErrVectorIndexRequired is returned when an embedder is configured without a vector index.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrPipelineReleased is returned by Ingest after Release.
	ErrPipelineReleased = errors.New("pipeline released")
)
