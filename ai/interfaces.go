package ai

import (
	"context"

	"github.com/berdachuk/medexpertmatch/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The result has the same length and order as texts; implementations
	// return ErrBatchSizeMismatch otherwise.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TextGenerator produces free text from a system and a user prompt.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// CaseAnalyzer infers the triage fields of a case from its free text.
type CaseAnalyzer interface {
	// AnalyzeCase returns urgency, ICD-10 codes and the required specialty.
	// Fields the model could not determine are left zero.
	AnalyzeCase(ctx context.Context, c *core.Case) (*CaseAnalysis, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	Embedder() Embedder
	Generator() TextGenerator
	Analyzer() CaseAnalyzer

	// Close releases resources held by the provider and its services.
	Close() error
}
