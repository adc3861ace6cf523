package signals

import (
	"context"
	"log/slog"
	"strings"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/core"
)

// VectorIndex answers similarity questions over stored case vectors.
type VectorIndex interface {
	// DoctorSimilarity returns, per doctor, the average cosine between vec and
	// the vectors of cases the doctor treated. Doctors without vectors are omitted.
	DoctorSimilarity(ctx context.Context, vec []float32, doctorIDs []string) (map[string]float64, error)
}

// CaseVectorLookup returns a stored vector for a case, if one exists.
type CaseVectorLookup interface {
	CaseVector(ctx context.Context, caseID string) ([]float32, bool, error)
}

// EmbeddingAdapter implements EmbeddingSource with an embedder and a vector index.
type EmbeddingAdapter struct {
	embedder ai.Embedder
	index    VectorIndex
	stored   CaseVectorLookup
	caseText func(*core.Case) string
	logger   *slog.Logger
}

var _ EmbeddingSource = (*EmbeddingAdapter)(nil)

// EmbeddingOption configures an EmbeddingAdapter.
type EmbeddingOption func(*EmbeddingAdapter) error

// WithStoredVectors reuses a case's stored vector instead of embedding again.
func WithStoredVectors(lookup CaseVectorLookup) EmbeddingOption {
	return func(a *EmbeddingAdapter) error {
		a.stored = lookup
		return nil
	}
}

// WithCaseText overrides how the text to embed is derived from a case.
// Default is the abstract when present, otherwise the case's search text.
func WithCaseText(fn func(*core.Case) string) EmbeddingOption {
	return func(a *EmbeddingAdapter) error {
		if fn != nil {
			a.caseText = fn
		}
		return nil
	}
}

// WithEmbeddingLogger sets a custom logger.
func WithEmbeddingLogger(logger *slog.Logger) EmbeddingOption {
	return func(a *EmbeddingAdapter) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewEmbeddingAdapter creates an embedding signal source.
func NewEmbeddingAdapter(embedder ai.Embedder, index VectorIndex, opts ...EmbeddingOption) (*EmbeddingAdapter, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	a := &EmbeddingAdapter{
		embedder: embedder,
		index:    index,
		caseText: DefaultCaseText,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "embedding-signal")
	return a, nil
}

// DefaultCaseText is the abstract when present, otherwise SearchText.
func DefaultCaseText(c *core.Case) string {
	if s := strings.TrimSpace(c.Abstract); s != "" {
		return s
	}
	return c.SearchText()
}

// Similarity embeds the case and asks the index for per-doctor cosine.
func (a *EmbeddingAdapter) Similarity(ctx context.Context, c *core.Case, doctorIDs []string) (map[string]float64, error) {
	vec, err := a.caseVector(ctx, c)
	if err != nil {
		return nil, err
	}
	return a.index.DoctorSimilarity(ctx, vec, doctorIDs)
}

func (a *EmbeddingAdapter) caseVector(ctx context.Context, c *core.Case) ([]float32, error) {
	if a.stored != nil && c.ID != "" {
		vec, ok, err := a.stored.CaseVector(ctx, c.ID)
		if err != nil {
			a.logger.Warn("stored case vector lookup failed, embedding instead", "case", c.ID, "err", err)
		} else if ok && len(vec) > 0 {
			return vec, nil
		}
	}
	text := a.caseText(c)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyCaseText
	}
	return a.embedder.EmbedText(ctx, text)
}
