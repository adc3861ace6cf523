package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/berdachuk/medexpertmatch/ai"
)

// MaxEmbeddingBatch is the largest number of texts sent in one request.
const MaxEmbeddingBatch = 64

// Embedder implements ai.Embedder over an OpenAI-compatible embeddings endpoint.
// Large batches are split into requests of at most MaxEmbeddingBatch texts.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("embedding client %s: %w", config.EmbeddingModel, err)
	}
	// Case descriptions are multi-line; newlines carry no meaning for the model.
	inner, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	return newEmbedderWith(inner, config.EmbeddingModel), nil
}

func newEmbedderWith(inner embeddings.Embedder, model string) *Embedder {
	return &Embedder{
		embedder: inner,
		model:    model,
		logger:   slog.Default().With("component", "openai-embedder", "model", model),
	}
}

// NewEmbedder validates config and returns an embedder for its embedding model.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newEmbedder(config)
}

// EmbedText embeds a single case description.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, ai.ErrEmptyResponse
	}
	return vecs[0], nil
}

// EmbedTexts embeds texts in order, one request per MaxEmbeddingBatch texts.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxEmbeddingBatch {
		end := min(start+MaxEmbeddingBatch, len(texts))
		part := texts[start:end]

		vecs, err := e.embedder.EmbedDocuments(ctx, part)
		if err != nil {
			e.logger.Error("embedding request failed", "offset", start, "count", len(part), "err", err)
			return nil, fmt.Errorf("embed %d texts with %s: %w", len(part), e.model, err)
		}
		if len(vecs) != len(part) {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", ai.ErrBatchSizeMismatch, len(vecs), len(part))
		}
		out = append(out, vecs...)
	}
	e.logger.Debug("embedded texts", "count", len(texts))
	return out, nil
}
