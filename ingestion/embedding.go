package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/signals"
	"github.com/berdachuk/medexpertmatch/storage"
)

// embeddingProcessor stores a vector for every case with text.
type embeddingProcessor struct {
	vectors  storage.VectorIndex
	embedder ai.Embedder
	logger   *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// process embeds the cases in one batch call and stores the vectors.
func (ep *embeddingProcessor) process(ctx context.Context, cases []*core.Case) error {
	var ids, texts []string
	for _, c := range cases {
		if text := signals.DefaultCaseText(c); text != "" {
			ids = append(ids, c.ID)
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	ep.logger.Debug("generating embeddings for cases", "cases", len(texts))
	embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}
	if len(embeddings) != len(texts) {
		return fmt.Errorf("%w: expected %d, received %d", ai.ErrBatchSizeMismatch, len(texts), len(embeddings))
	}

	for i, id := range ids {
		if err := ep.vectors.PutCaseVector(ctx, id, embeddings[i]); err != nil {
			return fmt.Errorf("store vector %s: %w", id, err)
		}
	}
	return nil
}
