package reembed

import (
	"context"
	"fmt"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/resilience"
	"github.com/berdachuk/medexpertmatch/signals"
	"github.com/berdachuk/medexpertmatch/storage"
)

// BatchResult counts what one batch did.
type BatchResult struct {
	Embedded int
	// Skipped cases have no text to embed.
	Skipped int
}

// BatchProcessor embeds one batch of cases and stores the vectors.
type BatchProcessor struct {
	vectors  storage.VectorIndex
	embedder ai.Embedder
	policy   resilience.Policy
}

// NewBatchProcessor creates a processor that retries embedding per policy.
func NewBatchProcessor(vectors storage.VectorIndex, embedder ai.Embedder, policy resilience.Policy) *BatchProcessor {
	return &BatchProcessor{vectors: vectors, embedder: embedder, policy: policy}
}

// Process embeds the text of every case in one call and writes the
// normalized vectors.
func (bp *BatchProcessor) Process(ctx context.Context, cases []*core.Case) (BatchResult, error) {
	var res BatchResult
	texts := make([]string, 0, len(cases))
	targets := make([]*core.Case, 0, len(cases))
	for _, c := range cases {
		text := signals.DefaultCaseText(c)
		if text == "" {
			res.Skipped++
			continue
		}
		texts = append(texts, text)
		targets = append(targets, c)
	}
	if len(texts) == 0 {
		return res, nil
	}

	var embeddings [][]float32
	err := resilience.Retry(ctx, bp.policy, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("embedding %d cases: %w", len(texts), err)
	}
	if len(embeddings) != len(texts) {
		return res, fmt.Errorf("%w: expected %d, got %d", ai.ErrBatchSizeMismatch, len(texts), len(embeddings))
	}

	for i, c := range targets {
		if err := bp.vectors.PutCaseVector(ctx, c.ID, NormalizeVector(embeddings[i])); err != nil {
			return res, fmt.Errorf("storing vector of case %s: %w", c.ID, err)
		}
		res.Embedded++
	}
	return res, nil
}
