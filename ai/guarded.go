package ai

import (
	"context"
	"fmt"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/resilience"
)

// GuardedEmbedder runs every call of an Embedder through a resilience guard.
type GuardedEmbedder struct {
	inner Embedder
	guard *resilience.Guard
}

var _ Embedder = (*GuardedEmbedder)(nil)

// NewGuardedEmbedder wraps inner with the guard's limits and retry policy.
func NewGuardedEmbedder(inner Embedder, guard *resilience.Guard) (*GuardedEmbedder, error) {
	if guard == nil {
		return nil, ErrGuardRequired
	}
	return &GuardedEmbedder{inner: inner, guard: guard}, nil
}

func (e *GuardedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return resilience.Call(ctx, e.guard, func(ctx context.Context) ([]float32, error) {
		return e.inner.EmbedText(ctx, text)
	})
}

func (e *GuardedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return resilience.Call(ctx, e.guard, func(ctx context.Context) ([][]float32, error) {
		vecs, err := e.inner.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, resilience.Permanent(fmt.Errorf("%w: got %d vectors for %d texts", ErrBatchSizeMismatch, len(vecs), len(texts)))
		}
		return vecs, nil
	})
}

// GuardedGenerator runs every call of a TextGenerator through a resilience guard.
type GuardedGenerator struct {
	inner TextGenerator
	guard *resilience.Guard
}

var _ TextGenerator = (*GuardedGenerator)(nil)

// NewGuardedGenerator wraps inner with the guard's limits and retry policy.
func NewGuardedGenerator(inner TextGenerator, guard *resilience.Guard) (*GuardedGenerator, error) {
	if guard == nil {
		return nil, ErrGuardRequired
	}
	return &GuardedGenerator{inner: inner, guard: guard}, nil
}

func (g *GuardedGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	return resilience.Call(ctx, g.guard, func(ctx context.Context) (string, error) {
		return g.inner.Generate(ctx, system, prompt)
	})
}

// GuardedAnalyzer runs every call of a CaseAnalyzer through a resilience guard.
type GuardedAnalyzer struct {
	inner CaseAnalyzer
	guard *resilience.Guard
}

var _ CaseAnalyzer = (*GuardedAnalyzer)(nil)

// NewGuardedAnalyzer wraps inner with the guard's limits and retry policy.
func NewGuardedAnalyzer(inner CaseAnalyzer, guard *resilience.Guard) (*GuardedAnalyzer, error) {
	if guard == nil {
		return nil, ErrGuardRequired
	}
	return &GuardedAnalyzer{inner: inner, guard: guard}, nil
}

func (a *GuardedAnalyzer) AnalyzeCase(ctx context.Context, c *core.Case) (*CaseAnalysis, error) {
	return resilience.Call(ctx, a.guard, func(ctx context.Context) (*CaseAnalysis, error) {
		return a.inner.AnalyzeCase(ctx, c)
	})
}
